package harvestrouter

import (
	"github.com/goliatone/go-harvest/adapters/harvestapi"
	"github.com/goliatone/go-harvest/harvest"
	"github.com/goliatone/go-router"
)

// Config configures the go-router adapter.
type Config = harvestapi.Config

// Handler exposes the harvest page and API for go-router.
type Handler struct {
	controller *harvestapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: harvestapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	for _, path := range []string{
		"/",
		"/entries/:id/receipt",
		"/summary",
		"/summary.pdf",
		"/summary.xlsx",
		"/api/entries",
		"/api/totals",
		"/exports",
		"/exports/:id",
		"/exports/:id/download",
	} {
		r.Get(path, h.Handle)
	}
	r.Post("/entries", h.Handle)
}

// Handle runs the shared harvest controller.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		harvestapi.WriteError(routerResponse{ctx: c}, harvest.NewError(harvest.KindInternal, "handler is nil", nil))
		return nil
	}
	h.controller.Serve(routerRequest{ctx: c}, routerResponse{ctx: c})
	return nil
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
