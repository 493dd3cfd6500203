package harvesthttp

import (
	"net/http"

	"github.com/goliatone/go-harvest/adapters/harvestapi"
	"github.com/goliatone/go-harvest/harvest"
)

// Config configures the HTTP adapter.
type Config = harvestapi.Config

// Handler exposes the harvest page and API over net/http.
type Handler struct {
	controller *harvestapi.Controller
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: harvestapi.NewController(cfg)}
}

// RegisterRoutes registers the handler on a compatible mux.
func (h *Handler) RegisterRoutes(router any) {
	switch r := router.(type) {
	case interface{ Handle(string, http.Handler) }:
		r.Handle("/", h)
	case interface {
		HandleFunc(string, func(http.ResponseWriter, *http.Request))
	}:
		r.HandleFunc("/", h.ServeHTTP)
	}
}

// ServeHTTP routes harvest endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	if h == nil || h.controller == nil {
		harvestapi.WriteError(httpResponse{w: w}, harvest.NewError(harvest.KindInternal, "handler is nil", nil))
		return
	}
	h.controller.Serve(httpRequest{r: r}, httpResponse{w: w, req: r})
}
