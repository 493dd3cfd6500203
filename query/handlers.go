package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-harvest/harvest"
)

func serviceRequired() error {
	return errors.New("harvest service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}

// ListEntriesHandler returns the entry list.
type ListEntriesHandler struct {
	Service harvest.Service
}

func NewListEntriesHandler(svc harvest.Service) *ListEntriesHandler {
	return &ListEntriesHandler{Service: svc}
}

func (h *ListEntriesHandler) Query(ctx context.Context, msg ListEntries) ([]harvest.Entry, error) {
	if h == nil || h.Service == nil {
		return nil, serviceRequired()
	}
	return h.Service.Entries(ctx), nil
}

// HarvestTotalsHandler returns running totals.
type HarvestTotalsHandler struct {
	Service harvest.Service
}

func NewHarvestTotalsHandler(svc harvest.Service) *HarvestTotalsHandler {
	return &HarvestTotalsHandler{Service: svc}
}

func (h *HarvestTotalsHandler) Query(ctx context.Context, msg HarvestTotals) (harvest.Totals, error) {
	if h == nil || h.Service == nil {
		return harvest.Totals{}, serviceRequired()
	}
	return h.Service.Totals(ctx), nil
}

// ExportHistoryHandler returns export history.
type ExportHistoryHandler struct {
	Service harvest.Service
}

func NewExportHistoryHandler(svc harvest.Service) *ExportHistoryHandler {
	return &ExportHistoryHandler{Service: svc}
}

func (h *ExportHistoryHandler) Query(ctx context.Context, msg ExportHistory) ([]harvest.ExportRecord, error) {
	if h == nil || h.Service == nil {
		return nil, serviceRequired()
	}
	return h.Service.History(ctx, msg.Filter)
}

// ExportStatusHandler returns a single export record.
type ExportStatusHandler struct {
	Service harvest.Service
}

func NewExportStatusHandler(svc harvest.Service) *ExportStatusHandler {
	return &ExportStatusHandler{Service: svc}
}

func (h *ExportStatusHandler) Query(ctx context.Context, msg ExportStatus) (harvest.ExportRecord, error) {
	if h == nil || h.Service == nil {
		return harvest.ExportRecord{}, serviceRequired()
	}
	return h.Service.Status(ctx, msg.ExportID)
}
