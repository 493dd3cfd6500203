package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-harvest/harvest"
)

func serviceRequired() error {
	return errors.New("harvest service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}

// RecordEntryHandler records entries.
type RecordEntryHandler struct {
	Service harvest.Service
}

func NewRecordEntryHandler(svc harvest.Service) *RecordEntryHandler {
	return &RecordEntryHandler{Service: svc}
}

func (h *RecordEntryHandler) Execute(ctx context.Context, msg RecordEntry) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	entry, err := h.Service.RecordEntry(ctx, msg.Input)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = entry
	}
	if res := gcmd.ResultFromContext[harvest.Entry](ctx); res != nil {
		res.Store(entry)
	}
	return nil
}

// ExportReceiptHandler exports entry receipts.
type ExportReceiptHandler struct {
	Service harvest.Service
}

func NewExportReceiptHandler(svc harvest.Service) *ExportReceiptHandler {
	return &ExportReceiptHandler{Service: svc}
}

func (h *ExportReceiptHandler) Execute(ctx context.Context, msg ExportReceipt) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.ExportReceipt(ctx, msg.EntryID)
	if err != nil {
		return err
	}
	storeResult(ctx, msg.Result, result)
	return nil
}

// ExportSummaryHandler exports the harvest summary.
type ExportSummaryHandler struct {
	Service harvest.Service
}

func NewExportSummaryHandler(svc harvest.Service) *ExportSummaryHandler {
	return &ExportSummaryHandler{Service: svc}
}

func (h *ExportSummaryHandler) Execute(ctx context.Context, msg ExportSummary) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.ExportSummary(ctx, msg.Format)
	if err != nil {
		return err
	}
	storeResult(ctx, msg.Result, result)
	return nil
}

func storeResult(ctx context.Context, dst *harvest.ExportResult, result harvest.ExportResult) {
	if dst != nil {
		*dst = result
	}
	if res := gcmd.ResultFromContext[harvest.ExportResult](ctx); res != nil {
		res.Store(result)
	}
}
