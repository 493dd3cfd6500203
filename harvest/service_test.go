package harvest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type stubExporter struct {
	export func(ctx context.Context, req RenderRequest) (Document, error)
	calls  []RenderRequest
}

func (s *stubExporter) Export(ctx context.Context, req RenderRequest) (Document, error) {
	s.calls = append(s.calls, req)
	if s.export != nil {
		return s.export(ctx, req)
	}
	return Document{
		Filename:    req.Filename,
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.3 stub"),
		Layout:      PageLayout{CaptureWidth: 1600, CaptureHeight: 2000, PageWidthMM: 210, PageHeightMM: 262.5},
	}, nil
}

func newTestService(t *testing.T, exporter Exporter) (Service, *MemoryTracker, *MemoryStore) {
	t.Helper()
	formatter, err := NewFormatter("es-CO", "UTC")
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	tracker := NewMemoryTracker()
	store := NewMemoryStore()
	svc := NewService(ServiceConfig{
		Exporter:  exporter,
		Store:     store,
		Tracker:   tracker,
		Formatter: formatter,
		Now:       fixedClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
	})
	return svc, tracker, store
}

func TestService_ExportReceipt(t *testing.T) {
	ctx := context.Background()
	exporter := &stubExporter{}
	svc, _, _ := newTestService(t, exporter)

	entry, err := svc.RecordEntry(ctx, EntryInput{Name: "Ana Lucía", Kg: 12, PricePerKg: 3000})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	result, err := svc.ExportReceipt(ctx, entry.ID)
	if err != nil {
		t.Fatalf("export receipt: %v", err)
	}
	if result.Document.Filename != "recibo-ana-lucía-15-03-2024.pdf" {
		t.Fatalf("unexpected filename %q", result.Document.Filename)
	}
	if len(exporter.calls) != 1 {
		t.Fatalf("expected one export call, got %d", len(exporter.calls))
	}
	req := exporter.calls[0]
	if req.Kind != TemplateReceipt || req.Receipt == nil || req.Receipt.ID != entry.ID {
		t.Fatalf("unexpected render request %+v", req)
	}
	if result.Record.State != StateCompleted || result.Record.DocumentKey == "" {
		t.Fatalf("expected completed record with document, got %+v", result.Record)
	}
	if result.Record.Layout.PageWidthMM != 210 {
		t.Fatalf("expected layout recorded, got %+v", result.Record.Layout)
	}

	download, err := svc.Download(ctx, result.Record.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, _ := io.ReadAll(download.Reader)
	_ = download.Reader.Close()
	if string(data) != "%PDF-1.3 stub" {
		t.Fatalf("unexpected document payload %q", data)
	}
	if download.Meta.Filename != result.Document.Filename {
		t.Fatalf("expected stored filename, got %q", download.Meta.Filename)
	}
}

func TestService_ExportFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	exporter := &stubExporter{
		export: func(ctx context.Context, req RenderRequest) (Document, error) {
			return Document{}, ExportFailed("capture", errors.New("element detached"))
		},
	}
	svc, _, store := newTestService(t, exporter)

	entry, err := svc.RecordEntry(ctx, EntryInput{Name: "Ana", Kg: 1, PricePerKg: 3000})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	_, err = svc.ExportReceipt(ctx, entry.ID)
	if !IsKind(err, KindExport) {
		t.Fatalf("expected export failure, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no document to be stored")
	}

	history, err := svc.History(ctx, ExportFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history record, got %d", len(history))
	}
	if history[0].State != StateFailed || history[0].Error == "" {
		t.Fatalf("expected failed record with message, got %+v", history[0])
	}
	if _, err := svc.Download(ctx, history[0].ID); !IsKind(err, KindNotFound) {
		t.Fatalf("expected no download for failed export, got %v", err)
	}
}

type completeFailingTracker struct {
	*MemoryTracker
}

func (t completeFailingTracker) Complete(ctx context.Context, id string, outcome ExportOutcome) error {
	return errors.New("history unavailable")
}

func TestService_CompleteFailureMarksRecordFailed(t *testing.T) {
	ctx := context.Background()
	formatter, err := NewFormatter("es-CO", "UTC")
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	tracker := completeFailingTracker{MemoryTracker: NewMemoryTracker()}
	store := NewMemoryStore()
	svc := NewService(ServiceConfig{
		Exporter:  &stubExporter{},
		Store:     store,
		Tracker:   tracker,
		Formatter: formatter,
		Now:       fixedClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
	})

	entry, err := svc.RecordEntry(ctx, EntryInput{Name: "Ana", Kg: 1, PricePerKg: 3000})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.ExportReceipt(ctx, entry.ID); err == nil {
		t.Fatalf("expected export to fail when completion cannot be recorded")
	}
	if store.Len() != 0 {
		t.Fatalf("expected stored document to be discarded")
	}

	history, err := svc.History(ctx, ExportFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history record, got %d", len(history))
	}
	if history[0].State != StateFailed {
		t.Fatalf("expected failed record, got %s", history[0].State)
	}
}

func TestService_ExportSummaryEmpty(t *testing.T) {
	ctx := context.Background()
	exporter := &stubExporter{}
	svc, _, _ := newTestService(t, exporter)

	result, err := svc.ExportSummary(ctx, FormatPDF)
	if err != nil {
		t.Fatalf("export summary: %v", err)
	}
	if result.Document.Filename != "reporte-recoleccion-15-03-2024.pdf" {
		t.Fatalf("unexpected filename %q", result.Document.Filename)
	}
	req := exporter.calls[0]
	if req.Kind != TemplateSummary || req.Summary == nil {
		t.Fatalf("expected summary request, got %+v", req)
	}
	if len(req.Summary.Entries) != 0 || req.Summary.Totals.Kg != 0 || req.Summary.Totals.Payment != 0 {
		t.Fatalf("expected empty summary payload, got %+v", req.Summary)
	}
}

func TestService_ExportSummaryWorkbook(t *testing.T) {
	ctx := context.Background()
	exporter := &stubExporter{}
	svc, _, _ := newTestService(t, exporter)

	if _, err := svc.RecordEntry(ctx, EntryInput{Name: "Ana", Kg: 10, PricePerKg: 3000}); err != nil {
		t.Fatalf("record: %v", err)
	}

	result, err := svc.ExportSummary(ctx, FormatXLSX)
	if err != nil {
		t.Fatalf("export workbook: %v", err)
	}
	if len(exporter.calls) != 0 {
		t.Fatalf("expected workbook export to skip the pdf pipeline")
	}
	if result.Document.Filename != "reporte-recoleccion-15-03-2024.xlsx" {
		t.Fatalf("unexpected filename %q", result.Document.Filename)
	}
	if len(result.Document.Data) < 2 || string(result.Document.Data[:2]) != "PK" {
		t.Fatalf("expected zip payload")
	}
}

func TestService_ExportReceiptUnknownEntry(t *testing.T) {
	svc, tracker, _ := newTestService(t, &stubExporter{})
	if _, err := svc.ExportReceipt(context.Background(), 42); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, _ := tracker.List(context.Background(), ExportFilter{})
	if len(list) != 0 {
		t.Fatalf("expected no history for unknown entry")
	}
}

func TestService_ExportWithoutExporter(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.ExportSummary(context.Background(), FormatPDF)
	if !IsKind(err, KindNotImpl) {
		t.Fatalf("expected not implemented, got %v", err)
	}
}

func TestService_UnsupportedSummaryFormat(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExporter{})
	if _, err := svc.ExportSummary(context.Background(), Format("csv")); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
