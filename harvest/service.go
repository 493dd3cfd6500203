package harvest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultFarmName is printed on every document.
const DefaultFarmName = `Finca "La Esperanza"`

// Service exposes the harvest ledger and its document exports.
type Service interface {
	RecordEntry(ctx context.Context, input EntryInput) (Entry, error)
	Entries(ctx context.Context) []Entry
	Entry(ctx context.Context, id int64) (Entry, error)
	Totals(ctx context.Context) Totals
	ExportReceipt(ctx context.Context, entryID int64) (ExportResult, error)
	ExportSummary(ctx context.Context, format Format) (ExportResult, error)
	History(ctx context.Context, filter ExportFilter) ([]ExportRecord, error)
	Status(ctx context.Context, exportID string) (ExportRecord, error)
	Download(ctx context.Context, exportID string) (Download, error)
}

// ServiceConfig configures the harvest service.
type ServiceConfig struct {
	Ledger          *Ledger
	Exporter        Exporter
	Store           DocumentStore
	Tracker         Tracker
	Formatter       Formatter
	Logger          Logger
	FarmName        string
	ReceiptFilename string
	SummaryFilename string
	Now             func() time.Time
	KeyGenerator    func(format Format) string
}

type service struct {
	ledger          *Ledger
	exporter        Exporter
	store           DocumentStore
	tracker         Tracker
	formatter       Formatter
	logger          Logger
	farmName        string
	receiptFilename string
	summaryFilename string
	now             func() time.Time
	keyGen          func(format Format) string
}

// NewService creates a harvest service.
func NewService(cfg ServiceConfig) Service {
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewLedger(nowFn, cfg.Formatter.Location())
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewMemoryTracker()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	farmName := cfg.FarmName
	if farmName == "" {
		farmName = DefaultFarmName
	}
	keyGen := cfg.KeyGenerator
	if keyGen == nil {
		keyGen = defaultKeyGenerator
	}

	return &service{
		ledger:          ledger,
		exporter:        cfg.Exporter,
		store:           store,
		tracker:         tracker,
		formatter:       cfg.Formatter,
		logger:          logger,
		farmName:        farmName,
		receiptFilename: cfg.ReceiptFilename,
		summaryFilename: cfg.SummaryFilename,
		now:             nowFn,
		keyGen:          keyGen,
	}
}

func (s *service) RecordEntry(ctx context.Context, input EntryInput) (Entry, error) {
	_ = ctx
	entry, err := s.ledger.Record(input)
	if err != nil {
		return Entry{}, err
	}
	s.logger.Infof("recorded entry %d for %s: %s kg", entry.ID, entry.Name, FormatKg(entry.Kg))
	return entry, nil
}

func (s *service) Entries(ctx context.Context) []Entry {
	_ = ctx
	return s.ledger.State().Entries()
}

func (s *service) Entry(ctx context.Context, id int64) (Entry, error) {
	_ = ctx
	entry, ok := s.ledger.State().Find(id)
	if !ok {
		return Entry{}, NewError(KindNotFound, fmt.Sprintf("entry %d not found", id), nil)
	}
	return entry, nil
}

func (s *service) Totals(ctx context.Context) Totals {
	_ = ctx
	return s.ledger.State().Totals()
}

func (s *service) ExportReceipt(ctx context.Context, entryID int64) (ExportResult, error) {
	entry, err := s.Entry(ctx, entryID)
	if err != nil {
		return ExportResult{}, err
	}
	filename, err := ReceiptFilename(s.receiptFilename, entry, FormatPDF)
	if err != nil {
		return ExportResult{}, err
	}

	record := ExportRecord{
		Template: TemplateReceipt,
		Format:   FormatPDF,
		EntryID:  entry.ID,
		Filename: filename,
	}
	return s.run(ctx, record, func(ctx context.Context) (Document, error) {
		return s.exportPDF(ctx, ReceiptRequest(entry, filename))
	})
}

func (s *service) ExportSummary(ctx context.Context, format Format) (ExportResult, error) {
	if format == "" {
		format = FormatPDF
	}
	if format != FormatPDF && format != FormatXLSX {
		return ExportResult{}, NewError(KindValidation, fmt.Sprintf("unsupported summary format %q", format), nil)
	}

	state := s.ledger.State()
	generatedAt := s.now().In(s.formatter.Location())
	payload := SummaryPayload{
		Entries:     state.Entries(),
		Totals:      state.Totals(),
		GeneratedAt: generatedAt,
	}
	filename, err := SummaryFilename(s.summaryFilename, FormatDate(generatedAt), format)
	if err != nil {
		return ExportResult{}, err
	}

	record := ExportRecord{
		Template: TemplateSummary,
		Format:   format,
		Filename: filename,
	}
	return s.run(ctx, record, func(ctx context.Context) (Document, error) {
		if format == FormatXLSX {
			return s.exportWorkbook(payload, filename)
		}
		return s.exportPDF(ctx, SummaryRequest(payload, filename))
	})
}

func (s *service) History(ctx context.Context, filter ExportFilter) ([]ExportRecord, error) {
	return s.tracker.List(ctx, filter)
}

func (s *service) Status(ctx context.Context, exportID string) (ExportRecord, error) {
	if exportID == "" {
		return ExportRecord{}, NewError(KindValidation, "export ID is required", nil)
	}
	return s.tracker.Status(ctx, exportID)
}

func (s *service) Download(ctx context.Context, exportID string) (Download, error) {
	record, err := s.Status(ctx, exportID)
	if err != nil {
		return Download{}, err
	}
	if record.State != StateCompleted || record.DocumentKey == "" {
		return Download{}, NewError(KindNotFound, fmt.Sprintf("export %q has no document", exportID), nil)
	}
	reader, meta, err := s.store.Open(ctx, record.DocumentKey)
	if err != nil {
		return Download{}, err
	}
	if meta.Filename == "" {
		meta.Filename = record.Filename
	}
	return Download{Record: record, Meta: meta, Reader: reader}, nil
}

// run tracks one export attempt and delivers its document to the store.
func (s *service) run(ctx context.Context, record ExportRecord, produce func(ctx context.Context) (Document, error)) (ExportResult, error) {
	id, err := s.tracker.Start(ctx, record)
	if err != nil {
		return ExportResult{}, err
	}
	record.ID = id
	if err := s.tracker.SetState(ctx, id, StateRunning); err != nil {
		return ExportResult{}, err
	}

	doc, err := produce(ctx)
	if err != nil {
		s.logger.Errorf("export %s (%s) failed: %v", id, record.Filename, err)
		s.fail(id, err)
		return ExportResult{}, err
	}
	if doc.Filename == "" {
		doc.Filename = record.Filename
	}

	key := s.keyGen(record.Format)
	ref, err := s.store.Put(ctx, key, bytes.NewReader(doc.Data), DocumentMeta{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		CreatedAt:   s.now(),
	})
	if err != nil {
		failure := ExportFailed("delivery", err)
		s.fail(id, failure)
		return ExportResult{}, failure
	}

	outcome := ExportOutcome{DocumentKey: ref.Key, Bytes: ref.Meta.Size, Layout: doc.Layout}
	if err := s.tracker.Complete(ctx, id, outcome); err != nil {
		if delErr := s.store.Delete(ctx, ref.Key); delErr != nil {
			s.logger.Errorf("export %s: discard document %s: %v", id, ref.Key, delErr)
		}
		s.fail(id, err)
		return ExportResult{}, err
	}

	completed, err := s.tracker.Status(ctx, id)
	if err != nil {
		return ExportResult{}, err
	}
	s.logger.Infof("export %s delivered %s (%d bytes)", id, doc.Filename, ref.Meta.Size)
	return ExportResult{Record: completed, Document: doc}, nil
}

// fail records a failure even when ctx was the cause.
func (s *service) fail(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracker.Fail(ctx, id, cause); err != nil {
		s.logger.Errorf("export %s: record failure: %v", id, err)
	}
}

func (s *service) exportPDF(ctx context.Context, req RenderRequest) (Document, error) {
	if s.exporter == nil {
		return Document{}, NewError(KindNotImpl, "pdf exporter is not configured", nil)
	}
	doc, err := s.exporter.Export(ctx, req)
	if err != nil {
		return Document{}, err
	}
	if len(doc.Data) == 0 {
		return Document{}, ExportFailed("finalize", fmt.Errorf("empty document"))
	}
	return doc, nil
}

func (s *service) exportWorkbook(payload SummaryPayload, filename string) (Document, error) {
	title := s.farmName + " - Reporte de Pagos " + s.formatter.Date(payload.GeneratedAt)
	var buf bytes.Buffer
	if _, err := WriteSummaryWorkbook(&buf, title, payload); err != nil {
		return Document{}, ExportFailed("workbook", err)
	}
	return Document{
		Filename:    filename,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

func defaultKeyGenerator(format Format) string {
	return fmt.Sprintf("documents/%s.%s", uuid.NewString(), format)
}
