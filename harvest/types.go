package harvest

import (
	"context"
	"io"
	"time"
)

// Entry is one recorded delivery of coffee by a picker.
// Entries are values; once recorded they never change.
type Entry struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Kg         float64   `json:"kg"`
	PricePerKg float64   `json:"price_per_kg"`
	Total      int64     `json:"total"`
	Date       string    `json:"date"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EntryInput carries the fields submitted for a new entry.
type EntryInput struct {
	Name       string  `json:"name"`
	Kg         float64 `json:"kg"`
	PricePerKg float64 `json:"price_per_kg"`
}

// Totals aggregates the current entry list.
type Totals struct {
	Kg      float64 `json:"kg"`
	Payment int64   `json:"payment"`
	Entries int     `json:"entries"`
}

// TemplateKind selects the document layout.
type TemplateKind string

const (
	TemplateReceipt TemplateKind = "receipt"
	TemplateSummary TemplateKind = "summary"
)

// Format identifies a delivered document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// SummaryPayload is the data rendered by the summary template.
type SummaryPayload struct {
	Entries     []Entry   `json:"entries"`
	Totals      Totals    `json:"totals"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RenderRequest is the export pipeline input. Exactly one of Receipt or
// Summary is set, matching Kind.
type RenderRequest struct {
	Kind     TemplateKind
	Receipt  *Entry
	Summary  *SummaryPayload
	Filename string
}

// ReceiptRequest builds a receipt render request.
func ReceiptRequest(entry Entry, filename string) RenderRequest {
	return RenderRequest{Kind: TemplateReceipt, Receipt: &entry, Filename: filename}
}

// SummaryRequest builds a summary render request.
func SummaryRequest(payload SummaryPayload, filename string) RenderRequest {
	return RenderRequest{Kind: TemplateSummary, Summary: &payload, Filename: filename}
}

// PageLayout records the capture size and the resulting page size.
type PageLayout struct {
	CaptureWidth  int     `json:"capture_width"`
	CaptureHeight int     `json:"capture_height"`
	PageWidthMM   float64 `json:"page_width_mm"`
	PageHeightMM  float64 `json:"page_height_mm"`
}

// Document is a finished export ready for delivery.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Layout      PageLayout
}

// DocumentRenderer renders HTML for a template variant.
type DocumentRenderer interface {
	RenderDocument(ctx context.Context, req RenderRequest) ([]byte, error)
}

// Exporter runs the render, capture and paginate pipeline.
type Exporter interface {
	Export(ctx context.Context, req RenderRequest) (Document, error)
}

// ExporterFunc adapts a function to an Exporter.
type ExporterFunc func(ctx context.Context, req RenderRequest) (Document, error)

func (f ExporterFunc) Export(ctx context.Context, req RenderRequest) (Document, error) {
	if f == nil {
		return Document{}, NewError(KindInternal, "exporter func is nil", nil)
	}
	return f(ctx, req)
}

// DocumentMeta describes a stored document.
type DocumentMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentRef points to a stored document.
type DocumentRef struct {
	Key  string       `json:"key"`
	Meta DocumentMeta `json:"meta"`
}

// DocumentStore keeps delivered documents for the session.
type DocumentStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta DocumentMeta) (DocumentRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, DocumentMeta, error)
	Delete(ctx context.Context, key string) error
}

// ExportState describes an export lifecycle state.
type ExportState string

const (
	StateQueued    ExportState = "queued"
	StateRunning   ExportState = "running"
	StateCompleted ExportState = "completed"
	StateFailed    ExportState = "failed"
)

// ExportRecord is the history entry for one export attempt.
type ExportRecord struct {
	ID          string       `json:"id"`
	Template    TemplateKind `json:"template"`
	Format      Format       `json:"format"`
	EntryID     int64        `json:"entry_id,omitempty"`
	Filename    string       `json:"filename"`
	State       ExportState  `json:"state"`
	Error       string       `json:"error,omitempty"`
	DocumentKey string       `json:"document_key,omitempty"`
	Bytes       int64        `json:"bytes"`
	Layout      PageLayout   `json:"layout"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitempty"`
	CompletedAt time.Time    `json:"completed_at,omitempty"`
}

// ExportOutcome is written on successful completion.
type ExportOutcome struct {
	DocumentKey string
	Bytes       int64
	Layout      PageLayout
}

// ExportFilter narrows history queries.
type ExportFilter struct {
	State    ExportState
	Template TemplateKind
	Limit    int
}

// Tracker records export history.
type Tracker interface {
	Start(ctx context.Context, record ExportRecord) (string, error)
	SetState(ctx context.Context, id string, state ExportState) error
	Fail(ctx context.Context, id string, err error) error
	Complete(ctx context.Context, id string, outcome ExportOutcome) error
	Status(ctx context.Context, id string) (ExportRecord, error)
	List(ctx context.Context, filter ExportFilter) ([]ExportRecord, error)
}

// ExportResult is returned by export operations.
type ExportResult struct {
	Record   ExportRecord
	Document Document
}

// Download is an opened stored document.
type Download struct {
	Record ExportRecord
	Meta   DocumentMeta
	Reader io.ReadCloser
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
