package harvesttemplate

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-harvest/harvest"
)

// DefaultWidth is the render root width in CSS pixels.
const DefaultWidth = 800

//go:embed templates/*.html
var templateFS embed.FS

// Config configures the template renderer.
type Config struct {
	FarmName  string
	Formatter harvest.Formatter
	Width     int
}

// Renderer renders harvest documents and the application page.
type Renderer struct {
	farmName  string
	formatter harvest.Formatter
	width     int

	receipt *pongo2.Template
	summary *pongo2.Template
	page    *pongo2.Template
}

var _ harvest.DocumentRenderer = (*Renderer)(nil)

// NewRenderer compiles the embedded templates.
func NewRenderer(cfg Config) (*Renderer, error) {
	r := &Renderer{
		farmName:  cfg.FarmName,
		formatter: cfg.Formatter,
		width:     cfg.Width,
	}
	if r.farmName == "" {
		r.farmName = harvest.DefaultFarmName
	}
	if r.width <= 0 {
		r.width = DefaultWidth
	}

	var err error
	if r.receipt, err = compile("receipt.html"); err != nil {
		return nil, err
	}
	if r.summary, err = compile("summary.html"); err != nil {
		return nil, err
	}
	if r.page, err = compile("page.html"); err != nil {
		return nil, err
	}
	return r, nil
}

// Width returns the render root width.
func (r *Renderer) Width() int {
	return r.width
}

// RenderDocument renders the HTML document for a receipt or summary.
func (r *Renderer) RenderDocument(ctx context.Context, req harvest.RenderRequest) ([]byte, error) {
	if r == nil {
		return nil, harvest.NewError(harvest.KindInternal, "template renderer is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	var err error
	switch req.Kind {
	case harvest.TemplateReceipt:
		err = r.renderReceipt(&buf, req.Receipt)
	case harvest.TemplateSummary:
		err = r.renderSummary(&buf, req.Summary)
	default:
		return nil, harvest.NewError(harvest.KindValidation, fmt.Sprintf("unknown template kind %q", req.Kind), nil)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPage renders the application page.
func (r *Renderer) RenderPage(w io.Writer, data PageData) error {
	if r == nil {
		return harvest.NewError(harvest.KindInternal, "template renderer is nil", nil)
	}
	return r.page.ExecuteWriter(pongo2.Context{"page": r.pageView(data)}, w)
}

func (r *Renderer) renderReceipt(w io.Writer, entry *harvest.Entry) error {
	if entry == nil {
		return harvest.NewError(harvest.KindValidation, "receipt requires an entry", nil)
	}
	return r.receipt.ExecuteWriter(pongo2.Context{
		"width":   r.width,
		"receipt": r.receiptView(*entry),
	}, w)
}

func (r *Renderer) renderSummary(w io.Writer, payload *harvest.SummaryPayload) error {
	if payload == nil {
		return harvest.NewError(harvest.KindValidation, "summary requires a payload", nil)
	}
	return r.summary.ExecuteWriter(pongo2.Context{
		"width":   r.width,
		"summary": r.summaryView(*payload),
	}, w)
}

func compile(name string) (*pongo2.Template, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, harvest.NewError(harvest.KindInternal, "template "+name+" missing", err)
	}
	tpl, err := pongo2.FromBytes(data)
	if err != nil {
		return nil, harvest.NewError(harvest.KindInternal, "template "+name+" invalid", err)
	}
	return tpl, nil
}
