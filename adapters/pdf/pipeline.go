package harvestpdf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-harvest/harvest"
)

// DefaultTimeout bounds mount, settle and capture of one export.
const DefaultTimeout = 30 * time.Second

// ContentType is the media type of pipeline output.
const ContentType = "application/pdf"

// Pipeline exports render requests as single-page PDFs.
// Exports are serialized; each one mounts and releases its own surface.
type Pipeline struct {
	Renderer harvest.DocumentRenderer
	Host     Host
	Logger   harvest.Logger
	Timeout  time.Duration
	Width    int
	Scale    float64
	Now      func() time.Time

	mu sync.Mutex
}

var _ harvest.Exporter = (*Pipeline)(nil)

// Export renders, captures and composes the requested document.
func (p *Pipeline) Export(ctx context.Context, req harvest.RenderRequest) (harvest.Document, error) {
	if p == nil {
		return harvest.Document{}, harvest.NewError(harvest.KindInternal, "pdf pipeline is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateRequest(req); err != nil {
		return harvest.Document{}, err
	}
	if p.Renderer == nil || p.Host == nil {
		return harvest.Document{}, harvest.NewError(harvest.KindNotImpl, "pdf pipeline requires a renderer and a host", nil)
	}

	htmlDoc, err := p.Renderer.RenderDocument(ctx, req)
	if err != nil {
		if harvest.IsKind(err, harvest.KindValidation) {
			return harvest.Document{}, err
		}
		return harvest.Document{}, harvest.ExportFailed("render", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data, layout, err := p.capture(ctx, htmlDoc, req)
	if err != nil {
		p.logger().Errorf("pdf export %s: %v", req.Filename, err)
		return harvest.Document{}, err
	}
	p.logger().Debugf("pdf export %s: capture %dx%d, page %.2fx%.2fmm",
		req.Filename, layout.CaptureWidth, layout.CaptureHeight, layout.PageWidthMM, layout.PageHeightMM)

	return harvest.Document{
		Filename:    req.Filename,
		ContentType: ContentType,
		Data:        data,
		Layout:      layout,
	}, nil
}

func (p *Pipeline) capture(ctx context.Context, htmlDoc []byte, req harvest.RenderRequest) ([]byte, harvest.PageLayout, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	surface, err := p.Host.Mount(runCtx, htmlDoc, MountOptions{Width: p.Width, Scale: p.Scale})
	if err != nil {
		return nil, harvest.PageLayout{}, harvest.ExportFailed("mount", err)
	}
	defer func() {
		if err := surface.Release(); err != nil {
			p.logger().Errorf("pdf export %s: release surface: %v", req.Filename, err)
		}
	}()

	if err := surface.Settle(runCtx); err != nil {
		return nil, harvest.PageLayout{}, harvest.ExportFailed("settle", err)
	}
	shot, err := surface.Capture(runCtx)
	if err != nil {
		return nil, harvest.PageLayout{}, harvest.ExportFailed("capture", err)
	}

	data, layout, err := Compose(shot, ComposeOptions{Title: req.Filename, CreationDate: p.now()})
	if err != nil {
		return nil, harvest.PageLayout{}, harvest.ExportFailed("finalize", err)
	}
	return data, layout, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) logger() harvest.Logger {
	if p.Logger == nil {
		return harvest.NopLogger{}
	}
	return p.Logger
}

func validateRequest(req harvest.RenderRequest) error {
	if req.Filename == "" {
		return harvest.NewError(harvest.KindValidation, "filename is required", nil)
	}
	switch req.Kind {
	case harvest.TemplateReceipt:
		if req.Receipt == nil {
			return harvest.NewError(harvest.KindValidation, "receipt requires an entry", nil)
		}
	case harvest.TemplateSummary:
		if req.Summary == nil {
			return harvest.NewError(harvest.KindValidation, "summary requires a payload", nil)
		}
	default:
		return harvest.NewError(harvest.KindValidation, fmt.Sprintf("unknown template kind %q", req.Kind), nil)
	}
	return nil
}
