package harvestpdf

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-harvest/harvest"
)

type stubRenderer struct {
	html  string
	err   error
	calls atomic.Int32
}

func (r *stubRenderer) RenderDocument(ctx context.Context, req harvest.RenderRequest) ([]byte, error) {
	_ = ctx
	_ = req
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.html), nil
}

type fakeHost struct {
	mu       sync.Mutex
	png      []byte
	width    int
	height   int
	mountErr error
	settle   error
	capture  error

	live     int
	maxLive  int
	mounts   int
	releases int
	opts     []MountOptions
}

func (h *fakeHost) Mount(ctx context.Context, html []byte, opts MountOptions) (Surface, error) {
	_ = ctx
	_ = html
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts = append(h.opts, opts)
	if h.mountErr != nil {
		return nil, h.mountErr
	}
	h.mounts++
	h.live++
	if h.live > h.maxLive {
		h.maxLive = h.live
	}
	return &fakeSurface{host: h}, nil
}

func (h *fakeHost) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

type fakeSurface struct {
	host     *fakeHost
	released bool
}

func (s *fakeSurface) Settle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.host.settle
}

func (s *fakeSurface) Capture(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return Capture{}, err
	}
	if s.host.capture != nil {
		return Capture{}, s.host.capture
	}
	return Capture{PNG: s.host.png, Width: s.host.width, Height: s.host.height}, nil
}

func (s *fakeSurface) Release() error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.host.live--
	s.host.releases++
	return nil
}

func newTestPipeline(t *testing.T, host *fakeHost) (*Pipeline, *stubRenderer) {
	t.Helper()
	renderer := &stubRenderer{html: `<html><body><div id="render-root">ok</div></body></html>`}
	return &Pipeline{
		Renderer: renderer,
		Host:     host,
		Now:      func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	}, renderer
}

func receiptRequest() harvest.RenderRequest {
	entry := harvest.Entry{ID: 1, Name: "Ana", Kg: 12, PricePerKg: 3000, Total: 36000, Date: "15/03/2024"}
	return harvest.ReceiptRequest(entry, "recibo-ana-15-03-2024.pdf")
}

func TestPipeline_ExportReceipt(t *testing.T) {
	host := &fakeHost{png: testPNG(t, 1600, 2000), width: 1600, height: 2000}
	pipeline, _ := newTestPipeline(t, host)

	doc, err := pipeline.Export(context.Background(), receiptRequest())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Filename != "recibo-ana-15-03-2024.pdf" || doc.ContentType != ContentType {
		t.Fatalf("unexpected document %q %q", doc.Filename, doc.ContentType)
	}
	if !bytes.HasPrefix(doc.Data, []byte("%PDF")) {
		t.Fatalf("expected pdf payload")
	}
	if doc.Layout.PageWidthMM != 210 || doc.Layout.PageHeightMM != 262.5 {
		t.Fatalf("unexpected layout %+v", doc.Layout)
	}
	if host.Live() != 0 || host.releases != 1 {
		t.Fatalf("expected surface released, live=%d releases=%d", host.Live(), host.releases)
	}
	if len(host.opts) != 1 {
		t.Fatalf("expected one mount, got %d", len(host.opts))
	}
}

func TestPipeline_ExportIsIdempotent(t *testing.T) {
	host := &fakeHost{png: testPNG(t, 400, 300), width: 400, height: 300}
	pipeline, _ := newTestPipeline(t, host)

	first, err := pipeline.Export(context.Background(), receiptRequest())
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := pipeline.Export(context.Background(), receiptRequest())
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.Layout != second.Layout {
		t.Fatalf("expected identical layouts, got %+v and %+v", first.Layout, second.Layout)
	}
	if host.Live() != 0 || host.mounts != 2 {
		t.Fatalf("expected two mounts fully released, live=%d mounts=%d", host.Live(), host.mounts)
	}
}

func TestPipeline_CaptureFailureReleasesSurface(t *testing.T) {
	host := &fakeHost{capture: errors.New("element detached")}
	pipeline, _ := newTestPipeline(t, host)

	doc, err := pipeline.Export(context.Background(), receiptRequest())
	if !harvest.IsKind(err, harvest.KindExport) {
		t.Fatalf("expected export failure, got %v", err)
	}
	if len(doc.Data) != 0 {
		t.Fatalf("expected no partial document")
	}
	if host.Live() != 0 || host.releases != 1 {
		t.Fatalf("expected surface released after failure, live=%d", host.Live())
	}
}

func TestPipeline_SettleFailureReleasesSurface(t *testing.T) {
	host := &fakeHost{settle: errors.New("navigation lost")}
	pipeline, _ := newTestPipeline(t, host)

	if _, err := pipeline.Export(context.Background(), receiptRequest()); !harvest.IsKind(err, harvest.KindExport) {
		t.Fatalf("expected export failure, got %v", err)
	}
	if host.Live() != 0 {
		t.Fatalf("expected surface released")
	}
}

func TestPipeline_MountFailure(t *testing.T) {
	host := &fakeHost{mountErr: errors.New("browser gone")}
	pipeline, _ := newTestPipeline(t, host)

	_, err := pipeline.Export(context.Background(), receiptRequest())
	if !harvest.IsKind(err, harvest.KindExport) {
		t.Fatalf("expected export failure, got %v", err)
	}
	if host.releases != 0 {
		t.Fatalf("did not expect a release without a mount")
	}
}

func TestPipeline_InvalidCaptureIsExportFailure(t *testing.T) {
	host := &fakeHost{png: []byte("broken"), width: 0, height: 0}
	pipeline, _ := newTestPipeline(t, host)

	if _, err := pipeline.Export(context.Background(), receiptRequest()); !harvest.IsKind(err, harvest.KindExport) {
		t.Fatalf("expected export failure, got %v", err)
	}
	if host.Live() != 0 {
		t.Fatalf("expected surface released")
	}
}

func TestPipeline_ValidationBeforeMount(t *testing.T) {
	host := &fakeHost{}
	pipeline, renderer := newTestPipeline(t, host)

	tests := []harvest.RenderRequest{
		{Kind: harvest.TemplateReceipt, Filename: "recibo.pdf"},
		{Kind: harvest.TemplateSummary, Filename: "reporte.pdf"},
		{Kind: harvest.TemplateKind("invoice"), Filename: "x.pdf"},
		{Kind: harvest.TemplateReceipt, Receipt: &harvest.Entry{}},
	}
	for _, req := range tests {
		if _, err := pipeline.Export(context.Background(), req); !harvest.IsKind(err, harvest.KindValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
	if renderer.calls.Load() != 0 || len(host.opts) != 0 {
		t.Fatalf("expected no render or mount for invalid requests")
	}
}

func TestPipeline_RenderFailure(t *testing.T) {
	host := &fakeHost{}
	pipeline, renderer := newTestPipeline(t, host)
	renderer.err = errors.New("template exploded")

	if _, err := pipeline.Export(context.Background(), receiptRequest()); !harvest.IsKind(err, harvest.KindExport) {
		t.Fatalf("expected export failure, got %v", err)
	}
	if len(host.opts) != 0 {
		t.Fatalf("did not expect a mount after render failure")
	}
}

func TestPipeline_CanceledContext(t *testing.T) {
	host := &fakeHost{png: testPNG(t, 10, 10), width: 10, height: 10}
	pipeline, _ := newTestPipeline(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Export(ctx, receiptRequest())
	if err == nil {
		t.Fatalf("expected error for canceled context")
	}
	if host.Live() != 0 {
		t.Fatalf("expected no live surface after cancellation")
	}
}

func TestPipeline_SerializesExports(t *testing.T) {
	host := &fakeHost{png: testPNG(t, 40, 30), width: 40, height: 30}
	pipeline, _ := newTestPipeline(t, host)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pipeline.Export(context.Background(), receiptRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("export: %v", err)
		}
	}
	if host.maxLive != 1 {
		t.Fatalf("expected one surface at a time, saw %d", host.maxLive)
	}
	if host.Live() != 0 {
		t.Fatalf("expected all surfaces released")
	}
}

func TestPipeline_EmptySummary(t *testing.T) {
	host := &fakeHost{png: testPNG(t, 1600, 600), width: 1600, height: 600}
	pipeline, _ := newTestPipeline(t, host)

	payload := harvest.SummaryPayload{GeneratedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}
	doc, err := pipeline.Export(context.Background(), harvest.SummaryRequest(payload, "reporte-recoleccion-15-03-2024.pdf"))
	if err != nil {
		t.Fatalf("export summary: %v", err)
	}
	if doc.Layout.PageHeightMM != 78.75 {
		t.Fatalf("unexpected layout %+v", doc.Layout)
	}
}
