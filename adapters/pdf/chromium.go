package harvestpdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	_ "image/png"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-harvest/harvest"
)

// ExternalAssetsPolicy controls network access while a document is mounted.
type ExternalAssetsPolicy string

const (
	ExternalAssetsAllow ExternalAssetsPolicy = "allow"
	ExternalAssetsBlock ExternalAssetsPolicy = "block"
)

// SettleMode selects how a surface waits for layout and paint.
type SettleMode string

const (
	SettleSignal SettleMode = "signal"
	SettleDelay  SettleMode = "delay"
)

const (
	DefaultSettleDelay    = 100 * time.Millisecond
	defaultViewportHeight = 600
)

// settleScript resolves once fonts and images are loaded and two animation
// frames have been painted. It returns the number of images that failed.
const settleScript = `(async () => {
  if (document.fonts && document.fonts.ready) {
    await document.fonts.ready;
  }
  const images = Array.from(document.images);
  await Promise.all(images.map((img) => img.complete ? null : new Promise((resolve) => {
    img.addEventListener("load", resolve, { once: true });
    img.addEventListener("error", resolve, { once: true });
  })));
  await new Promise((resolve) => requestAnimationFrame(() => requestAnimationFrame(resolve)));
  return images.filter((img) => img.naturalWidth === 0).length;
})()`

// ChromiumHost mounts documents in tabs of a shared headless Chromium.
type ChromiumHost struct {
	BrowserPath string
	Headless    bool
	Args        []string

	Settle      SettleMode
	SettleDelay time.Duration

	ExternalAssetsPolicy ExternalAssetsPolicy
	BaseURL              string

	Logger harvest.Logger

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	live atomic.Int64
}

var _ Host = (*ChromiumHost)(nil)

// Mount opens a new tab and loads the document into it.
func (h *ChromiumHost) Mount(ctx context.Context, htmlInput []byte, opts MountOptions) (Surface, error) {
	if h == nil {
		return nil, harvest.NewError(harvest.KindInternal, "chromium host is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.withDefaults()

	if err := h.ensureBrowser(); err != nil {
		return nil, fmt.Errorf("chromium init: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(h.browserCtx)
	surface := &chromiumSurface{host: h, tabCtx: tabCtx, cancelTab: cancelTab, opts: opts}
	h.live.Add(1)

	// allocate the target on the tab context itself so later steps can run
	// on derived contexts without tearing the tab down
	stop := context.AfterFunc(ctx, cancelTab)
	err := chromedp.Run(tabCtx)
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = surface.Release()
		return nil, err
	}

	actions := []chromedp.Action{}
	if h.ExternalAssetsPolicy == ExternalAssetsBlock {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs().WithURLPatterns(blockedURLPatterns()),
		)
	}
	document := injectBaseURL(htmlInput, h.BaseURL)
	actions = append(actions,
		chromedp.EmulateViewport(int64(opts.Width), defaultViewportHeight),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(document)).Do(ctx)
		}),
		chromedp.WaitReady(RootSelector, chromedp.ByQuery),
	)
	if err := surface.run(ctx, actions...); err != nil {
		_ = surface.Release()
		return nil, err
	}
	return surface, nil
}

// Live reports how many surfaces are mounted and not yet released.
func (h *ChromiumHost) Live() int {
	if h == nil {
		return 0
	}
	return int(h.live.Load())
}

// Close releases Chromium resources if they have been initialized.
func (h *ChromiumHost) Close() error {
	if h == nil {
		return nil
	}
	if h.browserCancel != nil {
		h.browserCancel()
	}
	if h.allocCancel != nil {
		h.allocCancel()
	}
	return nil
}

func (h *ChromiumHost) ensureBrowser() error {
	h.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if h.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(h.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", h.Headless))
		options = append(options, allocatorOptionsFromArgs(h.Args)...)

		logger := h.logger()
		h.allocCtx, h.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		h.browserCtx, h.browserCancel = chromedp.NewContext(h.allocCtx,
			chromedp.WithLogf(logger.Debugf),
			chromedp.WithErrorf(logger.Debugf),
		)
	})
	if h.allocCtx == nil || h.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func (h *ChromiumHost) logger() harvest.Logger {
	if h.Logger == nil {
		return harvest.NopLogger{}
	}
	return h.Logger
}

type chromiumSurface struct {
	host      *ChromiumHost
	tabCtx    context.Context
	cancelTab context.CancelFunc
	opts      MountOptions

	releaseOnce sync.Once
	releaseErr  error
}

func (s *chromiumSurface) Settle(ctx context.Context) error {
	if s.host.Settle == SettleDelay {
		delay := s.host.SettleDelay
		if delay <= 0 {
			delay = DefaultSettleDelay
		}
		return s.run(ctx, chromedp.Sleep(delay))
	}

	var broken int
	err := s.run(ctx, chromedp.Evaluate(settleScript, &broken, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return err
	}
	if broken > 0 && s.host.ExternalAssetsPolicy != ExternalAssetsBlock {
		s.host.logger().Debugf("chromium surface: %d image(s) failed to load", broken)
	}
	return nil
}

func (s *chromiumSurface) Capture(ctx context.Context) (Capture, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.ScreenshotScale(RootSelector, s.opts.Scale, &buf, chromedp.ByQuery)); err != nil {
		return Capture{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return Capture{}, fmt.Errorf("decode capture: %w", err)
	}
	return Capture{PNG: buf, Width: cfg.Width, Height: cfg.Height}, nil
}

func (s *chromiumSurface) Release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = chromedp.Cancel(s.tabCtx)
		s.cancelTab()
		s.host.live.Add(-1)
		if errors.Is(s.releaseErr, context.Canceled) {
			s.releaseErr = nil
		}
	})
	return s.releaseErr
}

// run executes actions on the tab, aborting when ctx is done.
func (s *chromiumSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(execCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// blockedURLPatterns covers every http and https request regardless of host
// or port. data: and blob: URLs stay allowed.
func blockedURLPatterns() []*network.BlockPattern {
	return []*network.BlockPattern{
		{URLPattern: "http://*:*/*", Block: true},
		{URLPattern: "https://*:*/*", Block: true},
	}
}

func injectBaseURL(htmlInput []byte, baseURL string) []byte {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if strings.Contains(lower, "<base") {
		return htmlInput
	}

	baseTag := fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			insertPos := headIdx + end + 1
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(baseTag), htmlInput[insertPos:]...)...)
		}
	}
	return append([]byte(baseTag), htmlInput...)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
