package harvestpdf

import (
	"context"
	"errors"
)

const (
	// RootSelector selects the element captured from a mounted document.
	RootSelector = "#render-root"

	DefaultWidth = 800
	DefaultScale = 2.0
)

// MountOptions configures a mounted surface.
type MountOptions struct {
	Width int
	Scale float64
}

// Capture is a rasterized render root.
type Capture struct {
	PNG    []byte
	Width  int
	Height int
}

// Host provides off-screen surfaces.
type Host interface {
	Mount(ctx context.Context, html []byte, opts MountOptions) (Surface, error)
}

// Surface is one mounted document. Release must be called exactly once
// after a successful Mount; later calls are no-ops.
type Surface interface {
	Settle(ctx context.Context) error
	Capture(ctx context.Context) (Capture, error)
	Release() error
}

// HostFunc adapts a function to a Host.
type HostFunc func(ctx context.Context, html []byte, opts MountOptions) (Surface, error)

func (f HostFunc) Mount(ctx context.Context, html []byte, opts MountOptions) (Surface, error) {
	if f == nil {
		return nil, errors.New("host func is nil")
	}
	return f(ctx, html, opts)
}

func (o MountOptions) withDefaults() MountOptions {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	return o
}
