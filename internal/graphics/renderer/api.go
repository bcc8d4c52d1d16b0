package renderer

import (
	"image"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/state"
	"gfxcore/internal/graphics/surface"
)

// FrameContext provides shared context for all layers
type FrameContext struct {
	Pool  *surface.Pool
	Cache *state.Cache
	// Target is the surface the frame was drawn into: the back buffer in
	// hardware mode, the render buffer in software mode.
	Target   device.Surface
	Viewport image.Rectangle
	Frame    int
}

// Layer defines the lifecycle for features drawn on top of the draw list.
// Render runs after the scene is closed, so layers may lock Target.
type Layer interface {
	Init() error
	Render(ctx FrameContext) error
	Dispose()
	SetViewport(r image.Rectangle)
}
