package renderer

import (
	"errors"
	"fmt"
	"image"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/display"
	"gfxcore/internal/graphics/drawlist"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/hud"
	"gfxcore/internal/graphics/surface"
	"gfxcore/internal/graphics/texture"
	"gfxcore/internal/profiling"
)

// Renderer orchestrates one frame: restore, draw list, layers, present.
type Renderer struct {
	ctl        *display.Controller
	pages      *texture.PageSet
	dispatcher *drawlist.Dispatcher
	layers     []Layer
	prof       *profiling.Profiler

	frame   int
	inScene bool
}

// New creates a renderer over ctl and initialises the layers.
func New(ctl *display.Controller, pages *texture.PageSet, prof *profiling.Profiler, layers ...Layer) (*Renderer, error) {
	if prof == nil {
		prof = profiling.New()
	}
	cache := ctl.Cache()
	var handles drawlist.PageHandles
	if pages != nil {
		handles = pages
	}
	r := &Renderer{
		ctl:        ctl,
		pages:      pages,
		dispatcher: drawlist.NewDispatcher(cache, handles, ctl.Textures(), ctl.Pool(), hud.NewBars(cache)),
		layers:     layers,
		prof:       prof,
	}
	for _, l := range layers {
		if err := l.Init(); err != nil {
			r.Dispose()
			return nil, err
		}
		l.SetViewport(ctl.Pool().Viewport())
	}
	return r, nil
}

func (r *Renderer) Profiler() *profiling.Profiler    { return r.prof }
func (r *Renderer) Dispatcher() *drawlist.Dispatcher { return r.dispatcher }
func (r *Renderer) Frame() int                       { return r.frame }

func (r *Renderer) hardware() bool {
	return r.ctl.Settings().Hardware() && r.ctl.Device() != nil
}

// BeginFrame prepares the surfaces for drawing: lost surfaces are restored,
// page handles refreshed, the previous flip awaited and the scene opened.
func (r *Renderer) BeginFrame() error {
	r.prof.ResetFrame()
	defer r.prof.Track("renderer.BeginFrame")()

	pool := r.ctl.Pool()
	if err := pool.RestoreLost(); err != nil {
		if gfxerr.IsFatal(err) {
			return err
		}
		gfxlog.Logger().Warn("surface restore failed", "err", err)
	}
	if r.hardware() && r.pages != nil {
		r.pages.RefreshHandles()
	}
	pool.WaitFlip()
	pool.ResetEnvironment()

	if r.hardware() {
		if err := r.ctl.Device().BeginScene(); err != nil {
			return fmt.Errorf("begin scene: %w", err)
		}
		r.inScene = true
	}
	return nil
}

// Clear clears the buffers named by flags inside the viewport.
func (r *Renderer) Clear(flags surface.ClearFlags, color uint32) error {
	defer r.prof.Track("surface.Clear")()
	return r.ctl.Pool().Clear(flags, color)
}

// Dispatch submits a draw list. Without a hardware device the list is
// dropped.
func (r *Renderer) Dispatch(l *drawlist.List) error {
	if !r.inScene {
		return nil
	}
	defer r.prof.Track("renderer.Dispatch")()
	return r.dispatcher.Dispatch(l)
}

// Present closes the scene, renders the layers and shows src. An empty src
// presents the whole video rectangle.
func (r *Renderer) Present(src image.Rectangle, pump bool) error {
	pool := r.ctl.Pool()
	var errs []error
	if r.inScene {
		r.inScene = false
		if dev := r.ctl.Device(); dev != nil {
			errs = append(errs, dev.EndScene())
		}
	}

	ctx := FrameContext{
		Pool:     pool,
		Cache:    r.ctl.Cache(),
		Target:   r.target(),
		Viewport: pool.Viewport(),
		Frame:    r.frame,
	}
	if ctx.Target != nil {
		stop := r.prof.Track("renderer.Layers")
		for _, l := range r.layers {
			errs = append(errs, l.Render(ctx))
		}
		stop()
	}

	stop := r.prof.Track("surface.Present")
	errs = append(errs, pool.Present(src, pump))
	stop()
	r.frame++
	return errors.Join(errs...)
}

func (r *Renderer) target() device.Surface {
	pool := r.ctl.Pool()
	if r.ctl.Settings().Hardware() {
		return pool.Get(surface.Back)
	}
	return pool.Get(surface.Render)
}

// SetViewport changes the drawing area and tells every layer.
func (r *Renderer) SetViewport(v image.Rectangle) error {
	if err := r.ctl.Pool().SetViewport(v); err != nil {
		return err
	}
	for _, l := range r.layers {
		l.SetViewport(r.ctl.Pool().Viewport())
	}
	return nil
}

// Dispose releases the layers in reverse order.
func (r *Renderer) Dispose() {
	for i := len(r.layers) - 1; i >= 0; i-- {
		r.layers[i].Dispose()
	}
}
