// Package app runs the demo frame loop on top of the display stack.
package app

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/display"
	"gfxcore/internal/graphics/drawlist"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/overlay"
	"gfxcore/internal/graphics/palette"
	"gfxcore/internal/graphics/renderer"
	"gfxcore/internal/graphics/surface"
	"gfxcore/internal/graphics/texture"
	"gfxcore/internal/profiling"
	"gfxcore/pkg/pagefile"
)

// slowFrame is the frame time above which the busiest tasks are logged.
const slowFrame = 16 * time.Millisecond

type Options struct {
	// Backend is a registered backend name.
	Backend  string
	Settings config.DisplaySettings
	// AssetsPath is the directory holding page files.
	AssetsPath string
	// Level names a page file in AssetsPath. Empty uses generated pages.
	Level string
}

type App struct {
	backend  device.Backend
	palettes *palette.Registry
	textures *texture.Allocator
	ctl      *display.Controller
	pages    *texture.PageSet
	loader   *pagefile.Loader
	info     *overlay.ModeInfo
	renderer *renderer.Renderer
	prof     *profiling.Profiler
	scene    *drawlist.List

	level     string
	pageCount int
	loaded    bool

	fpsLimiter *FPSLimiter
}

// New opens the backend and brings up the display stack.
func New(opts Options) (*App, error) {
	b, err := device.Open(opts.Backend)
	if err != nil {
		return nil, err
	}
	a := &App{
		backend:    b,
		palettes:   palette.NewRegistry(b),
		loader:     pagefile.NewLoader(opts.AssetsPath),
		level:      opts.Level,
		info:       overlay.NewModeInfo(overlay.DefaultFrames),
		prof:       profiling.New(),
		scene:      drawlist.NewList(drawlist.DefaultBudget),
		fpsLimiter: NewFPSLimiter(),
	}
	a.textures = texture.NewAllocator(0, b, a.palettes)
	a.pages = texture.NewPageSet(a.textures, a.palettes)
	a.ctl = display.New(b, a.textures, a.palettes)
	a.ctl.SetModeNotifier(a.info)
	a.ctl.SetLevelPages(a.pages)
	a.ctl.SetLevelReloader(a)

	res, err := a.ctl.Start(opts.Settings)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("start display: %w", err)
	}
	gfxlog.Logger().Info("display started", "mode", res.Mode, "outcome", res.Outcome, "render", res.Settings.RenderMode)

	if err := a.ensureLevel(); err != nil {
		a.ctl.Shutdown()
		b.Close()
		return nil, err
	}

	a.renderer, err = renderer.New(a.ctl, a.pages, a.prof, a.info)
	if err != nil {
		a.ctl.Shutdown()
		b.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Controller() *display.Controller { return a.ctl }
func (a *App) Renderer() *renderer.Renderer    { return a.renderer }
func (a *App) ModeInfo() *overlay.ModeInfo     { return a.info }

// Apply switches to s and reloads the level if the new stack needs it.
func (a *App) Apply(s config.DisplaySettings) (display.Result, error) {
	res, err := a.ctl.Apply(s)
	if err != nil {
		return res, err
	}
	if err := a.ensureLevel(); err != nil {
		return res, err
	}
	return res, a.renderer.SetViewport(a.ctl.Pool().Viewport())
}

// Run renders frames until the window closes, or frames frames when
// frames is positive.
func (a *App) Run(frames int) error {
	for n := 0; frames <= 0 || n < frames; n++ {
		if a.backend.ShouldClose() {
			return nil
		}
		if err := a.tick(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) tick() error {
	startTick := time.Now()
	suspended := a.ctl.State() == display.Suspended

	if !suspended {
		if err := a.render(); err != nil {
			if gfxerr.IsFatal(err) {
				return err
			}
			gfxlog.Logger().Warn("frame failed", "err", err)
		}
	} else {
		a.backend.PumpMessages()
	}

	if d := time.Since(startTick); d > slowFrame {
		gfxlog.Logger().Debug("slow frame", "duration", d, "top", a.prof.TopN(5))
	}
	a.fpsLimiter.Wait(suspended)
	return nil
}

func (a *App) render() error {
	r := a.renderer
	if err := r.BeginFrame(); err != nil {
		return err
	}

	flags := surface.ClearRender
	if a.ctl.Settings().Hardware() {
		flags = surface.ClearBack
		if a.ctl.Settings().ZBuffer {
			flags |= surface.ClearZBuffer
		}
	}
	var errs []error
	errs = append(errs, r.Clear(flags, 0))

	stop := a.prof.Track("app.buildScene")
	buildScene(a.scene, a.ctl.Pool().Viewport(), r.Frame(), a.pageCount)
	stop()
	errs = append(errs, r.Dispatch(a.scene))

	errs = append(errs, r.Present(image.Rectangle{}, true))
	return errors.Join(errs...)
}

// Close tears down the display stack and the backend.
func (a *App) Close() error {
	if a.renderer != nil {
		a.renderer.Dispose()
	}
	a.ctl.Shutdown()
	return a.backend.Close()
}
