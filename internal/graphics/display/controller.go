// Package display realizes display settings on a backend. A configuration
// change tears the whole device stack down and builds it again; when the
// build fails the previous settings and then a safe software mode are tried
// before giving up.
package display

import (
	"errors"
	"fmt"
	"image"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/palette"
	"gfxcore/internal/graphics/state"
	"gfxcore/internal/graphics/surface"
	"gfxcore/internal/graphics/texture"
)

// Minimum window client size.
const (
	MinWindowWidth  = 320
	MinWindowHeight = 200
)

// windowSlack is how much larger than the window the buffers may stay
// before a resize rebuilds them.
const windowSlack = 0x40

type State int

const (
	Uninitialized State = iota
	Active
	Applying
	// Suspended is an Active configuration whose stack was released for
	// an external takeover of the display.
	Suspended
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Applying:
		return "applying"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome tells which candidate of the fallback ladder became active.
type Outcome int

const (
	Applied Outcome = iota
	FellBackPrevious
	FellBackSafe
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case FellBackPrevious:
		return "previous"
	case FellBackSafe:
		return "safe"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes the configuration that is live after a change.
type Result struct {
	Outcome  Outcome
	Settings config.DisplaySettings
	// Mode is WIDTHxHEIGHTxBPP in fullscreen and WIDTHxHEIGHT in a window.
	Mode string
}

// LevelReloader reloads the current level's graphics when the pixel
// category of the display or of the textures changed.
type LevelReloader interface {
	ReloadLevelGraphics(palettes, textures bool) error
}

// ModeNotifier is told the mode string after every applied change.
type ModeNotifier interface {
	ModeChanged(mode string)
}

// LevelPages is the current level's texture page set. Its cached handles
// go stale on every rebuild.
type LevelPages interface {
	RefreshHandles()
	Free()
}

// Controller owns the device stack of one backend.
type Controller struct {
	backend  device.Backend
	pool     *surface.Pool
	textures *texture.Allocator
	palettes *palette.Registry
	cache    *state.Cache
	dev      device.Device

	reloader LevelReloader
	notifier ModeNotifier
	pages    LevelPages

	state    State
	settings config.DisplaySettings

	// started is set once a stack has been built; the pixel category of
	// that build is kept to detect changes.
	started     bool
	windowedVGA bool
	textures16  bool

	// reloadPalettes and reloadTextures hold a category change seen by the
	// last successful build, reloaded once the build is committed.
	reloadPalettes bool
	reloadTextures bool
}

// New creates a controller. Texture pages and palettes outlive any single
// configuration; the controller rebinds them to every new device.
func New(b device.Backend, textures *texture.Allocator, palettes *palette.Registry) *Controller {
	c := &Controller{
		backend:  b,
		pool:     surface.New(b),
		textures: textures,
		palettes: palettes,
		cache:    state.New(nil),
	}
	c.pool.SetRebuilder(c)
	textures.OnRelease = c.cache.ForgetTexture
	return c
}

func (c *Controller) SetLevelReloader(r LevelReloader) { c.reloader = r }
func (c *Controller) SetModeNotifier(n ModeNotifier)   { c.notifier = n }
func (c *Controller) SetLevelPages(p LevelPages)       { c.pages = p }

func (c *Controller) State() State                     { return c.state }
func (c *Controller) Settings() config.DisplaySettings { return c.settings }
func (c *Controller) Pool() *surface.Pool              { return c.pool }
func (c *Controller) Cache() *state.Cache              { return c.cache }
func (c *Controller) Textures() *texture.Allocator     { return c.textures }

// Device returns the 3D device, nil with the software renderer.
func (c *Controller) Device() device.Device { return c.dev }

// Mode formats the live mode.
func (c *Controller) Mode() string {
	m := c.pool.VideoMode()
	if c.settings.FullScreen {
		return fmt.Sprintf("%dx%dx%d", m.Width, m.Height, m.BPP)
	}
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

type candidate struct {
	settings config.DisplaySettings
	outcome  Outcome
}

// Start builds the first configuration. If s cannot be built the safe
// configuration is tried.
func (c *Controller) Start(s config.DisplaySettings) (Result, error) {
	if c.state != Uninitialized {
		return Result{}, fmt.Errorf("display already started (%v)", c.state)
	}
	c.state = Applying
	res, err := c.ladder([]candidate{
		{s, Applied},
		{c.safeSettings(s), FellBackSafe},
	}, false)
	if err != nil {
		return res, err
	}
	c.notify(res.Mode)
	return res, nil
}

// Apply replaces the live configuration with s. When s cannot be built the
// previous settings are rebuilt, then the safe configuration. Exactly one of
// them is live when Apply returns without error; a FatalError means none
// could be built.
func (c *Controller) Apply(s config.DisplaySettings) (Result, error) {
	switch c.state {
	case Uninitialized:
		return c.Start(s)
	case Terminated:
		return Result{}, &gfxerr.FatalError{Reason: "display terminated"}
	}
	old := c.settings
	c.state = Applying
	c.finish(false)
	res, err := c.ladder([]candidate{
		{s, Applied},
		{old, FellBackPrevious},
		{c.safeSettings(old), FellBackSafe},
	}, false)
	if err != nil {
		return res, err
	}

	switch {
	case c.settings.RenderMode != old.RenderMode:
		c.reloadLevel(true, true)
	case !c.settings.Hardware() && c.settings.FullScreen != old.FullScreen:
		c.reloadLevel(true, false)
	default:
		c.reloadLevel(false, false)
	}
	c.notify(res.Mode)
	return res, nil
}

// Update applies s with the least work the differences allow. Filter,
// dither and perspective changes only reprogram the device state, and the
// flip workaround only reconfigures the pool; a window resize that still
// fits the buffers only moves the viewport. Structural changes, the texture
// depth included, go through Apply. A different adapter is ignored until
// restart.
func (c *Controller) Update(s config.DisplaySettings) (Result, error) {
	if c.state != Active {
		return Result{}, fmt.Errorf("update display: controller is %v", c.state)
	}
	old := c.settings
	if s.Adapter != old.Adapter {
		gfxlog.Logger().Info("adapter change deferred to restart", "adapter", s.Adapter)
		return c.result(Applied), nil
	}
	initState := s.PerspectiveCorrect != old.PerspectiveCorrect ||
		s.Dither != old.Dither ||
		s.BilinearFiltering != old.BilinearFiltering

	if s.RenderMode != old.RenderMode || s.Mode != old.Mode || s.FullScreen != old.FullScreen ||
		s.ZBuffer != old.ZBuffer || s.TripleBuffering != old.TripleBuffering ||
		s.Disable16BitTextures != old.Disable16BitTextures {
		return c.Apply(s)
	}

	rebuild := false
	if !s.FullScreen && (s.WindowWidth != old.WindowWidth || s.WindowHeight != old.WindowHeight) {
		m, err := c.backend.SetWindowed(max(s.WindowWidth, MinWindowWidth), max(s.WindowHeight, MinWindowHeight))
		if err != nil {
			return c.result(Applied), gfxerr.Wrap(gfxerr.GoWindowed, err)
		}
		s.WindowWidth, s.WindowHeight = m.Width, m.Height
		if m.Width != old.WindowWidth || m.Height != old.WindowHeight {
			buf := c.pool.BufferSize()
			if buf.X < m.Width || buf.X-m.Width > windowSlack || buf.Y < m.Height || buf.Y-m.Height > windowSlack {
				rebuild = true
			} else {
				c.settings.WindowWidth, c.settings.WindowHeight = m.Width, m.Height
				c.pool.SetVideoMode(m, buf)
				if c.settings.Hardware() {
					if err := c.pool.SetViewport(c.pool.VideoRect()); err != nil {
						return c.result(Applied), err
					}
				}
			}
		}
	}

	if initState {
		c.settings.PerspectiveCorrect = s.PerspectiveCorrect
		c.settings.Dither = s.Dither
		c.settings.BilinearFiltering = s.BilinearFiltering
		if c.settings.Hardware() {
			if err := c.cache.Init(c.stateConfig(c.settings)); err != nil {
				return c.result(Applied), err
			}
		}
	}
	c.settings.FlipBroken = s.FlipBroken
	c.pool.Configure(c.settings, c.pool.Adapter())

	if rebuild {
		if err := c.pool.Clear(surface.ClearWindowPrimary, 0); err != nil {
			gfxlog.Logger().Debug("window clear failed", "err", err)
		}
		return c.Apply(s)
	}
	return c.result(Applied), nil
}

// Suspend releases the device stack while something else owns the display,
// such as a video player. Texture system copies are kept.
func (c *Controller) Suspend() {
	if c.state != Active {
		return
	}
	c.finish(false)
	c.state = Suspended
}

// Resume rebuilds the suspended configuration without reloading textures,
// falling back to the safe configuration.
func (c *Controller) Resume() (Result, error) {
	if c.state != Suspended {
		return Result{}, fmt.Errorf("resume display: controller is %v", c.state)
	}
	c.state = Applying
	res, err := c.ladder([]candidate{
		{c.settings, Applied},
		{c.safeSettings(c.settings), FellBackSafe},
	}, true)
	if err != nil {
		return res, err
	}
	c.reloadLevel(false, false)
	return res, nil
}

// Rebuild applies the live settings again. The surface pool calls it when
// a lost surface cannot be restored.
func (c *Controller) Rebuild() error {
	if _, err := c.Apply(c.settings); err != nil {
		return err
	}
	if c.settings.Hardware() && c.pages != nil {
		c.pages.RefreshHandles()
	}
	return nil
}

// Shutdown releases everything, texture pages included.
func (c *Controller) Shutdown() {
	if c.state == Uninitialized {
		return
	}
	c.finish(true)
	c.state = Uninitialized
}

func (c *Controller) ladder(cands []candidate, reset bool) (Result, error) {
	c.reloadPalettes, c.reloadTextures = false, false
	var errs []error
	for i, cand := range cands {
		if i > 0 {
			c.finish(false)
		}
		err := c.start(cand.settings, reset && i == 0)
		if err == nil {
			c.settings = cand.settings
			c.state = Active
			res := c.result(cand.outcome)
			if cand.outcome != Applied {
				gfxlog.Logger().Warn("display fell back", "outcome", cand.outcome.String(), "mode", res.Mode, "err", errors.Join(errs...))
			} else {
				gfxlog.Logger().Info("display mode set", "mode", res.Mode, "renderer", cand.settings.RenderMode.String())
			}
			return res, nil
		}
		gfxlog.Logger().Warn("display build failed", "attempt", cand.outcome.String(), "err", err)
		errs = append(errs, fmt.Errorf("%v settings: %w", cand.outcome, err))
	}
	c.finish(false)
	c.state = Terminated
	gfxlog.Logger().Error("no usable display configuration", "err", errors.Join(errs...))
	return Result{}, &gfxerr.FatalError{Reason: "can't reinitialise renderer"}
}

func (c *Controller) result(o Outcome) Result {
	return Result{Outcome: o, Settings: c.settings, Mode: c.Mode()}
}

func (c *Controller) notify(mode string) {
	if c.notifier != nil {
		c.notifier.ModeChanged(mode)
	}
}

// safeSettings is the software fullscreen configuration on the primary
// adapter closest to 640x480.
func (c *Controller) safeSettings(from config.DisplaySettings) config.DisplaySettings {
	s := from
	s.Adapter = ""
	s.RenderMode = config.RenderSoftware
	s.FullScreen = true
	s.TripleBuffering = false

	adapters := c.backend.Adapters()
	var primary device.Adapter
	for _, a := range adapters {
		if a.Primary {
			primary = a
			break
		}
	}
	if primary.Name == "" && len(adapters) > 0 {
		primary = adapters[0]
	}
	modes := append([]device.DisplayMode(nil), primary.SoftwareModes...)
	device.SortModes(modes)
	s.Mode, _ = device.ClosestMode(modes, device.DisplayMode{Width: 640, Height: 480})
	return s
}

func (c *Controller) stateConfig(s config.DisplaySettings) state.Config {
	return state.Config{
		ZBuffer:         s.ZBuffer,
		ZSurface:        c.pool.Get(surface.ZBuffer) != nil,
		Bilinear:        s.BilinearFiltering,
		Perspective:     s.PerspectiveCorrect,
		Dither:          s.Dither,
		ShadeRestricted: c.pool.Adapter().ShadeRestricted,
		TexturesAlpha:   c.textures.HasAlpha(),
	}
}

// start builds the stack for s. A change of pixel category since the last
// build marks the level for reloading, unless reset is set; otherwise the
// device copies of the texture pages are rebuilt.
func (c *Controller) start(s config.DisplaySettings, reset bool) error {
	adapter, err := c.backend.SelectAdapter(s.Adapter)
	if err != nil {
		return gfxerr.Wrap(gfxerr.PreferredAdapterNotFound, err)
	}
	p := c.pool
	p.Configure(s, adapter)

	if s.FullScreen {
		if s.Mode.IsZero() {
			return gfxerr.New(gfxerr.GoFullScreen)
		}
		if err := c.backend.SetFullscreen(s.Mode); err != nil {
			return gfxerr.Wrap(gfxerr.GoFullScreen, err)
		}
		if err := p.CreateScreenBuffers(); err != nil {
			return err
		}
		p.SetVideoMode(s.Mode, image.Pt(s.Mode.Width, s.Mode.Height))
	} else {
		m, err := c.backend.SetWindowed(max(s.WindowWidth, MinWindowWidth), max(s.WindowHeight, MinWindowHeight))
		if err != nil {
			return gfxerr.Wrap(gfxerr.GoWindowed, err)
		}
		p.SetVideoMode(m, image.Pt((m.Width+0x1F)&^0x1F, (m.Height+0x1F)&^0x1F))
		if err := p.CreatePrimary(); err != nil {
			return err
		}
		if s.Hardware() {
			if err := p.CreateBack(); err != nil {
				return err
			}
			if err := p.CreateCapture(); err != nil {
				return err
			}
		}
	}

	if _, err := p.PixelFormat(); err != nil {
		return err
	}
	if p.VideoMode().VGA != device.VGANone {
		if err := p.CreateWindowPalette(); err != nil {
			return err
		}
	}

	textures16 := false
	if s.Hardware() {
		if s.ZBuffer {
			if err := p.CreateZBuffer(); err != nil {
				return err
			}
		}
		dev, err := c.backend.CreateDevice(p.Get(surface.Back))
		if err != nil {
			return gfxerr.Wrap(gfxerr.CreateDevice, err)
		}
		c.dev = dev
		p.SetDevice(dev)
		n, err := texture.Negotiate(dev.TextureFormats(), s.Disable16BitTextures)
		if err != nil {
			return err
		}
		c.textures.Bind(dev, n)
		textures16 = n.Format.BPP >= 16
		c.cache.Attach(dev)
		if err := c.cache.Init(c.stateConfig(s)); err != nil {
			return err
		}
		if err := p.SetViewport(p.VideoRect()); err != nil {
			return gfxerr.Wrap(gfxerr.SetViewport2, err)
		}
	} else {
		if err := p.CreateRender(); err != nil {
			return err
		}
		if err := p.CreatePicture(); err != nil {
			return err
		}
	}

	vga := p.IsWindowedVGA()
	vgaChanged, fmtChanged := vga != c.windowedVGA, textures16 != c.textures16
	switch {
	case c.started && !reset && (vgaChanged || fmtChanged) && c.reloader != nil:
		c.reloadPalettes, c.reloadTextures = vgaChanged, fmtChanged
	case s.Hardware():
		if err := c.textures.Reload(true); err != nil {
			gfxlog.Logger().Warn("texture reload incomplete", "err", err)
		}
		if c.pages != nil {
			c.pages.RefreshHandles()
		}
	}
	c.windowedVGA, c.textures16 = vga, textures16
	c.started = true
	return nil
}

// reloadLevel runs one level reload for the committed configuration,
// folding in any category change the build recorded.
func (c *Controller) reloadLevel(palettes, textures bool) {
	palettes = palettes || c.reloadPalettes
	textures = textures || c.reloadTextures
	c.reloadPalettes, c.reloadTextures = false, false
	if c.reloader == nil || (!palettes && !textures) {
		return
	}
	gfxlog.Logger().Info("reloading level graphics", "palettes", palettes, "textures", textures)
	if err := c.reloader.ReloadLevelGraphics(palettes, textures); err != nil {
		gfxlog.Logger().Warn("level graphics reload failed", "err", err)
	}
}

// finish tears the stack down. Texture pages and palettes survive unless
// clearTextures is set.
func (c *Controller) finish(clearTextures bool) {
	if clearTextures {
		if c.pages != nil {
			c.pages.Free()
		}
		c.textures.FreeAll()
		c.palettes.FreeAll()
	}
	c.textures.Unbind()
	c.cache.Attach(nil)
	if c.dev != nil {
		c.dev.Release()
		c.dev = nil
	}
	c.pool.Release(clearTextures)
	if clearTextures {
		c.started = false
	}
}
