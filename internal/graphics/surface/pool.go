// Package surface owns the display surfaces: the flip chain, the offscreen
// render and picture buffers, the depth buffer and the capture surfaces used
// for screenshots and environment mapping.
package surface

import (
	"errors"
	"image"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/palette"
)

// Kind names a pool slot. Kinds are declared in restore order.
type Kind int

const (
	Primary Kind = iota
	Back
	Third
	Render
	ZBuffer
	Picture
	Capture
	Environment

	numKinds
)

var kindNames = [numKinds]string{"primary", "back", "third", "render", "z-buffer", "picture", "capture", "environment"}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Rebuilder recreates the whole display configuration after a surface could
// not be restored.
type Rebuilder interface {
	Rebuild() error
}

// Pool holds the surfaces of one display configuration.
type Pool struct {
	backend  device.Backend
	settings config.DisplaySettings
	adapter  device.Adapter

	surfaces [numKinds]device.Surface
	palette  device.Palette
	dev      device.Device

	rebuilder Rebuilder

	mode     device.DisplayMode
	buffer   image.Point
	viewport image.Rectangle

	envHandle device.TextureHandle
}

func New(b device.Backend) *Pool {
	return &Pool{backend: b}
}

// Configure sets the display settings and adapter the next surfaces are
// created for.
func (p *Pool) Configure(s config.DisplaySettings, a device.Adapter) {
	p.settings = s
	p.adapter = a
}

func (p *Pool) Settings() config.DisplaySettings { return p.settings }
func (p *Pool) Adapter() device.Adapter          { return p.adapter }
func (p *Pool) SetRebuilder(r Rebuilder)         { p.rebuilder = r }
func (p *Pool) SetDevice(d device.Device)        { p.dev = d }
func (p *Pool) Device() device.Device            { return p.dev }
func (p *Pool) Get(k Kind) device.Surface        { return p.surfaces[k] }

// SetVideoMode records the effective display mode and the size of the
// offscreen buffers. The viewport is reset to the whole video area.
func (p *Pool) SetVideoMode(m device.DisplayMode, buffer image.Point) {
	p.mode = m
	p.buffer = buffer
	p.viewport = p.VideoRect()
}

func (p *Pool) VideoMode() device.DisplayMode { return p.mode }
func (p *Pool) BufferSize() image.Point       { return p.buffer }

// VideoRect is the visible area in buffer coordinates.
func (p *Pool) VideoRect() image.Rectangle { return image.Rect(0, 0, p.mode.Width, p.mode.Height) }

// WindowRect is the visible area in primary surface coordinates.
func (p *Pool) WindowRect() image.Rectangle {
	return p.VideoRect().Add(p.backend.WindowOrigin())
}

func (p *Pool) Viewport() image.Rectangle { return p.viewport }

// SetViewport sets the 3D viewport, clipped to the video area.
func (p *Pool) SetViewport(r image.Rectangle) error {
	p.viewport = r.Intersect(p.VideoRect())
	if p.dev != nil {
		return p.dev.SetViewport(p.viewport)
	}
	return nil
}

// IsWindowedVGA reports a palettized desktop in windowed mode.
func (p *Pool) IsWindowedVGA() bool {
	return !p.settings.FullScreen && p.mode.VGA != device.VGANone
}

func (p *Pool) create(d device.SurfaceDesc, code gfxerr.Code) (device.Surface, error) {
	s, err := p.backend.CreateSurface(d)
	if err != nil {
		return nil, gfxerr.Wrap(code, err)
	}
	if err := s.Fill(image.Rectangle{}, 0); err != nil {
		s.Release()
		return nil, gfxerr.Wrap(code, err)
	}
	return s, nil
}

// CreateScreenBuffers builds the fullscreen flip chain: a primary surface with
// one back buffer, or two with triple buffering. Every buffer is cleared.
func (p *Pool) CreateScreenBuffers() error {
	caps := device.CapPrimary | device.CapFlip
	if p.settings.Hardware() {
		caps |= device.Cap3D
	}
	backBuffers := 1
	if p.settings.TripleBuffering {
		backBuffers = 2
	}
	primary, err := p.create(device.SurfaceDesc{Caps: caps, BackBuffers: backBuffers}, gfxerr.CreateScreenBuffers)
	if err != nil {
		return err
	}
	p.surfaces[Primary] = primary

	back, err := primary.BackBuffer()
	if err != nil {
		return gfxerr.Wrap(gfxerr.GetBackBuffer, err)
	}
	p.surfaces[Back] = back
	if err := back.Fill(image.Rectangle{}, 0); err != nil {
		return gfxerr.Wrap(gfxerr.GetBackBuffer, err)
	}

	if !p.settings.TripleBuffering {
		return nil
	}
	third, err := back.BackBuffer()
	if err != nil {
		return gfxerr.Wrap(gfxerr.GetThirdBuffer, err)
	}
	p.surfaces[Third] = third
	if err := third.Fill(image.Rectangle{}, 0); err != nil {
		return gfxerr.Wrap(gfxerr.GetThirdBuffer, err)
	}
	return nil
}

// CreatePrimary creates the windowed primary surface. A palettized desktop
// only works with the software renderer and a true-colour desktop only with
// the hardware one.
func (p *Pool) CreatePrimary() error {
	vga := p.IsWindowedVGA()
	if vga == p.settings.Hardware() {
		return gfxerr.New(gfxerr.WrongBitDepth)
	}
	s, err := p.backend.CreateSurface(device.SurfaceDesc{Caps: device.CapPrimary})
	if err != nil {
		return gfxerr.Wrap(gfxerr.CreatePrimarySurface, err)
	}
	p.surfaces[Primary] = s
	return nil
}

// CreateBack creates the windowed hardware back buffer.
func (p *Pool) CreateBack() error {
	s, err := p.create(device.SurfaceDesc{
		Width: p.buffer.X, Height: p.buffer.Y,
		Caps:   device.CapOffscreen | device.Cap3D,
		Memory: device.MemoryDevice,
	}, gfxerr.CreateBackBuffer)
	if err != nil {
		return err
	}
	p.surfaces[Back] = s
	return nil
}

// CreateCapture creates the surface that mirrors every presented frame.
func (p *Pool) CreateCapture() error {
	mem := device.MemorySystem
	if p.settings.Hardware() {
		mem = device.MemoryDevice
	}
	s, err := p.create(device.SurfaceDesc{
		Width: p.buffer.X, Height: p.buffer.Y,
		Caps:   device.CapOffscreen,
		Memory: mem,
	}, gfxerr.CreateCaptureBuffer)
	if err != nil {
		return err
	}
	p.surfaces[Capture] = s
	return nil
}

// CreateWindowPalette attaches a palette to a palettized primary surface.
// In a window the reserved system entries are kept; fullscreen the game owns
// all 256 entries.
func (p *Pool) CreateWindowPalette() error {
	var entries palette.Entries
	if p.IsWindowedVGA() {
		sys := p.backend.SystemPalette()
		copy(entries[:palette.Reserved], sys[:palette.Reserved])
		copy(entries[palette.Size-palette.Reserved:], sys[palette.Size-palette.Reserved:])
	}
	pal, err := p.backend.CreatePalette(entries)
	if err != nil {
		return gfxerr.Wrap(gfxerr.CreatePalette, err)
	}
	if err := p.surfaces[Primary].SetPalette(pal); err != nil {
		pal.Release()
		return gfxerr.Wrap(gfxerr.SetPalette, err)
	}
	p.palette = pal
	return nil
}

// WindowPalette returns the primary surface palette, nil outside VGA modes.
func (p *Pool) WindowPalette() device.Palette { return p.palette }

// CreateZBuffer creates and attaches the depth buffer. Adapters that remove
// hidden surfaces without one get none.
func (p *Pool) CreateZBuffer() error {
	if p.adapter.ZBufferlessHSR {
		return nil
	}
	z, err := p.backend.CreateSurface(device.SurfaceDesc{
		Width: p.buffer.X, Height: p.buffer.Y,
		Caps:   device.CapZBuffer,
		Memory: device.MemoryDevice,
		ZDepth: p.adapter.ZBufferDepth(),
	})
	if err != nil {
		return gfxerr.Wrap(gfxerr.CreateZBuffer, err)
	}
	if err := p.surfaces[Back].AttachDepth(z); err != nil {
		z.Release()
		return gfxerr.Wrap(gfxerr.AttachZBuffer, err)
	}
	p.surfaces[ZBuffer] = z
	return nil
}

// CreateRender creates the software renderer's system-memory frame buffer.
func (p *Pool) CreateRender() error {
	s, err := p.backend.CreateSurface(device.SurfaceDesc{
		Width: p.buffer.X, Height: p.buffer.Y,
		Caps:   device.CapOffscreen,
		Memory: device.MemorySystem,
	})
	if err != nil {
		return gfxerr.Wrap(gfxerr.CreateRenderBuffer, err)
	}
	p.surfaces[Render] = s
	if err := s.Fill(image.Rectangle{}, 0); err != nil {
		return gfxerr.Wrap(gfxerr.ClearRenderBuffer, err)
	}
	return nil
}

// CreatePicture creates the background picture buffer. Its size comes from
// the render tunables, not from the display mode, so it survives mode
// changes and is only created when missing.
func (p *Pool) CreatePicture() error {
	if p.surfaces[Picture] != nil {
		return nil
	}
	w, h := config.GetPictureSize()
	s, err := p.backend.CreateSurface(device.SurfaceDesc{
		Width: w, Height: h,
		Caps:   device.CapOffscreen,
		Memory: device.MemorySystem,
	})
	if err != nil {
		return gfxerr.Wrap(gfxerr.CreatePictureBuffer, err)
	}
	p.surfaces[Picture] = s
	return nil
}

// PixelFormat reads the primary surface format.
func (p *Pool) PixelFormat() (device.PixelFormat, error) {
	if p.surfaces[Primary] == nil {
		return device.PixelFormat{}, gfxerr.New(gfxerr.GetPixelFormat)
	}
	return p.surfaces[Primary].Format(), nil
}

// Release drops every surface. The picture buffer is kept unless
// clearPicture is set. The device is not released here.
func (p *Pool) Release(clearPicture bool) {
	release := func(k Kind) {
		if s := p.surfaces[k]; s != nil {
			s.Release()
			p.surfaces[k] = nil
		}
	}
	release(ZBuffer)
	if clearPicture {
		release(Picture)
	}
	release(Render)
	if p.palette != nil {
		p.palette.Release()
		p.palette = nil
	}
	release(Third)
	release(Back)
	release(Capture)
	p.ResetEnvironment()
	release(Environment)
	release(Primary)
	p.dev = nil
}

// RestoreLost restores every lost surface in Kind order. The first failure
// hands over to the Rebuilder. Without a primary surface nothing can be
// recovered.
func (p *Pool) RestoreLost() error {
	if p.surfaces[Primary] == nil {
		return &gfxerr.FatalError{Reason: "no front buffer"}
	}
	for k := Primary; k < numKinds; k++ {
		if !p.restorable(k) {
			continue
		}
		if err := p.restore(k); err != nil {
			gfxlog.Logger().Warn("surface restore failed, rebuilding display", "surface", k.String(), "err", err)
			if p.rebuilder == nil {
				return err
			}
			return p.rebuilder.Rebuild()
		}
	}
	return nil
}

func (p *Pool) restorable(k Kind) bool {
	if p.surfaces[k] == nil {
		return false
	}
	switch k {
	case Back:
		return p.settings.FullScreen || p.settings.Hardware()
	case Third:
		return p.settings.TripleBuffering
	case Render:
		return !p.settings.Hardware()
	}
	return true
}

// restore brings back one lost surface. Flip chain members are restored
// through the primary surface and visible buffers are cleared afterwards.
func (p *Pool) restore(k Kind) error {
	s := p.surfaces[k]
	if !s.IsLost() {
		return nil
	}
	target := s
	chained := (k == Back || k == Third) && p.settings.FullScreen
	if chained {
		target = p.surfaces[Primary]
	}
	if err := target.Restore(); err != nil {
		return err
	}
	if s.IsLost() {
		if err := s.Restore(); err != nil {
			return err
		}
	}
	switch {
	case k == Primary && p.settings.FullScreen, chained, k == Capture:
		return s.Fill(image.Rectangle{}, 0)
	}
	return nil
}

func (p *Pool) ensure(s device.Surface) error {
	if s.IsLost() {
		return s.Restore()
	}
	return nil
}

// ClearRegion fills r of one surface. A missing surface is skipped.
func (p *Pool) ClearRegion(k Kind, r image.Rectangle, color uint32) error {
	s := p.surfaces[k]
	if s == nil {
		return nil
	}
	if err := p.ensure(s); err != nil {
		return err
	}
	return s.Fill(r, color)
}

// ClearFlags select buffers for Clear.
type ClearFlags uint32

const (
	ClearBack ClearFlags = 1 << iota
	ClearZBuffer
	// ClearPrimary also clears the capture surface.
	ClearPrimary
	ClearThird
	ClearRender
	// ClearPicture always clears the whole picture buffer.
	ClearPicture
	// ClearWindowPrimary clears the window area of a windowed primary.
	ClearWindowPrimary
	// ClearViewportOnly limits the other flags to the viewport.
	ClearViewportOnly
)

// Clear fills the selected buffers. With the hardware renderer the back
// and depth buffers are cleared through the device.
func (p *Pool) Clear(flags ClearFlags, color uint32) error {
	r := p.VideoRect()
	if flags&ClearViewportOnly != 0 {
		r = p.viewport
	}
	var errs []error
	if p.settings.Hardware() {
		var df device.ClearFlags
		if flags&ClearBack != 0 {
			df |= device.ClearTarget
		}
		if flags&ClearZBuffer != 0 {
			df |= device.ClearZBuffer
		}
		if df != 0 && p.dev != nil {
			errs = append(errs, p.dev.Clear(r, df, color))
		}
	} else if flags&ClearBack != 0 {
		errs = append(errs, p.ClearRegion(Back, r, color))
	}
	if flags&ClearPrimary != 0 {
		errs = append(errs, p.ClearRegion(Primary, r, color), p.ClearRegion(Capture, r, color))
	}
	if flags&ClearThird != 0 {
		errs = append(errs, p.ClearRegion(Third, r, color))
	}
	if flags&ClearRender != 0 {
		errs = append(errs, p.ClearRegion(Render, r, color))
	}
	if flags&ClearPicture != 0 {
		errs = append(errs, p.ClearRegion(Picture, image.Rectangle{}, color))
	}
	if flags&ClearWindowPrimary != 0 {
		errs = append(errs, p.ClearRegion(Primary, p.WindowRect(), color))
	}
	return errors.Join(errs...)
}

// Present shows the frame. Fullscreen flips the chain, copying the software
// render buffer to the back buffer first. Windowed blits src to the window
// and mirrors it into the capture surface. An empty src presents the whole
// video area.
func (p *Pool) Present(src image.Rectangle, pump bool) error {
	if err := p.RestoreLost(); err != nil {
		return err
	}
	if src.Empty() {
		src = p.VideoRect()
	}
	hw := p.settings.Hardware()
	if p.settings.FullScreen {
		if !hw {
			if err := p.surfaces[Back].Blit(src, p.surfaces[Render], src); err != nil {
				return err
			}
		}
		if err := p.surfaces[Primary].Flip(); err != nil {
			return err
		}
	} else {
		from := p.surfaces[Back]
		if !hw {
			from = p.surfaces[Render]
		}
		dst := src.Add(p.backend.WindowOrigin())
		if err := p.surfaces[Primary].Blit(dst, from, src); err != nil {
			return err
		}
		if c := p.surfaces[Capture]; c != nil {
			if err := c.Blit(src, from, src); err != nil {
				return err
			}
		}
	}
	if pump {
		p.backend.PumpMessages()
	}
	return nil
}

// WaitFlip blocks until the last flip completes. It only waits on drivers
// flagged FlipBroken, and only in fullscreen.
func (p *Pool) WaitFlip() {
	if !p.settings.FlipBroken || !p.settings.FullScreen {
		return
	}
	primary := p.surfaces[Primary]
	if primary == nil {
		return
	}
	for !primary.FlipDone() {
	}
}
