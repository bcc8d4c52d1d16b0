// Package headless is an in-memory graphics backend. Surfaces are plain byte
// slices, the 3D device records what it is asked to draw, and Faults lets a
// caller simulate unavailable modes, failing allocations and device loss.
package headless

import (
	"fmt"
	"image"

	"gfxcore/internal/graphics/device"
)

func init() {
	device.Register("headless", func() (device.Backend, error) {
		return New(Config{}), nil
	})
}

// Config describes the simulated machine. Zero fields take defaults.
type Config struct {
	Adapters       []device.Adapter
	DesktopFormat  device.PixelFormat
	DesktopSize    image.Point
	TextureFormats []device.PixelFormat
	SystemPalette  *[256]device.RGB
}

// Faults controls simulated failures.
type Faults struct {
	// FailCreate vetoes surface creation.
	FailCreate func(d device.SurfaceDesc) bool
	// UnavailableModes are listed by the adapter but refused by SetFullscreen.
	UnavailableModes []device.DisplayMode
	FailWindowed     bool
	FailDevice       bool
	FailRestore      bool
	// FlipBusy is the number of FlipDone polls that report a pending flip.
	FlipBusy int
}

// DefaultAdapter is the adapter used when Config.Adapters is empty.
func DefaultAdapter() device.Adapter {
	return device.Adapter{
		Name:    "Headless Display",
		Primary: true,
		HardwareModes: []device.DisplayMode{
			{Width: 640, Height: 480, BPP: 16},
			{Width: 800, Height: 600, BPP: 16},
			{Width: 1024, Height: 768, BPP: 16},
			{Width: 1024, Height: 768, BPP: 32},
		},
		SoftwareModes: []device.DisplayMode{
			{Width: 320, Height: 200, BPP: 8, VGA: device.VGA256Color},
			{Width: 640, Height: 480, BPP: 8, VGA: device.VGA256Color},
			{Width: 800, Height: 600, BPP: 8, VGA: device.VGA256Color},
		},
		MaxTextureSize: 2048,
		ZBufferDepths:  []int{16, 24},
	}
}

// DefaultSystemPalette is a ramp with the 20 reserved entries set to fixed
// colours.
func DefaultSystemPalette() [256]device.RGB {
	var p [256]device.RGB
	for i := range p {
		p[i] = device.RGB{R: uint8(i), G: uint8(i), B: uint8(i)}
	}
	for i := 0; i < 10; i++ {
		p[i] = device.RGB{R: uint8(i * 25), G: 0, B: 0}
		p[246+i] = device.RGB{R: 0, G: 0, B: uint8(i * 25)}
	}
	p[255] = device.RGB{R: 0xFF, G: 0xFF, B: 0xFF}
	return p
}

// Backend is the headless device.Backend.
type Backend struct {
	Faults Faults

	adapters       []device.Adapter
	current        int
	desktop        device.PixelFormat
	desktopSize    image.Point
	textureFormats []device.PixelFormat
	sysPal         [256]device.RGB

	fullscreen bool
	mode       device.DisplayMode
	origin     image.Point

	surfaces map[*Surface]struct{}
	devices  []*Device
	closed   bool
}

func New(cfg Config) *Backend {
	b := &Backend{
		adapters:       cfg.Adapters,
		desktop:        cfg.DesktopFormat,
		desktopSize:    cfg.DesktopSize,
		textureFormats: cfg.TextureFormats,
		surfaces:       make(map[*Surface]struct{}),
		origin:         image.Pt(64, 48),
	}
	if len(b.adapters) == 0 {
		b.adapters = []device.Adapter{DefaultAdapter()}
	}
	if b.desktop.BPP == 0 {
		b.desktop = device.Format565
	}
	if b.desktopSize == (image.Point{}) {
		b.desktopSize = image.Pt(1280, 1024)
	}
	if b.textureFormats == nil {
		b.textureFormats = []device.PixelFormat{
			device.FormatIndexed8, device.Format565, device.Format1555, device.Format4444,
		}
	}
	if cfg.SystemPalette != nil {
		b.sysPal = *cfg.SystemPalette
	} else {
		b.sysPal = DefaultSystemPalette()
	}
	return b
}

func (b *Backend) Name() string { return "headless" }

func (b *Backend) Adapters() []device.Adapter {
	out := make([]device.Adapter, len(b.adapters))
	copy(out, b.adapters)
	return out
}

func (b *Backend) SelectAdapter(name string) (device.Adapter, error) {
	for i, a := range b.adapters {
		if (name == "" && a.Primary) || (name != "" && a.Name == name) {
			b.current = i
			return a, nil
		}
	}
	return device.Adapter{}, fmt.Errorf("adapter %q not found", name)
}

func (b *Backend) SetFullscreen(m device.DisplayMode) error {
	for _, u := range b.Faults.UnavailableModes {
		if u == m {
			return fmt.Errorf("mode %v refused", m)
		}
	}
	a := b.adapters[b.current]
	if !a.HasMode(m, true) && !a.HasMode(m, false) {
		return fmt.Errorf("mode %v not offered by %s", m, a.Name)
	}
	b.fullscreen = true
	b.mode = m
	return nil
}

func (b *Backend) SetWindowed(width, height int) (device.DisplayMode, error) {
	if b.Faults.FailWindowed {
		return device.DisplayMode{}, fmt.Errorf("window %dx%d refused", width, height)
	}
	if width > b.desktopSize.X {
		width = b.desktopSize.X
	}
	if height > b.desktopSize.Y {
		height = b.desktopSize.Y
	}
	b.fullscreen = false
	b.mode = device.DisplayMode{Width: width, Height: height, BPP: b.desktop.BPP}
	if b.desktop.Indexed {
		b.mode.VGA = device.VGA256Color
	}
	return b.mode, nil
}

// Mode reports the last mode set, for tests.
func (b *Backend) Mode() (device.DisplayMode, bool) { return b.mode, b.fullscreen }

func (b *Backend) DisplayFormat() (device.PixelFormat, error) {
	if !b.fullscreen {
		return b.desktop, nil
	}
	switch b.mode.BPP {
	case 8:
		return device.FormatIndexed8, nil
	case 16:
		return device.Format565, nil
	case 24, 32:
		return device.Format888, nil
	}
	return device.PixelFormat{}, fmt.Errorf("no pixel format for %d bpp", b.mode.BPP)
}

func (b *Backend) CreateSurface(d device.SurfaceDesc) (device.Surface, error) {
	if b.closed {
		return nil, fmt.Errorf("backend closed")
	}
	if b.Faults.FailCreate != nil && b.Faults.FailCreate(d) {
		return nil, fmt.Errorf("out of memory for %dx%d surface", d.Width, d.Height)
	}
	var f device.PixelFormat
	switch {
	case d.Caps&device.CapZBuffer != 0:
		depth := d.ZDepth
		if depth == 0 {
			depth = 16
		}
		f = device.PixelFormat{BPP: depth}
	case d.Format != nil:
		f = *d.Format
	default:
		df, err := b.DisplayFormat()
		if err != nil {
			return nil, err
		}
		f = df
	}
	if d.Caps&device.CapPrimary != 0 {
		d.Width, d.Height = b.mode.Width, b.mode.Height
		if !b.fullscreen {
			d.Width, d.Height = b.desktopSize.X, b.desktopSize.Y
		}
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", d.Width, d.Height)
	}

	s := b.newSurface(d, f)
	if d.Caps&device.CapPrimary != 0 && d.BackBuffers > 0 {
		s.chain = []*Surface{s}
		for i := 0; i < d.BackBuffers; i++ {
			bd := d
			bd.Caps = d.Caps&^device.CapPrimary | device.CapFlip
			bd.BackBuffers = 0
			bs := b.newSurface(bd, f)
			s.chain = append(s.chain, bs)
			bs.index = i + 1
		}
		for _, c := range s.chain {
			c.chain = s.chain
		}
	}
	return s, nil
}

func (b *Backend) newSurface(d device.SurfaceDesc, f device.PixelFormat) *Surface {
	s := &Surface{b: b, desc: d, format: f}
	s.pitch = d.Width * f.BytesPerPixel()
	s.pix = make([]byte, s.pitch*d.Height)
	b.surfaces[s] = struct{}{}
	return s
}

func (b *Backend) CreatePalette(entries [256]device.RGB) (device.Palette, error) {
	if b.closed {
		return nil, fmt.Errorf("backend closed")
	}
	return &Palette{entries: entries}, nil
}

func (b *Backend) CreateDevice(target device.Surface) (device.Device, error) {
	if b.Faults.FailDevice {
		return nil, fmt.Errorf("no 3D device for %s", b.adapters[b.current].Name)
	}
	t, ok := target.(*Surface)
	if !ok {
		return nil, fmt.Errorf("foreign surface %T", target)
	}
	if t.desc.Caps&device.Cap3D == 0 {
		return nil, fmt.Errorf("render target lacks 3D capability")
	}
	d := &Device{b: b, target: t, formats: b.textureFormats}
	b.devices = append(b.devices, d)
	return d, nil
}

func (b *Backend) SystemPalette() [256]device.RGB { return b.sysPal }

func (b *Backend) PumpMessages() {}

func (b *Backend) WindowOrigin() image.Point {
	if b.fullscreen {
		return image.Point{}
	}
	return b.origin
}

func (b *Backend) ShouldClose() bool { return b.closed }

func (b *Backend) Close() error {
	b.closed = true
	return nil
}

// LoseSurfaces simulates device loss: every device-memory surface and every
// surface of a flip chain becomes lost. System-memory surfaces survive.
func (b *Backend) LoseSurfaces() {
	for s := range b.surfaces {
		if s.desc.Memory != device.MemorySystem || s.desc.Caps&(device.CapPrimary|device.CapFlip) != 0 {
			s.lost = true
		}
	}
}

// Live counts surfaces that have not been released.
func (b *Backend) Live() int { return len(b.surfaces) }

// LastDevice returns the most recently created device, or nil.
func (b *Backend) LastDevice() *Device {
	if len(b.devices) == 0 {
		return nil
	}
	return b.devices[len(b.devices)-1]
}

// Palette is the headless device.Palette.
type Palette struct {
	entries  [256]device.RGB
	released bool
}

func (p *Palette) Entries() [256]device.RGB { return p.entries }
func (p *Palette) Release()                 { p.released = true }
func (p *Palette) Released() bool           { return p.released }
