package surface

import (
	"errors"
	"image"
	"slices"
	"testing"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/device/headless"
	"gfxcore/internal/graphics/gfxerr"
)

func fullscreenSettings(hw, triple bool) config.DisplaySettings {
	s := config.Default()
	s.FullScreen = true
	s.TripleBuffering = triple
	if hw {
		s.Mode = device.DisplayMode{Width: 640, Height: 480, BPP: 16}
	} else {
		s.RenderMode = config.RenderSoftware
		s.Mode = device.DisplayMode{Width: 640, Height: 480, BPP: 8, VGA: device.VGA256Color}
	}
	return s
}

// build creates the surfaces for s the way a display start does.
func build(t *testing.T, b *headless.Backend, s config.DisplaySettings) *Pool {
	t.Helper()
	a, err := b.SelectAdapter(s.Adapter)
	if err != nil {
		t.Fatal(err)
	}
	p := New(b)
	p.Configure(s, a)
	if s.FullScreen {
		if err := b.SetFullscreen(s.Mode); err != nil {
			t.Fatal(err)
		}
		if err := p.CreateScreenBuffers(); err != nil {
			t.Fatalf("CreateScreenBuffers: %v", err)
		}
		p.SetVideoMode(s.Mode, image.Pt(s.Mode.Width, s.Mode.Height))
	} else {
		m, err := b.SetWindowed(s.WindowWidth, s.WindowHeight)
		if err != nil {
			t.Fatal(err)
		}
		p.SetVideoMode(m, image.Pt((m.Width+0x1F)&^0x1F, (m.Height+0x1F)&^0x1F))
		if err := p.CreatePrimary(); err != nil {
			t.Fatalf("CreatePrimary: %v", err)
		}
		if s.Hardware() {
			if err := p.CreateBack(); err != nil {
				t.Fatal(err)
			}
			if err := p.CreateCapture(); err != nil {
				t.Fatal(err)
			}
		}
	}
	if s.Hardware() {
		if s.ZBuffer {
			if err := p.CreateZBuffer(); err != nil {
				t.Fatal(err)
			}
		}
		d, err := b.CreateDevice(p.Get(Back))
		if err != nil {
			t.Fatal(err)
		}
		p.SetDevice(d)
	} else {
		if err := p.CreateRender(); err != nil {
			t.Fatal(err)
		}
		if err := p.CreatePicture(); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func pixel(t *testing.T, s device.Surface, x, y int) uint32 {
	t.Helper()
	l, err := s.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer s.Unlock()
	bpp := s.Format().BytesPerPixel()
	return device.ReadPixel(l.Pix[y*l.Pitch+x*bpp:], bpp)
}

func TestCreateScreenBuffers(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(true, true))
	primary, back, third := p.Get(Primary), p.Get(Back), p.Get(Third)
	if primary == nil || back == nil || third == nil {
		t.Fatalf("missing flip chain member: %v %v %v", primary, back, third)
	}
	if back == third {
		t.Fatalf("third buffer is the back buffer")
	}
	if p.Get(ZBuffer) == nil || back.(*headless.Surface).Depth() == nil {
		t.Fatalf("z-buffer not attached to the back buffer")
	}

	b2 := headless.New(headless.Config{})
	p2 := build(t, b2, fullscreenSettings(true, false))
	if p2.Get(Third) != nil {
		t.Fatalf("third buffer without triple buffering")
	}
}

func TestCreateScreenBuffersFailure(t *testing.T) {
	b := headless.New(headless.Config{})
	b.Faults.FailCreate = func(d device.SurfaceDesc) bool { return d.Caps&device.CapPrimary != 0 }
	s := fullscreenSettings(true, false)
	a, _ := b.SelectAdapter("")
	_ = b.SetFullscreen(s.Mode)
	p := New(b)
	p.Configure(s, a)
	err := p.CreateScreenBuffers()
	if gfxerr.CodeOf(err) != gfxerr.CreateScreenBuffers {
		t.Fatalf("got %v, want CreateScreenBuffers", err)
	}
}

func TestCreatePrimaryWrongBitDepth(t *testing.T) {
	cases := []struct {
		name    string
		desktop device.PixelFormat
		mode    config.RenderMode
		wantErr bool
	}{
		{"true colour hardware", device.Format565, config.RenderHardware, false},
		{"true colour software", device.Format565, config.RenderSoftware, true},
		{"palettized hardware", device.FormatIndexed8, config.RenderHardware, true},
		{"palettized software", device.FormatIndexed8, config.RenderSoftware, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := headless.New(headless.Config{DesktopFormat: c.desktop})
			m, _ := b.SetWindowed(320, 200)
			s := config.Default()
			s.RenderMode = c.mode
			p := New(b)
			p.Configure(s, headless.DefaultAdapter())
			p.SetVideoMode(m, image.Pt(320, 224))
			err := p.CreatePrimary()
			if c.wantErr != errors.Is(err, gfxerr.New(gfxerr.WrongBitDepth)) {
				t.Fatalf("got %v, want WrongBitDepth %v", err, c.wantErr)
			}
		})
	}
}

func TestZBufferlessAdapter(t *testing.T) {
	a := headless.DefaultAdapter()
	a.ZBufferlessHSR = true
	b := headless.New(headless.Config{Adapters: []device.Adapter{a}})
	p := build(t, b, fullscreenSettings(true, false))
	if p.Get(ZBuffer) != nil {
		t.Fatalf("z-buffer created on a hidden-surface-removal adapter")
	}
}

func TestWindowPaletteKeepsSystemEntries(t *testing.T) {
	b := headless.New(headless.Config{DesktopFormat: device.FormatIndexed8})
	s := config.Default()
	s.RenderMode = config.RenderSoftware
	p := build(t, b, s)
	if err := p.CreateWindowPalette(); err != nil {
		t.Fatalf("CreateWindowPalette: %v", err)
	}
	got := p.WindowPalette().Entries()
	sys := b.SystemPalette()
	if got[3] != sys[3] || got[250] != sys[250] {
		t.Fatalf("reserved entries not copied from the system palette")
	}
	if got[100] != (device.RGB{}) {
		t.Fatalf("game entry 100 preset to %v", got[100])
	}
}

type recordSurface struct {
	device.Surface
	name string
	lost bool
	log  *[]string
}

func (r *recordSurface) IsLost() bool                       { return r.lost }
func (r *recordSurface) Fill(image.Rectangle, uint32) error { return nil }
func (r *recordSurface) Release()                           {}

func (r *recordSurface) Restore() error {
	*r.log = append(*r.log, r.name)
	r.lost = false
	return nil
}

func TestRestoreOrder(t *testing.T) {
	s := config.Default()
	s.TripleBuffering = true
	p := New(headless.New(headless.Config{}))
	p.Configure(s, headless.DefaultAdapter())
	var log []string
	for k := Primary; k < numKinds; k++ {
		p.surfaces[k] = &recordSurface{name: k.String(), lost: true, log: &log}
	}
	if err := p.RestoreLost(); err != nil {
		t.Fatalf("RestoreLost: %v", err)
	}
	want := []string{"primary", "back", "third", "z-buffer", "picture", "capture", "environment"}
	if !slices.Equal(log, want) {
		t.Fatalf("restore order: got %v, want %v", log, want)
	}
}

type countingRebuilder struct{ calls int }

func (r *countingRebuilder) Rebuild() error {
	r.calls++
	return nil
}

func TestRestoreFailureRebuilds(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(true, false))
	r := &countingRebuilder{}
	p.SetRebuilder(r)

	if err := p.RestoreLost(); err != nil || r.calls != 0 {
		t.Fatalf("nothing lost: got %v with %d rebuilds", err, r.calls)
	}
	b.LoseSurfaces()
	b.Faults.FailRestore = true
	if err := p.RestoreLost(); err != nil {
		t.Fatalf("RestoreLost: %v", err)
	}
	if r.calls != 1 {
		t.Fatalf("rebuilds: got %d, want 1", r.calls)
	}
}

func TestRestoreLostRecovers(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(true, true))
	b.LoseSurfaces()
	if err := p.RestoreLost(); err != nil {
		t.Fatalf("RestoreLost: %v", err)
	}
	for k := Primary; k < numKinds; k++ {
		if s := p.Get(k); s != nil && s.IsLost() {
			t.Fatalf("%v still lost", k)
		}
	}
}

func TestRestoreWithoutPrimaryIsFatal(t *testing.T) {
	p := New(headless.New(headless.Config{}))
	if err := p.RestoreLost(); !gfxerr.IsFatal(err) {
		t.Fatalf("got %v, want a fatal error", err)
	}
}

func TestPresentWindowed(t *testing.T) {
	b := headless.New(headless.Config{})
	s := config.Default()
	s.WindowWidth, s.WindowHeight = 320, 240
	p := build(t, b, s)
	if got := p.BufferSize(); got != image.Pt(320, 256) {
		t.Fatalf("buffer size: got %v, want 320x256", got)
	}
	if err := p.Get(Back).Fill(p.VideoRect(), 0x1234); err != nil {
		t.Fatal(err)
	}
	if err := p.Present(image.Rectangle{}, true); err != nil {
		t.Fatalf("Present: %v", err)
	}
	o := b.WindowOrigin()
	if got := pixel(t, p.Get(Primary), o.X+10, o.Y+10); got != 0x1234 {
		t.Fatalf("window pixel: got %#x, want 0x1234", got)
	}
	if got := pixel(t, p.Get(Primary), o.X-1, o.Y); got != 0 {
		t.Fatalf("pixel left of the window: got %#x", got)
	}
	if got := pixel(t, p.Get(Capture), 319, 239); got != 0x1234 {
		t.Fatalf("capture pixel: got %#x, want 0x1234", got)
	}
}

func TestPresentFullscreenSoftware(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(false, false))
	if err := p.Get(Render).Fill(image.Rectangle{}, 7); err != nil {
		t.Fatal(err)
	}
	if err := p.Present(image.Rectangle{}, false); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if got := pixel(t, p.Get(Primary), 100, 100); got != 7 {
		t.Fatalf("front after flip: got %d, want 7", got)
	}
}

func TestWaitFlip(t *testing.T) {
	b := headless.New(headless.Config{})
	s := fullscreenSettings(true, false)
	s.FlipBroken = true
	p := build(t, b, s)
	b.Faults.FlipBusy = 3
	p.WaitFlip()
	if b.Faults.FlipBusy != 0 {
		t.Fatalf("WaitFlip returned with %d pending polls", b.Faults.FlipBusy)
	}

	s.FlipBroken = false
	p.Configure(s, p.Adapter())
	b.Faults.FlipBusy = 3
	p.WaitFlip()
	if b.Faults.FlipBusy != 3 {
		t.Fatalf("WaitFlip polled a driver with working flips")
	}
}

func TestClear(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(false, false))
	if err := p.SetViewport(image.Rect(100, 100, 200, 200)); err != nil {
		t.Fatal(err)
	}
	if err := p.Clear(ClearBack|ClearPicture|ClearViewportOnly, 9); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := pixel(t, p.Get(Back), 150, 150); got != 9 {
		t.Fatalf("inside viewport: got %d, want 9", got)
	}
	if got := pixel(t, p.Get(Back), 50, 50); got != 0 {
		t.Fatalf("outside viewport: got %d, want 0", got)
	}
	w, h := config.GetPictureSize()
	if got := pixel(t, p.Get(Picture), w-1, h-1); got != 9 {
		t.Fatalf("picture corner: got %d, want 9", got)
	}
}

func TestClearHardwareUsesDevice(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(true, false))
	d := b.LastDevice()
	if err := p.Clear(ClearBack|ClearZBuffer, 0x1F); err != nil {
		t.Fatal(err)
	}
	if d.Clears != 1 {
		t.Fatalf("device clears: got %d, want 1", d.Clears)
	}
	if got := pixel(t, p.Get(ZBuffer), 0, 0); got != 0xFFFF {
		t.Fatalf("depth after clear: got %#x, want 0xffff", got)
	}
}

func TestRelease(t *testing.T) {
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(false, true))
	picture := p.Get(Picture)
	p.Release(false)
	if p.Get(Picture) != picture {
		t.Fatalf("picture released without clearPicture")
	}
	if b.Live() != 1 {
		t.Fatalf("live surfaces: got %d, want only the picture", b.Live())
	}
	p.Release(true)
	if b.Live() != 0 {
		t.Fatalf("live surfaces after full release: %d", b.Live())
	}
}

func TestEnvironmentSide(t *testing.T) {
	cases := []struct {
		buffer      image.Point
		blur, limit int
		want        int
	}{
		{image.Pt(640, 480), 2, 2048, 128},
		{image.Pt(640, 480), 0, 2048, 512},
		{image.Pt(640, 480), 0, 256, 256},
		{image.Pt(4096, 4096), 0, 0, 2048},
		{image.Pt(320, 200), 4, 2048, 16},
	}
	for _, c := range cases {
		if got := EnvironmentSide(c.buffer, c.blur, c.limit); got != c.want {
			t.Errorf("EnvironmentSide(%v, %d, %d): got %d, want %d", c.buffer, c.blur, c.limit, got, c.want)
		}
	}
}

func TestEnvironmentTexture(t *testing.T) {
	defer config.SetReflectionMode(config.GetReflectionMode())
	b := headless.New(headless.Config{})
	p := build(t, b, fullscreenSettings(true, false))

	config.SetReflectionMode(0)
	if h := p.EnvironmentTexture(); h != 0 {
		t.Fatalf("reflections off: got handle %d", h)
	}

	config.SetReflectionMode(1)
	h := p.EnvironmentTexture()
	if h == 0 {
		t.Fatalf("no environment handle")
	}
	if p.EnvironmentTexture() != h {
		t.Fatalf("second request in a frame captured again")
	}
	env := p.Get(Environment)
	side := EnvironmentSide(p.BufferSize(), config.GetReflectionBlur(), 2048)
	if env.Bounds().Dx() != side || env.Bounds().Dy() != side {
		t.Fatalf("environment size: got %v, want %d", env.Bounds(), side)
	}
	p.ResetEnvironment()
	if p.EnvironmentTexture() == 0 {
		t.Fatalf("no handle after reset")
	}
}
