package display

import (
	"image"
	"testing"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/device/headless"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/palette"
	"gfxcore/internal/graphics/surface"
	"gfxcore/internal/graphics/texture"
)

type recorder struct {
	modes   []string
	reloads [][2]bool
}

func (r *recorder) ModeChanged(mode string) { r.modes = append(r.modes, mode) }

func (r *recorder) ReloadLevelGraphics(palettes, textures bool) error {
	r.reloads = append(r.reloads, [2]bool{palettes, textures})
	return nil
}

func newController(t *testing.T, cfg headless.Config) (*Controller, *headless.Backend, *recorder) {
	t.Helper()
	b := headless.New(cfg)
	reg := palette.NewRegistry(b)
	c := New(b, texture.NewAllocator(0, b, reg), reg)
	r := &recorder{}
	c.SetModeNotifier(r)
	c.SetLevelReloader(r)
	return c, b, r
}

func fullscreen(w, h, bpp int) config.DisplaySettings {
	s := config.Default()
	s.FullScreen = true
	s.Mode = device.DisplayMode{Width: w, Height: h, BPP: bpp}
	return s
}

func mustStart(t *testing.T, c *Controller, s config.DisplaySettings) Result {
	t.Helper()
	res, err := c.Start(s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Outcome != Applied {
		t.Fatalf("Start fell back to %v", res.Outcome)
	}
	return res
}

func TestStartWindowed(t *testing.T) {
	c, b, r := newController(t, headless.Config{})
	res := mustStart(t, c, config.Default())
	if res.Mode != "640x480" {
		t.Fatalf("mode: got %q, want 640x480", res.Mode)
	}
	if c.State() != Active || c.Device() == nil {
		t.Fatalf("state %v, device %v", c.State(), c.Device())
	}
	if len(r.modes) != 1 || r.modes[0] != "640x480" {
		t.Fatalf("notifications: %v", r.modes)
	}
	if got := b.LastDevice().Viewport(); got != image.Rect(0, 0, 640, 480) {
		t.Fatalf("viewport: got %v", got)
	}
	if _, err := c.Start(config.Default()); err == nil {
		t.Fatalf("second Start succeeded")
	}
}

func TestApplyUnavailableModeFallsBackToPrevious(t *testing.T) {
	c, b, r := newController(t, headless.Config{})
	prev := fullscreen(640, 480, 16)
	mustStart(t, c, prev)
	b.Faults.UnavailableModes = []device.DisplayMode{{Width: 1024, Height: 768, BPP: 16}}

	res, err := c.Apply(fullscreen(1024, 768, 16))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Outcome != FellBackPrevious {
		t.Fatalf("outcome: got %v, want previous", res.Outcome)
	}
	if res.Mode != "640x480x16" || res.Settings != prev || c.Settings() != prev {
		t.Fatalf("got %q %+v, want previous settings", res.Mode, res.Settings)
	}
	if m, fs := b.Mode(); !fs || m != prev.Mode {
		t.Fatalf("backend mode: got %v fullscreen %v", m, fs)
	}
	if last := r.modes[len(r.modes)-1]; last != "640x480x16" {
		t.Fatalf("notified %q", last)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	prev := fullscreen(800, 600, 16)
	prev.TripleBuffering = true

	ref, refBackend, _ := newController(t, headless.Config{})
	mustStart(t, ref, prev)

	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, prev)
	// the z-buffer of the new configuration cannot be created
	b.Faults.FailCreate = func(d device.SurfaceDesc) bool {
		return d.Caps&device.CapZBuffer != 0 && d.Width == 1024
	}
	res, err := c.Apply(fullscreen(1024, 768, 32))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Outcome != FellBackPrevious {
		t.Fatalf("outcome: got %v", res.Outcome)
	}
	if b.Live() != refBackend.Live() {
		t.Fatalf("live surfaces: got %d, want %d as after a clean start", b.Live(), refBackend.Live())
	}
	for k := surface.Primary; k <= surface.ZBuffer; k++ {
		got, want := c.Pool().Get(k) != nil, ref.Pool().Get(k) != nil
		if got != want {
			t.Fatalf("%v present %v, want %v", k, got, want)
		}
	}
	if c.Pool().Get(surface.Back).Bounds().Dx() != 800 {
		t.Fatalf("back buffer has the failed configuration's size")
	}
}

func TestApplyFallsBackToSafe(t *testing.T) {
	c, b, r := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	b.Faults.FailDevice = true

	res, err := c.Apply(fullscreen(800, 600, 16))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Outcome != FellBackSafe {
		t.Fatalf("outcome: got %v, want safe", res.Outcome)
	}
	if res.Mode != "640x480x8" {
		t.Fatalf("mode: got %q, want 640x480x8", res.Mode)
	}
	s := c.Settings()
	if s.Hardware() || !s.FullScreen || s.TripleBuffering || s.Adapter != "" {
		t.Fatalf("safe settings: %+v", s)
	}
	if c.Device() != nil || c.Pool().Get(surface.Render) == nil {
		t.Fatalf("safe configuration is not the software renderer")
	}
	if last := r.reloads[len(r.reloads)-1]; last != [2]bool{true, true} {
		t.Fatalf("render mode change reload: got %v", last)
	}
}

func TestApplyFatal(t *testing.T) {
	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	b.Faults.FailCreate = func(device.SurfaceDesc) bool { return true }

	_, err := c.Apply(fullscreen(800, 600, 16))
	if !gfxerr.IsFatal(err) {
		t.Fatalf("got %v, want fatal", err)
	}
	if c.State() != Terminated {
		t.Fatalf("state: got %v, want terminated", c.State())
	}
	if b.Live() != 0 {
		t.Fatalf("%d surfaces left after fatal teardown", b.Live())
	}
	if _, err := c.Apply(config.Default()); !gfxerr.IsFatal(err) {
		t.Fatalf("Apply after termination: got %v", err)
	}
}

func TestStartFallsBackToSafe(t *testing.T) {
	c, _, _ := newController(t, headless.Config{})
	s := fullscreen(1600, 1200, 16)
	res, err := c.Start(s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Outcome != FellBackSafe || res.Mode != "640x480x8" {
		t.Fatalf("got %v %q", res.Outcome, res.Mode)
	}
}

func TestUpdateStateOnly(t *testing.T) {
	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	dev := b.LastDevice()

	s := c.Settings()
	s.BilinearFiltering = false
	s.Dither = true
	if _, err := c.Update(s); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if b.LastDevice() != dev {
		t.Fatalf("filter change rebuilt the device")
	}
	if dev.RenderState(device.StateMagFilter) != device.FilterPoint || dev.RenderState(device.StateDither) != device.StateEnabled {
		t.Fatalf("state not reprogrammed")
	}
	if c.Settings() != s {
		t.Fatalf("settings: got %+v, want %+v", c.Settings(), s)
	}
}

func TestUpdateWindowResize(t *testing.T) {
	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	dev := b.LastDevice()

	s := c.Settings()
	s.WindowWidth, s.WindowHeight = 620, 460
	res, err := c.Update(s)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if b.LastDevice() != dev {
		t.Fatalf("resize within the buffer slack rebuilt the device")
	}
	if res.Mode != "620x460" || dev.Viewport() != image.Rect(0, 0, 620, 460) {
		t.Fatalf("got mode %q viewport %v", res.Mode, dev.Viewport())
	}

	s.WindowWidth, s.WindowHeight = 320, 240
	res, err = c.Update(s)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if b.LastDevice() == dev {
		t.Fatalf("large shrink did not rebuild")
	}
	if got := c.Pool().BufferSize(); got != image.Pt(320, 256) {
		t.Fatalf("buffer size: got %v, want 320x256", got)
	}
	if res.Mode != "320x240" {
		t.Fatalf("mode: got %q", res.Mode)
	}
}

func TestUpdateStructuralChangeApplies(t *testing.T) {
	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, fullscreen(640, 480, 16))
	dev := b.LastDevice()
	s := c.Settings()
	s.TripleBuffering = true
	if _, err := c.Update(s); err != nil {
		t.Fatal(err)
	}
	if b.LastDevice() == dev || c.Pool().Get(surface.Third) == nil {
		t.Fatalf("triple buffering change not applied")
	}

	s.Adapter = "Other"
	if _, err := c.Update(s); err != nil {
		t.Fatal(err)
	}
	if c.Settings().Adapter != "" {
		t.Fatalf("adapter change applied at runtime")
	}
}

func TestTexturesSurviveApply(t *testing.T) {
	c, _, _ := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	src := make([]byte, 8*8*2)
	for i := range src {
		src[i] = byte(i * 7)
	}
	idx, err := c.Textures().AddPage16(8, 8, src)
	if err != nil {
		t.Fatalf("AddPage16: %v", err)
	}
	if _, err := c.Apply(fullscreen(800, 600, 16)); err != nil {
		t.Fatal(err)
	}
	if c.Textures().Handle(idx) == 0 {
		t.Fatalf("no handle after apply")
	}
	vid := c.Textures().DeviceCopy(idx)
	l, err := vid.Lock()
	if err != nil {
		t.Fatal(err)
	}
	defer vid.Unlock()
	if l.Pix[0] != src[0] || l.Pix[l.Pitch+5] != src[16+5] {
		t.Fatalf("page content lost across apply")
	}
}

func TestTextureCategoryChangeReloadsLevel(t *testing.T) {
	c, _, r := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	s := c.Settings()
	s.Disable16BitTextures = true
	if _, err := c.Apply(s); err != nil {
		t.Fatal(err)
	}
	if len(r.reloads) != 1 || r.reloads[0] != [2]bool{false, true} {
		t.Fatalf("reloads: got %v, want one texture reload", r.reloads)
	}
	if c.Textures().Format() != device.FormatIndexed8 {
		t.Fatalf("texture format: got %+v", c.Textures().Format())
	}
}

func TestSuspendResume(t *testing.T) {
	c, b, r := newController(t, headless.Config{})
	mustStart(t, c, fullscreen(640, 480, 16))
	c.Suspend()
	if c.State() != Suspended || b.Live() != 0 {
		t.Fatalf("suspend: state %v with %d live surfaces", c.State(), b.Live())
	}
	res, err := c.Resume()
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Outcome != Applied || c.State() != Active || res.Mode != "640x480x16" {
		t.Fatalf("resume: %v %v %q", res.Outcome, c.State(), res.Mode)
	}
	if len(r.reloads) != 0 {
		t.Fatalf("resume reloaded level graphics: %v", r.reloads)
	}
	if _, err := c.Resume(); err == nil {
		t.Fatalf("Resume while active succeeded")
	}
}

func TestRestoreFailureRebuildsThroughController(t *testing.T) {
	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, fullscreen(640, 480, 16))
	reg := palette.NewRegistry(b)
	pages := texture.NewPageSet(c.Textures(), reg)
	c.SetLevelPages(pages)
	if err := pages.Load(1, make([]byte, 2*texture.PageSide*texture.PageSide), nil); err != nil {
		t.Fatal(err)
	}
	dev := b.LastDevice()

	b.LoseSurfaces()
	b.Faults.FailRestore = true
	if err := c.Pool().RestoreLost(); err != nil {
		t.Fatalf("RestoreLost: %v", err)
	}
	b.Faults.FailRestore = false
	if b.LastDevice() == dev || c.State() != Active {
		t.Fatalf("display not rebuilt")
	}
	if pages.Handle(0) == 0 {
		t.Fatalf("page handle not refreshed")
	}

	c.Shutdown()
	if b.Live() != 0 || c.Textures().Available() != texture.DefaultCapacity {
		t.Fatalf("shutdown left %d surfaces and %d pages", b.Live(), texture.DefaultCapacity-c.Textures().Available())
	}
}

type reloadView struct {
	settings config.DisplaySettings
	state    State
	device   bool
	indexed  bool
}

// committedRecorder records what the controller looks like from inside a
// level reload.
type committedRecorder struct {
	c     *Controller
	views []reloadView
}

func (r *committedRecorder) ReloadLevelGraphics(palettes, textures bool) error {
	r.views = append(r.views, reloadView{
		settings: r.c.Settings(),
		state:    r.c.State(),
		device:   r.c.Device() != nil,
		indexed:  r.c.Textures().Format().Indexed,
	})
	return nil
}

func TestLevelReloadSeesCommittedState(t *testing.T) {
	c, _, _ := newController(t, headless.Config{})
	r := &committedRecorder{c: c}
	c.SetLevelReloader(r)
	mustStart(t, c, config.Default())

	s := c.Settings()
	s.Disable16BitTextures = true
	if _, err := c.Apply(s); err != nil {
		t.Fatal(err)
	}
	if len(r.views) != 1 {
		t.Fatalf("got %d reloads for a texture depth change, want 1", len(r.views))
	}
	v := r.views[0]
	if !v.settings.Disable16BitTextures || v.state != Active || !v.device || !v.indexed {
		t.Fatalf("reload saw %+v", v)
	}

	sw := c.Settings()
	sw.RenderMode = config.RenderSoftware
	if _, err := c.Apply(sw); err != nil {
		t.Fatal(err)
	}
	if len(r.views) != 2 {
		t.Fatalf("got %d reloads after switching to software, want 2", len(r.views))
	}
	v = r.views[1]
	if v.settings.Hardware() || v.state != Active || v.device {
		t.Fatalf("software reload saw %+v", v)
	}
}

func TestUpdateTextureDepthApplies(t *testing.T) {
	c, _, r := newController(t, headless.Config{})
	mustStart(t, c, config.Default())
	s := c.Settings()
	s.Disable16BitTextures = true
	if _, err := c.Update(s); err != nil {
		t.Fatal(err)
	}
	if !c.Settings().Disable16BitTextures || c.Textures().Format() != device.FormatIndexed8 {
		t.Fatalf("texture depth change dropped: %+v", c.Textures().Format())
	}
	if len(r.reloads) != 1 {
		t.Fatalf("reloads: got %v, want one", r.reloads)
	}
}

func TestUpdateFlipBrokenKeepsStack(t *testing.T) {
	c, b, _ := newController(t, headless.Config{})
	mustStart(t, c, fullscreen(640, 480, 16))
	dev := b.LastDevice()
	s := c.Settings()
	s.FlipBroken = true
	if _, err := c.Update(s); err != nil {
		t.Fatal(err)
	}
	if !c.Settings().FlipBroken {
		t.Fatal("FlipBroken dropped by Update")
	}
	if b.LastDevice() != dev {
		t.Fatal("FlipBroken rebuilt the stack")
	}
}
