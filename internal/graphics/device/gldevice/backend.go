// Package gldevice is the OpenGL backend. Monitors are adapters, the window
// is the primary surface and drawing goes through framebuffer objects.
package gldevice

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxlog"
)

const windowTitle = "gfxcore"

func init() {
	device.Register("gl", func() (device.Backend, error) { return New() })
}

// Backend owns the glfw window and its GL context. All calls must come from
// the thread that created it.
type Backend struct {
	window   *glfw.Window
	monitors []*glfw.Monitor
	adapters []device.Adapter
	current  int

	mode       device.DisplayMode
	fullscreen bool
	// gen advances when the context loses its surfaces; surfaces created
	// under an older generation report lost.
	gen int

	present    *program
	presentVAO uint32
	buf        []byte
	surfaces   map[*Surface]struct{}
	closed     bool
}

// New initialises glfw and creates a hidden window with a 4.1 core context.
func New() (*Backend, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Visible, glfw.False)

	window, err := glfw.CreateWindow(640, 480, windowTitle, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("gl init: %w", err)
	}
	// Frame pacing is done by the caller.
	glfw.SwapInterval(0)

	b := &Backend{window: window, surfaces: make(map[*Surface]struct{})}
	window.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		if iconified && b.fullscreen {
			b.gen++
			gfxlog.Logger().Info("fullscreen window iconified, surfaces lost")
		}
	})

	b.present, err = newProgram(presentVert, presentFrag)
	if err != nil {
		b.Close()
		return nil, err
	}
	gl.GenVertexArrays(1, &b.presentVAO)
	b.enumerate()
	gfxlog.Logger().Info("gl backend ready",
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"adapters", len(b.adapters))
	return b, nil
}

func (b *Backend) Name() string { return "gl" }

func (b *Backend) enumerate() {
	var maxTex int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxTex)

	primary := glfw.GetPrimaryMonitor()
	b.monitors = b.monitors[:0]
	if primary != nil {
		b.monitors = append(b.monitors, primary)
	}
	for _, m := range glfw.GetMonitors() {
		if m != primary {
			b.monitors = append(b.monitors, m)
		}
	}
	b.adapters = b.adapters[:0]
	for i, m := range b.monitors {
		hw, sw := modeLists(m.GetVideoModes())
		b.adapters = append(b.adapters, device.Adapter{
			Name:           m.GetName(),
			Primary:        i == 0,
			HardwareModes:  hw,
			SoftwareModes:  sw,
			MaxTextureSize: int(maxTex),
			ZBufferDepths:  []int{16, 24},
		})
	}
}

func (b *Backend) Adapters() []device.Adapter {
	return append([]device.Adapter(nil), b.adapters...)
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

func (b *Backend) monitor() *glfw.Monitor {
	if b.current < len(b.monitors) {
		return b.monitors[b.current]
	}
	return nil
}

func (b *Backend) SetFullscreen(m device.DisplayMode) error {
	if len(b.adapters) == 0 {
		return fmt.Errorf("no monitors")
	}
	a := b.adapters[b.current]
	if !a.HasMode(m, true) && !a.HasMode(m, false) {
		return fmt.Errorf("mode %v not offered by %s", m, a.Name)
	}
	b.window.SetMonitor(b.monitor(), 0, 0, m.Width, m.Height, glfw.DontCare)
	b.window.Show()
	b.mode, b.fullscreen = m, true
	return nil
}

func (b *Backend) SetWindowed(width, height int) (device.DisplayMode, error) {
	if width <= 0 || height <= 0 {
		return device.DisplayMode{}, fmt.Errorf("invalid window size %dx%d", width, height)
	}
	bpp := 32
	if mon := b.monitor(); mon != nil {
		if v := mon.GetVideoMode(); v != nil {
			bpp = vidModeBPP(v)
		}
	}
	b.window.SetMonitor(nil, 64, 64, width, height, 0)
	b.window.Show()
	fw, fh := b.window.GetFramebufferSize()
	b.mode = device.DisplayMode{Width: fw, Height: fh, BPP: bpp}
	b.fullscreen = false
	return b.mode, nil
}

func (b *Backend) DisplayFormat() (device.PixelFormat, error) {
	if b.mode.IsZero() {
		return device.PixelFormat{}, fmt.Errorf("no display mode set")
	}
	return displayFormat(b.mode), nil
}

func (b *Backend) CreateSurface(d device.SurfaceDesc) (device.Surface, error) {
	if b.closed {
		return nil, fmt.Errorf("backend closed")
	}
	var f device.PixelFormat
	switch {
	case d.Caps&device.CapZBuffer != 0:
		f = device.PixelFormat{BPP: max(d.ZDepth, 16)}
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
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", d.Width, d.Height)
	}

	s, err := b.newSurface(d, f)
	if err != nil {
		return nil, err
	}
	if d.Caps&device.CapPrimary != 0 && d.BackBuffers > 0 {
		s.chain = []*Surface{s}
		for i := 0; i < d.BackBuffers; i++ {
			bd := d
			bd.Caps = d.Caps&^device.CapPrimary | device.CapFlip
			bd.BackBuffers = 0
			bs, err := b.newSurface(bd, f)
			if err != nil {
				s.Release()
				return nil, err
			}
			bs.index = i + 1
			s.chain = append(s.chain, bs)
		}
		for _, c := range s.chain {
			c.chain = s.chain
		}
	}
	return s, nil
}

func (b *Backend) newSurface(d device.SurfaceDesc, f device.PixelFormat) (*Surface, error) {
	s := &Surface{b: b, desc: d, format: f, gen: b.gen}
	if d.Caps&device.CapZBuffer == 0 {
		s.pitch = d.Width * f.BytesPerPixel()
		s.pix = make([]byte, s.pitch*d.Height)
	}
	if err := s.alloc(); err != nil {
		return nil, err
	}
	b.surfaces[s] = struct{}{}
	return s, nil
}

func (b *Backend) CreatePalette(entries [256]device.RGB) (device.Palette, error) {
	return &Palette{entries: entries}, nil
}

func (b *Backend) CreateDevice(target device.Surface) (device.Device, error) {
	gs, ok := target.(*Surface)
	if !ok {
		return nil, fmt.Errorf("foreign surface %T", target)
	}
	if gs.fbo == 0 {
		return nil, fmt.Errorf("surface is not a render target")
	}
	return newDevice(b, gs)
}

func (b *Backend) SystemPalette() [256]device.RGB { return systemPalette() }

func (b *Backend) PumpMessages() { glfw.PollEvents() }

// WindowOrigin is zero: the primary surface covers only the client area.
func (b *Backend) WindowOrigin() image.Point { return image.Point{} }

func (b *Backend) ShouldClose() bool { return b.closed || b.window.ShouldClose() }

func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.surfaces {
		s.Release()
	}
	if b.present != nil {
		b.present.delete()
	}
	if b.presentVAO != 0 {
		gl.DeleteVertexArrays(1, &b.presentVAO)
	}
	b.window.Destroy()
	glfw.Terminate()
	return nil
}

// scratch returns a reusable buffer of at least n bytes.
func (b *Backend) scratch(n int) []byte {
	if cap(b.buf) < n {
		b.buf = make([]byte, n)
	}
	return b.buf[:n]
}

// show draws s over the whole window and swaps buffers.
func (b *Backend) show(s *Surface) {
	if s.tex == 0 {
		return
	}
	s.upload()
	fw, fh := b.window.GetFramebufferSize()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Disable(gl.SCISSOR_TEST)
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)
	gl.Viewport(0, 0, int32(fw), int32(fh))

	b.present.use()
	b.present.setInt("tex", 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, s.tex)
	gl.BindVertexArray(b.presentVAO)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
	b.window.SwapBuffers()
}
