package gldevice

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"gfxcore/internal/graphics/device"
)

const vertexSize = int32(unsafe.Sizeof(device.Vertex{}))

// Device draws pre-transformed vertices into the framebuffer of its target.
type Device struct {
	b      *Backend
	target *Surface
	prog   *program
	vao    uint32
	vbo    uint32

	states   [device.NumRenderStates]uint32
	texture  device.TextureHandle
	handles  map[device.TextureHandle]*Surface
	next     device.TextureHandle
	inScene  bool
	viewport image.Rectangle
	released bool
}

func newDevice(b *Backend, target *Surface) (*Device, error) {
	prog, err := newProgram(drawVert, drawFrag)
	if err != nil {
		return nil, err
	}
	d := &Device{
		b:        b,
		target:   target,
		prog:     prog,
		handles:  make(map[device.TextureHandle]*Surface),
		viewport: target.Bounds(),
	}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)

	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 4, gl.FLOAT, false, vertexSize, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 4, gl.UNSIGNED_BYTE, true, vertexSize, 16)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, vertexSize, 24)
	gl.BindVertexArray(0)
	return d, nil
}

func (d *Device) usable() error {
	if d.released {
		return fmt.Errorf("device released")
	}
	if d.target.IsLost() {
		return device.ErrSurfaceLost
	}
	return nil
}

func (d *Device) BeginScene() error {
	if err := d.usable(); err != nil {
		return err
	}
	if d.inScene {
		return fmt.Errorf("scene already open")
	}
	d.inScene = true
	return nil
}

func (d *Device) EndScene() error {
	if !d.inScene {
		return fmt.Errorf("no open scene")
	}
	d.inScene = false
	return nil
}

func (d *Device) SetTexture(h device.TextureHandle) error {
	if h != 0 {
		s, ok := d.handles[h]
		if !ok || s.released {
			return fmt.Errorf("unknown texture handle %d", h)
		}
	}
	d.texture = h
	return nil
}

func (d *Device) SetRenderState(s device.RenderState, v uint32) error {
	if s < 0 || s >= device.NumRenderStates {
		return fmt.Errorf("render state %d out of range", s)
	}
	d.states[s] = v
	return nil
}

func (d *Device) RenderState(s device.RenderState) uint32 {
	if s < 0 || s >= device.NumRenderStates {
		return 0
	}
	return d.states[s]
}

// bindTarget makes the target framebuffer current with the viewport as
// scissor.
func (d *Device) bindTarget() {
	t := d.target
	t.upload()
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Viewport(0, 0, int32(t.desc.Width), int32(t.desc.Height))
	v := d.viewport
	gl.Enable(gl.SCISSOR_TEST)
	gl.Scissor(int32(v.Min.X), int32(v.Min.Y), int32(v.Dx()), int32(v.Dy()))
}

func (d *Device) DrawPrimitive(t device.Topology, v []device.Vertex) error {
	if err := d.usable(); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	var mode uint32
	switch t {
	case device.TriangleFan:
		mode = gl.TRIANGLE_FAN
	case device.LineStrip:
		mode = gl.LINE_STRIP
	default:
		return fmt.Errorf("unsupported topology %s", t)
	}

	d.bindTarget()
	d.applyStates()

	tw, th := float32(d.target.desc.Width), float32(d.target.desc.Height)
	proj := mgl32.Ortho(0, tw, 0, th, 0, -1)
	d.prog.use()
	d.prog.setMatrix4("projection", &proj[0])
	d.prog.setBool("perspective", d.states[device.StatePerspective] != 0)

	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(v)*int(vertexSize), gl.Ptr(v), gl.STREAM_DRAW)
	gl.DrawArrays(mode, 0, int32(len(v)))
	gl.BindVertexArray(0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	d.target.gpuDirty = true
	return nil
}

func (d *Device) applyStates() {
	st := &d.states
	if st[device.StateAlphaBlendEnable] != 0 || st[device.StateStippledAlpha] != 0 {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(blendFactor(st[device.StateSrcBlend]), blendFactor(st[device.StateDestBlend]))
	} else {
		gl.Disable(gl.BLEND)
	}

	if d.target.depth != nil && st[device.StateZEnable] != 0 {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(compareFunc(st[device.StateZFunc]))
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(st[device.StateZWriteEnable] != 0)

	if st[device.StateDither] != 0 {
		gl.Enable(gl.DITHER)
	} else {
		gl.Disable(gl.DITHER)
	}

	d.prog.use()
	d.prog.setBool("colorKey", st[device.StateColorKeyEnable] != 0)
	alphaTest := st[device.StateAlphaTestEnable] != 0 && st[device.StateAlphaFunc] == device.CmpGreater
	d.prog.setBool("alphaTest", alphaTest)
	d.prog.setFloat("alphaRef", float32(st[device.StateAlphaRef])/255)

	tex := d.handles[d.texture]
	d.prog.setBool("useTexture", tex != nil)
	d.prog.setInt("tex", 0)
	gl.ActiveTexture(gl.TEXTURE0)
	if tex == nil {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return
	}
	tex.upload()
	gl.BindTexture(gl.TEXTURE_2D, tex.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, textureFilter(st[device.StateMagFilter]))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, textureFilter(st[device.StateMinFilter]))
}

func blendFactor(v uint32) uint32 {
	switch v {
	case device.BlendZero:
		return gl.ZERO
	case device.BlendOne:
		return gl.ONE
	case device.BlendSrcColor:
		return gl.SRC_COLOR
	case device.BlendInvSrcColor:
		return gl.ONE_MINUS_SRC_COLOR
	case device.BlendInvSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	}
	return gl.SRC_ALPHA
}

func compareFunc(v uint32) uint32 {
	switch v {
	case device.CmpNever:
		return gl.NEVER
	case device.CmpLess:
		return gl.LESS
	case device.CmpEqual:
		return gl.EQUAL
	case device.CmpLessEqual:
		return gl.LEQUAL
	case device.CmpGreater:
		return gl.GREATER
	case device.CmpNotEqual:
		return gl.NOTEQUAL
	case device.CmpGreaterEqual:
		return gl.GEQUAL
	}
	return gl.ALWAYS
}

func textureFilter(v uint32) int32 {
	if v == device.FilterLinear {
		return gl.LINEAR
	}
	return gl.NEAREST
}

func (d *Device) Clear(r image.Rectangle, flags device.ClearFlags, color uint32) error {
	if err := d.usable(); err != nil {
		return err
	}
	r = device.Area(d.target, r)
	d.bindTarget()
	gl.Scissor(int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()))

	var mask uint32
	if flags&device.ClearTarget != 0 {
		c := mgl32.Vec4{
			float32(color>>16&0xFF) / 255,
			float32(color>>8&0xFF) / 255,
			float32(color&0xFF) / 255,
			float32(color>>24) / 255,
		}
		gl.ClearColor(c[0], c[1], c[2], c[3])
		mask |= gl.COLOR_BUFFER_BIT
	}
	if flags&device.ClearZBuffer != 0 && d.target.depth != nil {
		gl.DepthMask(true)
		gl.ClearDepth(1)
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
		d.target.gpuDirty = true
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

func (d *Device) SetViewport(r image.Rectangle) error {
	d.viewport = r.Intersect(d.target.Bounds())
	return nil
}

// TextureFormats offers the 1-5-5-5 asset layout first, then 5-6-5 and
// paletted textures expanded on upload.
func (d *Device) TextureFormats() []device.PixelFormat {
	return []device.PixelFormat{device.Format1555, device.Format565, device.FormatIndexed8}
}

func (d *Device) TextureHandle(s device.Surface) (device.TextureHandle, error) {
	gs, ok := s.(*Surface)
	if !ok {
		return 0, fmt.Errorf("foreign surface %T", s)
	}
	if err := gs.usable(); err != nil {
		return 0, err
	}
	if gs.desc.Caps&device.CapTexture == 0 || gs.tex == 0 {
		return 0, fmt.Errorf("surface is not a texture")
	}
	if gs.owner == d && gs.handle != 0 {
		return gs.handle, nil
	}
	d.next++
	d.handles[d.next] = gs
	gs.handle, gs.owner = d.next, d
	return d.next, nil
}

func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	d.handles = nil
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteVertexArrays(1, &d.vao)
	d.prog.delete()
}
