package headless

import (
	"fmt"
	"image"

	"gfxcore/internal/graphics/device"
)

// Draw is one recorded DrawPrimitive call with the state in force.
type Draw struct {
	Topology device.Topology
	Texture  device.TextureHandle
	Vertices []device.Vertex
	States   [device.NumRenderStates]uint32
}

// StateWrite is one recorded SetRenderState call.
type StateWrite struct {
	State device.RenderState
	Value uint32
}

// Device is the recording device.Device.
type Device struct {
	b       *Backend
	target  *Surface
	formats []device.PixelFormat

	states   [device.NumRenderStates]uint32
	texture  device.TextureHandle
	inScene  bool
	viewport image.Rectangle
	released bool

	nextHandle device.TextureHandle
	byHandle   map[device.TextureHandle]*Surface

	Draws         []Draw
	StateWrites   []StateWrite
	TextureWrites int
	Clears        int
	Scenes        int
}

func (d *Device) BeginScene() error {
	if d.inScene {
		return fmt.Errorf("scene already open")
	}
	if d.target.lost {
		return device.ErrSurfaceLost
	}
	d.inScene = true
	return nil
}

func (d *Device) EndScene() error {
	if !d.inScene {
		return fmt.Errorf("no open scene")
	}
	d.inScene = false
	d.Scenes++
	return nil
}

func (d *Device) SetTexture(h device.TextureHandle) error {
	if h != 0 {
		s, ok := d.byHandle[h]
		if !ok || s.released {
			return fmt.Errorf("unknown texture handle %d", h)
		}
	}
	d.texture = h
	d.TextureWrites++
	return nil
}

func (d *Device) SetRenderState(s device.RenderState, v uint32) error {
	if s < 0 || s >= device.NumRenderStates {
		return fmt.Errorf("render state %d out of range", s)
	}
	d.states[s] = v
	d.StateWrites = append(d.StateWrites, StateWrite{State: s, Value: v})
	return nil
}

func (d *Device) RenderState(s device.RenderState) uint32 {
	if s < 0 || s >= device.NumRenderStates {
		return 0
	}
	return d.states[s]
}

func (d *Device) DrawPrimitive(t device.Topology, v []device.Vertex) error {
	if d.target.lost {
		return device.ErrSurfaceLost
	}
	d.Draws = append(d.Draws, Draw{
		Topology: t,
		Texture:  d.texture,
		Vertices: append([]device.Vertex(nil), v...),
		States:   d.states,
	})
	return nil
}

func (d *Device) Clear(r image.Rectangle, flags device.ClearFlags, color uint32) error {
	d.Clears++
	if flags&device.ClearTarget != 0 {
		if err := d.target.Fill(r, color); err != nil {
			return err
		}
	}
	if flags&device.ClearZBuffer != 0 && d.target.depth != nil {
		if err := d.target.depth.Fill(r, 0xFFFFFFFF); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) SetViewport(r image.Rectangle) error {
	if !r.In(d.target.Bounds()) {
		return fmt.Errorf("viewport %v outside target %v", r, d.target.Bounds())
	}
	d.viewport = r
	return nil
}

// Viewport reports the last viewport set.
func (d *Device) Viewport() image.Rectangle { return d.viewport }

func (d *Device) TextureFormats() []device.PixelFormat {
	return append([]device.PixelFormat(nil), d.formats...)
}

// TextureHandle issues a handle per surface generation, so a restored surface
// gets a new handle.
func (d *Device) TextureHandle(s device.Surface) (device.TextureHandle, error) {
	hs, ok := s.(*Surface)
	if !ok {
		return 0, fmt.Errorf("foreign surface %T", s)
	}
	if err := hs.usable(); err != nil {
		return 0, err
	}
	if hs.desc.Caps&device.CapTexture == 0 {
		return 0, fmt.Errorf("surface is not a texture")
	}
	if hs.handle != 0 && hs.handleGen == hs.gen {
		return hs.handle, nil
	}
	if d.byHandle == nil {
		d.byHandle = make(map[device.TextureHandle]*Surface)
	}
	d.nextHandle++
	hs.handle, hs.handleGen = d.nextHandle, hs.gen
	d.byHandle[hs.handle] = hs
	return hs.handle, nil
}

// Surface maps a handle back to its texture surface.
func (d *Device) Surface(h device.TextureHandle) *Surface { return d.byHandle[h] }

func (d *Device) Target() *Surface { return d.target }
func (d *Device) Released() bool   { return d.released }

// ResetLog clears the recorded calls.
func (d *Device) ResetLog() {
	d.Draws = nil
	d.StateWrites = nil
	d.TextureWrites = 0
	d.Clears = 0
}

func (d *Device) Release() {
	d.released = true
	d.byHandle = nil
}
