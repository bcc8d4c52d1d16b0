package drawlist

import (
	"fmt"
	"image"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/state"
)

// PageHandles resolves level page numbers to draw handles.
type PageHandles interface {
	Handle(page int) device.TextureHandle
}

// EnvironmentSource provides the captured environment texture.
type EnvironmentSource interface {
	EnvironmentTexture() device.TextureHandle
}

// TextureFormat reports the negotiated texture layout.
type TextureFormat interface {
	Format() device.PixelFormat
}

// BarDrawer draws status bars.
type BarDrawer interface {
	DrawHealthBar(r image.Rectangle, value, pixel int) error
	DrawAirBar(r image.Rectangle, value, pixel int) error
}

// Dispatcher submits lists through a render-state cache.
type Dispatcher struct {
	cache    *state.Cache
	pages    PageHandles
	env      EnvironmentSource
	textures TextureFormat
	bars     BarDrawer
}

// NewDispatcher returns a dispatcher. env and bars may be nil; entries that
// need them are then skipped.
func NewDispatcher(cache *state.Cache, pages PageHandles, textures TextureFormat, env EnvironmentSource, bars BarDrawer) *Dispatcher {
	return &Dispatcher{cache: cache, pages: pages, env: env, textures: textures, bars: bars}
}

func (d *Dispatcher) SetPages(p PageHandles)             { d.pages = p }
func (d *Dispatcher) SetBars(b BarDrawer)                { d.bars = b }
func (d *Dispatcher) SetEnvironment(e EnvironmentSource) { d.env = e }

func (d *Dispatcher) handle(page int) device.TextureHandle {
	if page == EnvironmentPage {
		if d.env == nil {
			return 0
		}
		return d.env.EnvironmentTexture()
	}
	if d.pages == nil {
		return 0
	}
	return d.pages.Handle(page)
}

// blended reports whether translucent kinds get the blend emulation. Paletted
// textures and the off setting draw them as plain fans.
func (d *Dispatcher) blended() bool {
	bpp := 16
	if d.textures != nil {
		bpp = d.textures.Format().BPP
	}
	return bpp >= 16 && config.GetAlphaBlendMode() != 0
}

// Dispatch draws every entry in list order. Depth test is on and depth
// writes are off for the whole list.
func (d *Dispatcher) Dispatch(l *List) error {
	if d.cache.Device() == nil {
		return fmt.Errorf("dispatch without a device")
	}
	if err := d.cache.SetZBuffer(false, true); err != nil {
		return err
	}
	level := state.BlendLevel(config.GetAlphaBlendMode())
	blend := d.blended()
	for i, e := range l.Entries() {
		if err := d.draw(e, level, blend); err != nil {
			return fmt.Errorf("draw list entry %d (%s): %w", i, e.Kind, err)
		}
	}
	return nil
}

func (d *Dispatcher) draw(e Entry, level state.BlendLevel, blend bool) error {
	c := d.cache
	dev := c.Device()
	switch {
	case e.Kind.IsTextured():
		if err := c.SetTexture(d.handle(e.Page)); err != nil {
			return err
		}
		if err := c.SetColorKey(e.Kind != Textured); err != nil {
			return err
		}
		if !blend || e.Kind <= TexturedKeyed {
			return dev.DrawPrimitive(device.TriangleFan, e.Vertices)
		}
		return c.DrawTranslucent(e.Vertices, level, state.BlendMode(e.Kind-TexturedHalf))

	case e.Kind >= Flat && e.Kind <= FlatQuarter:
		if err := c.SetTexture(0); err != nil {
			return err
		}
		if err := c.SetColorKey(e.Kind != Flat); err != nil {
			return err
		}
		if !blend || e.Kind == Flat {
			return dev.DrawPrimitive(device.TriangleFan, e.Vertices)
		}
		return c.DrawTranslucent(e.Vertices, level, state.BlendMode(e.Kind-FlatHalf))

	case e.Kind == Line:
		if err := c.SetTexture(0); err != nil {
			return err
		}
		if err := c.SetColorKey(false); err != nil {
			return err
		}
		return dev.DrawPrimitive(device.LineStrip, e.Vertices)

	case e.Kind == Translucent:
		if err := c.SetTexture(0); err != nil {
			return err
		}
		enabler := c.AlphaEnabler()
		prev := dev.RenderState(enabler)
		if err := dev.SetRenderState(enabler, device.StateEnabled); err != nil {
			return err
		}
		err := dev.DrawPrimitive(device.TriangleFan, e.Vertices)
		if rerr := dev.SetRenderState(enabler, prev); err == nil {
			err = rerr
		}
		return err

	case e.Kind == HealthBar:
		if d.bars == nil {
			return nil
		}
		return d.bars.DrawHealthBar(e.Bar.Rect, e.Bar.Value, e.Bar.Pixel)

	case e.Kind == AirBar:
		if d.bars == nil {
			return nil
		}
		return d.bars.DrawAirBar(e.Bar.Rect, e.Bar.Value, e.Bar.Pixel)
	}
	return fmt.Errorf("unknown entry kind %s", e.Kind)
}
