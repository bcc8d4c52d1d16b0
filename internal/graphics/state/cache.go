// Package state caches device render state so repeated requests for the same
// texture, colour key or depth mode never reach the device.
package state

import (
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxlog"
)

// Config is the part of the display settings the device state depends on.
type Config struct {
	// ZBuffer is the user setting; ZSurface reports that a dedicated depth
	// surface was created for it.
	ZBuffer  bool
	ZSurface bool

	Bilinear    bool
	Perspective bool
	Dither      bool

	// ShadeRestricted adapters only support stippled alpha.
	ShadeRestricted bool
	// TexturesAlpha selects alpha blending instead of colour keying for
	// transparent texels.
	TexturesAlpha bool
}

// Cache is the last state written to a device.
type Cache struct {
	dev device.Device
	cfg Config

	alphaEnabler device.RenderState
	texture      device.TextureHandle
	colorKey     bool
	zTest        bool
	zWrite       bool
}

// New returns a cache for dev. dev may be nil until Attach.
func New(dev device.Device) *Cache {
	return &Cache{dev: dev, alphaEnabler: device.StateAlphaBlendEnable}
}

// Attach points the cache at another device and forgets the cached values.
// Nothing is written until Init.
func (c *Cache) Attach(dev device.Device) {
	c.dev = dev
	c.texture = 0
	c.colorKey, c.zTest, c.zWrite = false, false, false
}

func (c *Cache) Device() device.Device { return c.dev }
func (c *Cache) Config() Config        { return c.cfg }

// AlphaEnabler is the state that switches blending on for translucent
// flat polygons.
func (c *Cache) AlphaEnabler() device.RenderState { return c.alphaEnabler }

func filter(bilinear bool) uint32 {
	if bilinear {
		return device.FilterLinear
	}
	return device.FilterPoint
}

// Init programs the default device state for cfg and resets the cache.
func (c *Cache) Init(cfg Config) error {
	c.cfg = cfg
	c.alphaEnabler = device.StateAlphaBlendEnable
	if cfg.ShadeRestricted {
		c.alphaEnabler = device.StateStippledAlpha
	}
	f := filter(cfg.Bilinear)
	err := c.apply([]setting{
		{device.StateFillMode, device.FillSolid},
		{device.StateShadeMode, device.ShadeGouraud},
		{device.StateCullMode, device.CullNone},
		{device.StateSrcBlend, device.BlendSrcAlpha},
		{device.StateDestBlend, device.BlendInvSrcAlpha},
		{device.StatePerspective, device.Bool(cfg.Perspective)},
		{device.StateDither, device.Bool(cfg.Dither)},
		{device.StateMagFilter, f},
		{device.StateMinFilter, f},
		{device.StateTextureAddress, device.AddressClamp},
	})
	if err != nil {
		return err
	}
	if err := c.ResetTexture(); err != nil {
		return err
	}
	if err := c.ResetColorKey(); err != nil {
		return err
	}
	return c.ResetZBuffer()
}

// ResetTexture unbinds the texture and forgets the cached handle.
func (c *Cache) ResetTexture() error {
	c.texture = 0
	return c.dev.SetTexture(0)
}

// ForgetTexture drops the cached handle without touching the device. It is
// called when texture memory is released and a handle may be reissued.
func (c *Cache) ForgetTexture() { c.texture = 0 }

func (c *Cache) colorKeyState() device.RenderState {
	if c.cfg.TexturesAlpha {
		return device.StateAlphaBlendEnable
	}
	return device.StateColorKeyEnable
}

func (c *Cache) ResetColorKey() error {
	c.colorKey = false
	return c.dev.SetRenderState(c.colorKeyState(), device.StateDisabled)
}

// ResetZBuffer turns depth writes off. With a depth surface the test is left
// enabled per the setting and gated through the compare function; without
// one the test is disabled and polygons rely on submission order.
func (c *Cache) ResetZBuffer() error {
	c.zTest, c.zWrite = false, false
	var err error
	if c.cfg.ZSurface {
		err = c.set(device.StateZFunc, device.CmpAlways)
		if err == nil {
			err = c.set(device.StateZEnable, device.Bool(c.cfg.ZBuffer))
		}
	} else {
		err = c.set(device.StateZFunc, device.CmpLessEqual)
		if err == nil {
			err = c.set(device.StateZEnable, device.StateDisabled)
		}
	}
	if err != nil {
		return err
	}
	return c.set(device.StateZWriteEnable, device.StateDisabled)
}

// SetTexture binds h unless it is already bound.
func (c *Cache) SetTexture(h device.TextureHandle) error {
	if c.texture == h {
		return nil
	}
	if err := c.dev.SetTexture(h); err != nil {
		return err
	}
	c.texture = h
	return nil
}

// SetColorKey enables or disables transparent texels.
func (c *Cache) SetColorKey(on bool) error {
	if c.colorKey == on {
		return nil
	}
	if err := c.dev.SetRenderState(c.colorKeyState(), device.Bool(on)); err != nil {
		return err
	}
	c.colorKey = on
	return nil
}

// SetZBuffer sets depth write and depth test. It does nothing while the
// z-buffer setting is off.
func (c *Cache) SetZBuffer(write, test bool) error {
	if !c.cfg.ZBuffer {
		return nil
	}
	if c.zWrite != write {
		if err := c.set(device.StateZWriteEnable, device.Bool(write)); err != nil {
			return err
		}
		c.zWrite = write
	}
	if c.zTest != test {
		var err error
		if c.cfg.ZSurface {
			fn := device.CmpAlways
			if test {
				fn = device.CmpLessEqual
			}
			err = c.set(device.StateZFunc, fn)
		} else {
			err = c.set(device.StateZEnable, device.Bool(test))
		}
		if err != nil {
			return err
		}
		c.zTest = test
	}
	return nil
}

type setting struct {
	s device.RenderState
	v uint32
}

func (c *Cache) apply(list []setting) error {
	for _, st := range list {
		if err := c.set(st.s, st.v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) set(s device.RenderState, v uint32) error {
	if err := c.dev.SetRenderState(s, v); err != nil {
		gfxlog.Logger().Debug("render state rejected", "state", int(s), "value", v, "err", err)
		return err
	}
	return nil
}
