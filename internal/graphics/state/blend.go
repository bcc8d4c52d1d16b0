package state

import "gfxcore/internal/graphics/device"

// BlendMode selects one of the console-style translucency equations.
type BlendMode int

const (
	BlendHalf BlendMode = iota
	BlendAdd
	BlendSub
	BlendQuarter

	numBlendModes
)

// BlendLevel is the translucency quality tunable.
type BlendLevel int

const (
	// BlendOff draws translucent polygons as opaque ones.
	BlendOff BlendLevel = iota
	// BlendBasic uses one pass per polygon.
	BlendBasic
	// BlendAdvanced uses two passes to approximate the console equations
	// more closely.
	BlendAdvanced
)

// BlendParam is one row of a blend table.
type BlendParam struct {
	Src, Dst uint32
	Alpha    uint8
}

var basicBlend = [numBlendModes]BlendParam{
	{device.BlendSrcAlpha, device.BlendInvSrcAlpha, 128},
	{device.BlendOne, device.BlendOne, 255},
	{device.BlendZero, device.BlendInvSrcColor, 255},
	{device.BlendInvSrcAlpha, device.BlendOne, 192},
}

var advancedBlend = [numBlendModes][2]BlendParam{
	{{device.BlendOne, device.BlendSrcAlpha, 128}, {device.BlendSrcAlpha, device.BlendOne, 128}},
	{{device.BlendOne, device.BlendSrcAlpha, 255}, {device.BlendSrcAlpha, device.BlendOne, 255}},
	{{device.BlendZero, device.BlendInvSrcColor, 255}, {device.BlendZero, device.BlendInvSrcColor, 255}},
	{{device.BlendSrcAlpha, device.BlendOne, 128}, {device.BlendInvSrcAlpha, device.BlendOne, 255}},
}

// Blend returns the table row for mode and pass.
func Blend(level BlendLevel, mode BlendMode, pass int) (BlendParam, bool) {
	if mode < 0 || mode >= numBlendModes || pass < 0 || pass > 1 {
		return BlendParam{}, false
	}
	if level == BlendAdvanced {
		return advancedBlend[mode][pass], true
	}
	return basicBlend[mode], true
}

// HalveRGB halves the colour channels of an ARGB value. The low bit of each
// channel is cleared first so no channel borrows from its neighbour.
func HalveRGB(c uint32) uint32 {
	return (c & 0xFEFEFE) >> 1
}

// ApplyBlend rewrites vertex colours in place for one pass and sets the
// blend factors. On the first advanced pass RGB is halved before the alpha
// is set; the second pass then works on the halved colours.
func (c *Cache) ApplyBlend(v []device.Vertex, level BlendLevel, mode BlendMode, pass int) error {
	p, ok := Blend(level, mode, pass)
	if !ok {
		return nil
	}
	for i := range v {
		if level == BlendAdvanced && pass == 0 {
			v[i].Color = HalveRGB(v[i].Color)
		}
		v[i].Color = device.WithAlpha(v[i].Color, p.Alpha)
	}
	if err := c.dev.SetRenderState(device.StateSrcBlend, p.Src); err != nil {
		return err
	}
	return c.dev.SetRenderState(device.StateDestBlend, p.Dst)
}

// DrawTranslucent draws a fan with the console blend emulation and returns
// the device to the default blend, alpha test and filter state.
func (c *Cache) DrawTranslucent(v []device.Vertex, level BlendLevel, mode BlendMode) error {
	d := c.dev
	pointFilter := c.cfg.Bilinear && mode == BlendAdd

	steps := []setting{
		{device.StateAlphaRef, 0x70},
		{device.StateAlphaFunc, device.CmpGreater},
		{device.StateAlphaTestEnable, device.StateEnabled},
	}
	if pointFilter {
		// additive glow shows seams when filtered
		steps = append(steps,
			setting{device.StateMagFilter, device.FilterPoint},
			setting{device.StateMinFilter, device.FilterPoint})
	}
	if err := c.apply(steps); err != nil {
		return err
	}

	passes := 1
	if level == BlendAdvanced {
		passes = 2
	}
	for pass := 0; pass < passes; pass++ {
		if err := c.ApplyBlend(v, level, mode, pass); err != nil {
			return err
		}
		if err := d.DrawPrimitive(device.TriangleFan, v); err != nil {
			return err
		}
	}

	restore := []setting{
		{device.StateSrcBlend, device.BlendSrcAlpha},
		{device.StateDestBlend, device.BlendInvSrcAlpha},
		{device.StateAlphaRef, 0},
		{device.StateAlphaFunc, device.CmpAlways},
		{device.StateAlphaTestEnable, device.StateDisabled},
	}
	if pointFilter {
		restore = append(restore,
			setting{device.StateMagFilter, device.FilterLinear},
			setting{device.StateMinFilter, device.FilterLinear})
	}
	return c.apply(restore)
}
