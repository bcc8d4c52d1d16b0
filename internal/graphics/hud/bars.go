// Package hud draws the status bars recorded in a draw list.
package hud

import (
	"image"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/state"
)

// Palette is the colour set of one bar. Colours are 0xRRGGBB.
type Palette struct {
	Light, Dark uint32
}

var (
	HealthPalette = Palette{Light: 0xFF2020, Dark: 0x800000}
	AirPalette    = Palette{Light: 0x4080FF, Dark: 0x002080}
)

const (
	frameOuter = 0x000000
	frameInner = 0x808080
	background = 0x202020
)

// Bars draws framed, two-tone bars as flat fans.
type Bars struct {
	cache *state.Cache
}

func NewBars(c *state.Cache) *Bars { return &Bars{cache: c} }

func (b *Bars) DrawHealthBar(r image.Rectangle, value, pixel int) error {
	return b.draw(r, value, pixel, HealthPalette)
}

func (b *Bars) DrawAirBar(r image.Rectangle, value, pixel int) error {
	return b.draw(r, value, pixel, AirPalette)
}

// Fill returns the filled part of the bar interior for a percentage.
func Fill(inner image.Rectangle, value int) image.Rectangle {
	value = max(0, min(value, 100))
	w := inner.Dx() * value / 100
	return image.Rect(inner.Min.X, inner.Min.Y, inner.Min.X+w, inner.Max.Y)
}

func (b *Bars) draw(r image.Rectangle, value, pixel int, pal Palette) error {
	if pixel < 1 {
		pixel = 1
	}
	dev := b.cache.Device()
	if dev == nil || r.Empty() {
		return nil
	}
	if err := b.cache.SetTexture(0); err != nil {
		return err
	}
	if err := b.cache.SetColorKey(false); err != nil {
		return err
	}

	border := r.Inset(pixel)
	inner := border.Inset(pixel)
	fill := Fill(inner, value)
	mid := fill.Min.Y + fill.Dy()/2

	rects := []struct {
		r     image.Rectangle
		color uint32
	}{
		{r, frameOuter},
		{border, frameInner},
		{inner, background},
		{image.Rect(fill.Min.X, fill.Min.Y, fill.Max.X, mid), pal.Light},
		{image.Rect(fill.Min.X, mid, fill.Max.X, fill.Max.Y), pal.Dark},
	}
	for _, q := range rects {
		if q.r.Empty() {
			continue
		}
		if err := dev.DrawPrimitive(device.TriangleFan, quad(q.r, q.color)); err != nil {
			return err
		}
	}
	return nil
}

func quad(r image.Rectangle, color uint32) []device.Vertex {
	x0, y0 := float32(r.Min.X), float32(r.Min.Y)
	x1, y1 := float32(r.Max.X), float32(r.Max.Y)
	color = device.WithAlpha(color, 0xFF)
	return []device.Vertex{
		{X: x0, Y: y0, RHW: 1, Color: color},
		{X: x1, Y: y0, RHW: 1, Color: color},
		{X: x1, Y: y1, RHW: 1, Color: color},
		{X: x0, Y: y1, RHW: 1, Color: color},
	}
}
