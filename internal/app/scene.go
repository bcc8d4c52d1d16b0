package app

import (
	"image"
	"math"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/drawlist"
)

const tile = 96

func quad(r image.Rectangle, z float32, color uint32) []device.Vertex {
	x0, y0 := float32(r.Min.X), float32(r.Min.Y)
	x1, y1 := float32(r.Max.X), float32(r.Max.Y)
	return []device.Vertex{
		{X: x0, Y: y0, Z: z, RHW: 1, Color: color, U: 0, V: 0},
		{X: x1, Y: y0, Z: z, RHW: 1, Color: color, U: 1, V: 0},
		{X: x1, Y: y1, Z: z, RHW: 1, Color: color, U: 1, V: 1},
		{X: x0, Y: y1, Z: z, RHW: 1, Color: color, U: 0, V: 1},
	}
}

func outline(r image.Rectangle, color uint32) []device.Vertex {
	v := quad(r, 0, color)
	return append(v, v[0])
}

// barValue sweeps between 0 and 100 over a few seconds of frames.
func barValue(frame, period int) int {
	phase := float64(frame%period) / float64(period)
	return int(50 + 50*math.Sin(phase*2*math.Pi))
}

// buildScene fills l with one frame of the demo: a row of textured tiles,
// the translucent kinds over them, an environment-mapped tile when
// reflections are on and the two status bars.
func buildScene(l *drawlist.List, vp image.Rectangle, frame, pages int) {
	l.Reset()
	if vp.Empty() {
		return
	}
	origin := vp.Min.Add(image.Pt(16, 32))
	cell := func(col, row int) image.Rectangle {
		at := origin.Add(image.Pt(col*(tile+8), row*(tile+8)))
		return image.Rectangle{Min: at, Max: at.Add(image.Pt(tile, tile))}
	}
	white := device.WithAlpha(0xFFFFFF, 0xFF)

	if pages > 0 {
		l.AddTextured(drawlist.Textured, 0, quad(cell(0, 0), 0.5, white))
		l.AddTextured(drawlist.TexturedKeyed, 1%pages, quad(cell(1, 0), 0.5, white))
		l.AddTextured(drawlist.TexturedHalf, 2%pages, quad(cell(0, 0).Add(image.Pt(tile/2, tile/2)), 0.4, white))
		l.AddTextured(drawlist.TexturedAdd, 3%pages, quad(cell(2, 0), 0.5, white))
		l.AddTextured(drawlist.TexturedSub, 0, quad(cell(3, 0), 0.5, white))
		l.AddTextured(drawlist.TexturedQuarter, 1%pages, quad(cell(2, 0).Add(image.Pt(tile/2, 0)), 0.4, white))
	}

	l.AddFlat(drawlist.Flat, quad(cell(0, 1), 0.5, device.WithAlpha(0x4060A0, 0xFF)))
	l.AddFlat(drawlist.FlatHalf, quad(cell(0, 1).Add(image.Pt(tile/2, tile/2)), 0.4, device.WithAlpha(0xE04040, 0xFF)))
	l.AddFlat(drawlist.FlatAdd, quad(cell(1, 1), 0.5, device.WithAlpha(0x406020, 0xFF)))
	l.AddFlat(drawlist.FlatSub, quad(cell(2, 1), 0.5, device.WithAlpha(0x202020, 0xFF)))
	l.AddFlat(drawlist.FlatQuarter, quad(cell(3, 1), 0.5, device.WithAlpha(0xFFFFFF, 0xFF)))
	l.AddFlat(drawlist.Translucent, quad(cell(1, 1).Add(image.Pt(tile/2, tile/2)), 0.3, device.WithAlpha(0x000000, 0x80)))

	if config.GetReflectionMode() != 0 {
		l.AddTextured(drawlist.TexturedHalf, drawlist.EnvironmentPage, quad(cell(4, 0), 0.45, white))
	}

	for col := 0; col < 4; col++ {
		l.AddFlat(drawlist.Line, outline(cell(col, 0), device.WithAlpha(0xFFFFFF, 0xFF)))
	}

	bar := image.Rect(0, 0, vp.Dx()/4, 10)
	l.AddBar(drawlist.HealthBar, drawlist.Bar{
		Rect:  bar.Add(vp.Min.Add(image.Pt(8, 8))),
		Value: barValue(frame, 240),
		Pixel: 1,
	})
	l.AddBar(drawlist.AirBar, drawlist.Bar{
		Rect:  bar.Add(image.Pt(vp.Max.X-bar.Dx()-8, vp.Min.Y+8)),
		Value: barValue(frame+60, 180),
		Pixel: 1,
	})
}
