package gldevice

import (
	"image"

	"github.com/go-gl/glfw/v3.3/glfw"

	"gfxcore/internal/graphics/device"
)

// vidModeBPP rounds the channel bits of a monitor mode to a surface depth.
func vidModeBPP(v *glfw.VidMode) int {
	if v.RedBits+v.GreenBits+v.BlueBits <= 16 {
		return 16
	}
	return 32
}

// modeLists converts monitor modes to the hardware list and the 8-bit
// software list. Refresh-rate variants collapse into one entry.
func modeLists(vids []*glfw.VidMode) (hw, sw []device.DisplayMode) {
	seenHW := make(map[device.DisplayMode]bool)
	seenSW := make(map[device.DisplayMode]bool)
	for _, v := range vids {
		if v == nil || v.Width <= 0 || v.Height <= 0 {
			continue
		}
		m := device.DisplayMode{Width: v.Width, Height: v.Height, BPP: vidModeBPP(v)}
		if !seenHW[m] {
			seenHW[m] = true
			hw = append(hw, m)
		}
		s := device.DisplayMode{Width: v.Width, Height: v.Height, BPP: 8, VGA: device.VGA256Color}
		if !seenSW[s] {
			seenSW[s] = true
			sw = append(sw, s)
		}
	}
	device.SortModes(hw)
	device.SortModes(sw)
	return hw, sw
}

// displayFormat is the pixel layout of screen surfaces in mode m.
func displayFormat(m device.DisplayMode) device.PixelFormat {
	switch {
	case m.VGA != device.VGANone || m.BPP == 8:
		return device.FormatIndexed8
	case m.BPP == 16:
		return device.Format565
	}
	return device.Format888
}

// expandRGBA converts packed pixels to RGBA8 rows for upload. Indexed
// pixels go through pal; with keyed set, pixels equal to key become fully
// transparent. Indexed textures key index 0.
func expandRGBA(dst []byte, src []byte, pitch int, size image.Point, f device.PixelFormat, pal *[256]device.RGB, key uint32, keyed bool) {
	bpp := f.BytesPerPixel()
	for y := 0; y < size.Y; y++ {
		row := src[y*pitch:]
		out := dst[y*size.X*4:]
		for x := 0; x < size.X; x++ {
			c := device.ReadPixel(row[x*bpp:], bpp)
			var r, g, b, a uint8
			if f.Indexed {
				e := pal[c&0xFF]
				r, g, b, a = e.R, e.G, e.B, 0xFF
			} else {
				r, g, b, a = f.Unpack(c)
			}
			if keyed && c == key {
				a = 0
			}
			o := out[x*4:]
			o[0], o[1], o[2], o[3] = r, g, b, a
		}
	}
}

// packRGBA is the inverse of expandRGBA for read-back. Indexed targets get
// the nearest palette entry by squared distance.
func packRGBA(dst []byte, pitch int, src []byte, size image.Point, f device.PixelFormat, pal *[256]device.RGB) {
	bpp := f.BytesPerPixel()
	for y := 0; y < size.Y; y++ {
		in := src[y*size.X*4:]
		row := dst[y*pitch:]
		for x := 0; x < size.X; x++ {
			p := in[x*4:]
			var c uint32
			if f.Indexed {
				c = uint32(nearest(pal, p[0], p[1], p[2]))
			} else {
				c = f.Pack(p[0], p[1], p[2], p[3])
			}
			device.WritePixel(row[x*bpp:], bpp, c)
		}
	}
}

func nearest(pal *[256]device.RGB, r, g, b uint8) uint8 {
	best, bestDist := 0, 1<<30
	for i, e := range pal {
		dr, dg, db := int(e.R)-int(r), int(e.G)-int(g), int(e.B)-int(b)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return uint8(best)
}

// blitPixels copies sr of src into d of dst with nearest-neighbour scaling.
func blitPixels(dst *Surface, d image.Rectangle, src *Surface, sr image.Rectangle) {
	dbpp, sbpp := dst.format.BytesPerPixel(), src.format.BytesPerPixel()
	same := dst.format == src.format
	var pal [256]device.RGB
	if src.format.Indexed && src.palette != nil {
		pal = src.palette.Entries()
	}
	var dpal [256]device.RGB
	if dst.format.Indexed && dst.palette != nil {
		dpal = dst.palette.Entries()
	}
	for y := 0; y < d.Dy(); y++ {
		sy := sr.Min.Y + y*sr.Dy()/d.Dy()
		drow := dst.pix[(d.Min.Y+y)*dst.pitch:]
		srow := src.pix[sy*src.pitch:]
		for x := 0; x < d.Dx(); x++ {
			sx := sr.Min.X + x*sr.Dx()/d.Dx()
			c := device.ReadPixel(srow[sx*sbpp:], sbpp)
			if !same {
				c = convertPixel(c, src.format, dst.format, &pal, &dpal)
			}
			device.WritePixel(drow[(d.Min.X+x)*dbpp:], dbpp, c)
		}
	}
}

func convertPixel(c uint32, from, to device.PixelFormat, pal, dpal *[256]device.RGB) uint32 {
	if from.Indexed && to.Indexed {
		return c
	}
	var r, g, b, a uint8
	if from.Indexed {
		e := pal[c&0xFF]
		r, g, b, a = e.R, e.G, e.B, 0xFF
	} else {
		r, g, b, a = from.Unpack(c)
	}
	if to.Indexed {
		return uint32(nearest(dpal, r, g, b))
	}
	return to.Pack(r, g, b, a)
}

// systemPalette is the reserved desktop palette: the sixteen VGA colours
// split over the first and last ten entries with a grey ramp between.
func systemPalette() [256]device.RGB {
	vga := [20]device.RGB{
		{0, 0, 0}, {128, 0, 0}, {0, 128, 0}, {128, 128, 0}, {0, 0, 128},
		{128, 0, 128}, {0, 128, 128}, {192, 192, 192}, {192, 220, 192}, {166, 202, 240},
		{255, 251, 240}, {160, 160, 164}, {128, 128, 128}, {255, 0, 0}, {0, 255, 0},
		{255, 255, 0}, {0, 0, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
	}
	var p [256]device.RGB
	copy(p[:10], vga[:10])
	copy(p[246:], vga[10:])
	for i := 10; i < 246; i++ {
		v := uint8((i - 10) * 255 / 235)
		p[i] = device.RGB{R: v, G: v, B: v}
	}
	return p
}
