package pagefile

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/ericpauley/go-quantize/quantize"
)

// KeyIndex is the palette slot reserved for see-through texels.
const KeyIndex = 0

func pack1555(r, g, b, a uint8) uint16 {
	p := uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
	if a >= 0x80 {
		p |= 1 << 15
	}
	return p
}

func unpack1555(p uint16) color.NRGBA {
	c := color.NRGBA{
		R: uint8(p>>7) & 0xF8,
		G: uint8(p>>2) & 0xF8,
		B: uint8(p<<3) & 0xF8,
	}
	if p>>15 != 0 {
		c.A = 0xFF
	}
	return c
}

// Page decodes page i into an image. Key texels of 8-bit pages and texels
// without the alpha bit come out fully transparent.
func (f *File) Page(i int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, PageSide, PageSide))
	src := f.Pages[i]
	for t := 0; t < PageSide*PageSide; t++ {
		var c color.NRGBA
		if f.Depth == 8 {
			if idx := src[t]; idx != KeyIndex {
				rgb := f.Palette[idx]
				c = color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xFF}
			}
		} else {
			c = unpack1555(uint16(src[2*t]) | uint16(src[2*t+1])<<8)
		}
		img.Pix[4*t], img.Pix[4*t+1], img.Pix[4*t+2], img.Pix[4*t+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func (f *File) images() []*image.NRGBA {
	out := make([]*image.NRGBA, len(f.Pages))
	for i := range f.Pages {
		out[i] = f.Page(i)
	}
	return out
}

// To16 returns the pages as 1-5-5-5 texels. A 16-bit file is returned as is.
func (f *File) To16() *File {
	if f.Depth == 16 {
		return f
	}
	return FromImages16(f.images())
}

// To8 returns the pages remapped onto one median-cut palette. An 8-bit file
// is returned as is.
func (f *File) To8(dither bool) *File {
	if f.Depth == 8 {
		return f
	}
	return FromImages8(f.images(), dither)
}

// FromImages16 packs page-sized images as 1-5-5-5 texels. Texels under half
// opacity lose their alpha bit.
func FromImages16(pages []*image.NRGBA) *File {
	f := &File{Depth: 16}
	for _, pg := range pages {
		out := make([]byte, f.PageSize())
		for i := 0; i < len(pg.Pix); i += 4 {
			p := pack1555(pg.Pix[i], pg.Pix[i+1], pg.Pix[i+2], pg.Pix[i+3])
			out[i/2], out[i/2+1] = byte(p), byte(p>>8)
		}
		f.Pages = append(f.Pages, out)
	}
	return f
}

// FromImages8 builds one shared palette for all pages with a median cut and
// maps every texel onto it. Slot KeyIndex stays black and receives
// transparent texels.
func FromImages8(pages []*image.NRGBA, dither bool) *File {
	atlas := image.NewNRGBA(image.Rect(0, 0, PageSide, PageSide*max(len(pages), 1)))
	for i, pg := range pages {
		r := pg.Bounds().Add(image.Pt(0, i*PageSide))
		draw.Draw(atlas, r, opaque{pg}, image.Point{}, draw.Src)
	}

	q := quantize.MedianCutQuantizer{}
	key := color.NRGBA{A: 0xFF}
	pal := q.Quantize(append(make(color.Palette, 0, 256), key), atlas)
	if len(pal) < 2 {
		pal = append(pal, key)
	}

	f := &File{Depth: 8, Palette: new([256][3]uint8)}
	for i, c := range pal {
		r, g, b, _ := c.RGBA()
		f.Palette[i] = [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
	}

	var d draw.Drawer = draw.Src
	if dither {
		d = draw.FloydSteinberg
	}
	// The key slot must only come from transparency.
	mapped := image.NewPaletted(image.Rect(0, 0, PageSide, PageSide), pal[1:])
	for _, pg := range pages {
		d.Draw(mapped, mapped.Bounds(), opaque{pg}, image.Point{})
		out := make([]byte, f.PageSize())
		for i := range out {
			if pg.Pix[i*4+3] < 0x80 {
				out[i] = KeyIndex
				continue
			}
			out[i] = mapped.Pix[i] + 1
		}
		f.Pages = append(f.Pages, out)
	}
	return f
}

// opaque presents an image with its alpha forced to full.
type opaque struct{ image.Image }

func (o opaque) At(x, y int) color.Color {
	r, g, b, _ := o.Image.At(x, y).RGBA()
	return color.NRGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0xFFFF}
}
