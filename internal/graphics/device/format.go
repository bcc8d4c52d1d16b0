package device

import "math/bits"

// RGB is one palette entry.
type RGB struct {
	R, G, B uint8
}

// ChannelLayout describes where each colour channel lives inside a packed pixel.
type ChannelLayout struct {
	RBits, GBits, BBits, ABits     uint8
	RShift, GShift, BShift, AShift uint8
}

// LayoutFromMasks derives channel widths and offsets from bit masks.
func LayoutFromMasks(r, g, b, a uint32) ChannelLayout {
	return ChannelLayout{
		RBits: uint8(bits.OnesCount32(r)), RShift: maskShift(r),
		GBits: uint8(bits.OnesCount32(g)), GShift: maskShift(g),
		BBits: uint8(bits.OnesCount32(b)), BShift: maskShift(b),
		ABits: uint8(bits.OnesCount32(a)), AShift: maskShift(a),
	}
}

func maskShift(m uint32) uint8 {
	if m == 0 {
		return 0
	}
	return uint8(bits.TrailingZeros32(m))
}

// PixelFormat is a surface or texture pixel layout.
type PixelFormat struct {
	BPP     int
	Indexed bool
	Layout  ChannelLayout
}

var (
	Format1555 = PixelFormat{BPP: 16, Layout: ChannelLayout{
		RBits: 5, GBits: 5, BBits: 5, ABits: 1,
		RShift: 10, GShift: 5, BShift: 0, AShift: 15,
	}}
	Format565 = PixelFormat{BPP: 16, Layout: ChannelLayout{
		RBits: 5, GBits: 6, BBits: 5,
		RShift: 11, GShift: 5, BShift: 0,
	}}
	Format4444 = PixelFormat{BPP: 16, Layout: ChannelLayout{
		RBits: 4, GBits: 4, BBits: 4, ABits: 4,
		RShift: 8, GShift: 4, BShift: 0, AShift: 12,
	}}
	Format8888 = PixelFormat{BPP: 32, Layout: ChannelLayout{
		RBits: 8, GBits: 8, BBits: 8, ABits: 8,
		RShift: 16, GShift: 8, BShift: 0, AShift: 24,
	}}
	Format888 = PixelFormat{BPP: 32, Layout: ChannelLayout{
		RBits: 8, GBits: 8, BBits: 8,
		RShift: 16, GShift: 8, BShift: 0,
	}}
	FormatIndexed8 = PixelFormat{BPP: 8, Indexed: true}
)

func (f PixelFormat) BytesPerPixel() int { return (f.BPP + 7) / 8 }
func (f PixelFormat) HasAlpha() bool     { return !f.Indexed && f.Layout.ABits > 0 }

// Is1555 reports an exact match with the 1-5-5-5 asset layout, which lets
// 16-bit texture data be copied without conversion.
func (f PixelFormat) Is1555() bool {
	return !f.Indexed && f.BPP == 16 && f.Layout == Format1555.Layout
}

// Pack places 8-bit channel values into the format, truncating low bits.
func (f PixelFormat) Pack(r, g, b, a uint8) uint32 {
	l := f.Layout
	return packChannel(r, l.RBits, l.RShift) |
		packChannel(g, l.GBits, l.GShift) |
		packChannel(b, l.BBits, l.BShift) |
		packChannel(a, l.ABits, l.AShift)
}

func packChannel(v, n, shift uint8) uint32 {
	if n == 0 {
		return 0
	}
	return uint32(v>>(8-n)) << shift
}

// Unpack expands a packed pixel to 8-bit channels. Formats without alpha
// report opaque pixels.
func (f PixelFormat) Unpack(c uint32) (r, g, b, a uint8) {
	l := f.Layout
	r = unpackChannel(c, l.RBits, l.RShift)
	g = unpackChannel(c, l.GBits, l.GShift)
	b = unpackChannel(c, l.BBits, l.BShift)
	a = 0xFF
	if l.ABits > 0 {
		a = unpackChannel(c, l.ABits, l.AShift)
	}
	return
}

func unpackChannel(c uint32, n, shift uint8) uint8 {
	if n == 0 {
		return 0
	}
	mask := uint32(1)<<n - 1
	return uint8(((c >> shift) & mask) * 0xFF / mask)
}

// ReadPixel and WritePixel access little-endian packed pixels.
func ReadPixel(p []byte, bpp int) uint32 {
	var c uint32
	for k := bpp - 1; k >= 0; k-- {
		c = c<<8 | uint32(p[k])
	}
	return c
}

func WritePixel(p []byte, bpp int, c uint32) {
	for k := 0; k < bpp; k++ {
		p[k] = byte(c)
		c >>= 8
	}
}
