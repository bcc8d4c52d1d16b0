package device

import "testing"

func TestLayoutFromMasks(t *testing.T) {
	got := LayoutFromMasks(0x7C00, 0x03E0, 0x001F, 0x8000)
	if got != Format1555.Layout {
		t.Fatalf("1555 masks: got %+v, want %+v", got, Format1555.Layout)
	}
	if !(PixelFormat{BPP: 16, Layout: got}).Is1555() {
		t.Fatalf("derived layout not recognised as 1-5-5-5")
	}
	if (PixelFormat{BPP: 16, Layout: LayoutFromMasks(0xF800, 0x07E0, 0x001F, 0)}).Is1555() {
		t.Fatalf("5-6-5 reported as 1-5-5-5")
	}
}

func TestPackUnpack(t *testing.T) {
	cases := []struct {
		f          PixelFormat
		r, g, b, a uint8
		want       uint32
	}{
		{Format1555, 0xF8, 0x00, 0x00, 0xFF, 0xFC00},
		{Format1555, 0x00, 0xF8, 0x00, 0x00, 0x03E0},
		{Format565, 0xFF, 0xFF, 0xFF, 0xFF, 0xFFFF},
		{Format565, 0x08, 0x04, 0x08, 0x00, 0x0821},
		{Format8888, 0x12, 0x34, 0x56, 0x78, 0x78123456},
		{Format4444, 0xF0, 0x80, 0x10, 0xFF, 0xFF81},
	}
	for _, c := range cases {
		if got := c.f.Pack(c.r, c.g, c.b, c.a); got != c.want {
			t.Errorf("Pack(%d,%d,%d,%d) bpp %d: got %#x, want %#x", c.r, c.g, c.b, c.a, c.f.BPP, got, c.want)
		}
	}

	r, g, b, a := Format1555.Unpack(0xFFFF)
	if r != 0xFF || g != 0xFF || b != 0xFF || a != 0xFF {
		t.Fatalf("Unpack white: got %d %d %d %d", r, g, b, a)
	}
	_, _, _, a = Format565.Unpack(0)
	if a != 0xFF {
		t.Fatalf("format without alpha should be opaque, got %d", a)
	}
}

func TestPixelAccess(t *testing.T) {
	buf := make([]byte, 4)
	WritePixel(buf, 3, 0x00ABCDEF)
	if buf[0] != 0xEF || buf[1] != 0xCD || buf[2] != 0xAB || buf[3] != 0 {
		t.Fatalf("WritePixel little-endian: got % x", buf)
	}
	if got := ReadPixel(buf, 3); got != 0xABCDEF {
		t.Fatalf("ReadPixel: got %#x", got)
	}
}

func TestClosestMode(t *testing.T) {
	modes := []DisplayMode{
		{Width: 800, Height: 600, BPP: 8},
		{Width: 320, Height: 200, BPP: 8},
		{Width: 640, Height: 480, BPP: 8},
	}
	SortModes(modes)
	got, ok := ClosestMode(modes, DisplayMode{Width: 640, Height: 480})
	if !ok || got != (DisplayMode{Width: 640, Height: 480, BPP: 8}) {
		t.Fatalf("ClosestMode: got %v", got)
	}
	got, _ = ClosestMode(modes, DisplayMode{Width: 1600, Height: 1200})
	if got.Width != 800 {
		t.Fatalf("ClosestMode past the end should return the largest mode, got %v", got)
	}
	if _, ok := ClosestMode(nil, DisplayMode{}); ok {
		t.Fatalf("ClosestMode on an empty list reported a mode")
	}
	if s := (DisplayMode{Width: 1024, Height: 768, BPP: 16}).String(); s != "1024x768x16" {
		t.Fatalf("String: got %q", s)
	}
}
