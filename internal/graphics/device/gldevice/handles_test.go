package gldevice

import (
	"testing"

	"gfxcore/internal/graphics/device"
)

func textureSurface(b *Backend) *Surface {
	return &Surface{b: b, desc: device.SurfaceDesc{Width: 8, Height: 8, Caps: device.CapTexture}, tex: 1}
}

func TestTextureHandleTable(t *testing.T) {
	b := &Backend{}
	d := &Device{b: b, handles: make(map[device.TextureHandle]*Surface)}
	s := textureSurface(b)

	h1, err := d.TextureHandle(s)
	if err != nil {
		t.Fatalf("TextureHandle: %v", err)
	}
	if h2, _ := d.TextureHandle(s); h2 != h1 {
		t.Fatalf("second handle: got %d, want %d", h2, h1)
	}
	if len(d.handles) != 1 {
		t.Fatalf("got %d table entries, want 1", len(d.handles))
	}

	for i := 0; i < 16; i++ {
		tmp := textureSurface(b)
		if _, err := d.TextureHandle(tmp); err != nil {
			t.Fatal(err)
		}
		tmp.dropHandle()
	}
	if len(d.handles) != 1 {
		t.Fatalf("dropped surfaces left %d table entries, want 1", len(d.handles))
	}

	s.dropHandle()
	if len(d.handles) != 0 || s.owner != nil {
		t.Fatalf("table not pruned: %d entries", len(d.handles))
	}
	if h3, _ := d.TextureHandle(s); h3 == h1 || h3 == 0 {
		t.Fatalf("handle after drop: got %d (before %d)", h3, h1)
	}
}
