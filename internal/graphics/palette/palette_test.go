package palette

import (
	"errors"
	"testing"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/device/headless"
	"gfxcore/internal/graphics/gfxerr"
)

func rampPalette() Entries {
	var p Entries
	for i := range p {
		p[i] = device.RGB{R: uint8(i), G: uint8(255 - i), B: uint8(i * 7)}
	}
	return p
}

func TestNearestColorIdentity(t *testing.T) {
	p := rampPalette()
	for i := range p {
		if got := NearestColor(&p, p[i].R, p[i].G, p[i].B, false); int(got) != i {
			t.Fatalf("entry %d: got %d", i, got)
		}
	}
}

func TestNearestColorTieBreak(t *testing.T) {
	var p Entries
	p[3] = device.RGB{R: 10}
	p[7] = device.RGB{R: 10}
	for i := range p {
		if i != 3 && i != 7 {
			p[i] = device.RGB{R: 200, G: 200, B: 200}
		}
	}
	if got := NearestColor(&p, 10, 0, 0, false); got != 3 {
		t.Fatalf("tie: got %d, want 3", got)
	}
	if got := NearestColor(&p, 10, 0, 0, true); got != 10 {
		// 3 and 7 are reserved; the first unreserved entry wins the tie.
		t.Fatalf("reserved trimmed: got %d, want 10", got)
	}
}

func TestRemapHonoursPitch(t *testing.T) {
	src := rampPalette()
	var dst Entries
	for i := range dst {
		dst[i] = src[255-i]
	}
	srcPix := []byte{1, 2, 0xEE, 3, 4, 0xEE}
	dstPix := make([]byte, 2*4)
	Remap(dstPix, 4, srcPix, 3, 2, 2, &src, &dst, false)
	want := []byte{254, 253, 0, 0, 252, 251, 0, 0}
	for i := range want {
		if dstPix[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, dstPix[i], want[i])
		}
	}
}

func TestBuildReduced(t *testing.T) {
	src := rampPalette()
	sys := headless.DefaultSystemPalette()
	bitmap := make([]byte, 0, 1024)
	for i := 0; i < 40; i++ {
		bitmap = append(bitmap, 200)
	}
	for i := 0; i < 20; i++ {
		bitmap = append(bitmap, 5, 6)
	}
	hist := Histogram(bitmap)
	out := BuildReduced(&hist, &src, &sys)

	if len(out) != Size {
		t.Fatalf("got %d entries", len(out))
	}
	for i := 0; i < 8; i++ {
		if out[i] != sys[i] {
			t.Fatalf("entry %d: got %v, want system %v", i, out[i], sys[i])
		}
	}
	for i := 247; i < 256; i++ {
		if out[i] != sys[i] {
			t.Fatalf("entry %d: got %v, want system %v", i, out[i], sys[i])
		}
	}
	black := device.RGB{}
	if out[8] != black || out[9] != black || out[246] != black {
		t.Fatalf("separator entries not black: %v %v %v", out[8], out[9], out[246])
	}
	if out[10] != src[200] || out[11] != src[5] || out[12] != src[6] {
		t.Fatalf("frequency order: got %v %v %v", out[10], out[11], out[12])
	}
	// unused colours follow in index order
	if out[13] != src[0] || out[14] != src[1] {
		t.Fatalf("tie order: got %v %v", out[13], out[14])
	}
}

func TestRegistryLifecycle(t *testing.T) {
	b := headless.New(headless.Config{})
	r := NewRegistry(b)
	p := rampPalette()

	for i := 0; i < MaxSlots; i++ {
		idx, err := r.Create(&p)
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		if idx != i {
			t.Fatalf("first fit: got slot %d, want %d", idx, i)
		}
	}
	if _, err := r.Create(&p); !errors.Is(err, gfxerr.ErrNoFreeSlot) {
		t.Fatalf("full registry: got %v, want ErrNoFreeSlot", err)
	}

	if err := r.Retain(5); err != nil {
		t.Fatal(err)
	}
	h := r.Handle(5).(*headless.Palette)
	r.Free(5)
	if r.Available() != 0 || h.Released() {
		t.Fatalf("slot released while still referenced")
	}
	r.Free(5)
	if r.Available() != 1 || !h.Released() {
		t.Fatalf("slot kept after last reference: available %d", r.Available())
	}
	if idx, _ := r.Create(&p); idx != 5 {
		t.Fatalf("reuse: got slot %d, want 5", idx)
	}

	if e, ok := r.Entries(5); !ok || *e != p || r.Handle(5) == nil {
		t.Fatalf("reused slot lost its entries or handle")
	}

	r.FreeAll()
	if r.Available() != MaxSlots {
		t.Fatalf("FreeAll: available %d, want %d", r.Available(), MaxSlots)
	}
}

func BenchmarkNearestColor(b *testing.B) {
	p := rampPalette()
	for i := 0; i < b.N; i++ {
		NearestColor(&p, uint8(i), uint8(i>>3), uint8(i>>5), true)
	}
}
