package headless

import (
	"fmt"
	"image"

	"gfxcore/internal/graphics/device"
)

// Surface is a headless device.Surface backed by a byte slice.
type Surface struct {
	b      *Backend
	desc   device.SurfaceDesc
	format device.PixelFormat
	pix    []byte
	pitch  int

	lost     bool
	released bool
	locked   bool
	// gen increments on every restore; texture handles issued before a
	// restore are stale.
	gen int

	chain []*Surface
	index int
	depth *Surface

	palette  device.Palette
	colorKey uint32
	keyed    bool

	handle    device.TextureHandle
	handleGen int
}

func (s *Surface) Desc() device.SurfaceDesc   { return s.desc }
func (s *Surface) Format() device.PixelFormat { return s.format }
func (s *Surface) Bounds() image.Rectangle    { return image.Rect(0, 0, s.desc.Width, s.desc.Height) }
func (s *Surface) IsLost() bool               { return s.lost }
func (s *Surface) Released() bool             { return s.released }
func (s *Surface) Palette() device.Palette    { return s.palette }
func (s *Surface) ColorKey() (uint32, bool)   { return s.colorKey, s.keyed }
func (s *Surface) Depth() *Surface            { return s.depth }
func (s *Surface) Generation() int            { return s.gen }

func (s *Surface) Restore() error {
	if s.released {
		return fmt.Errorf("surface released")
	}
	if s.b.Faults.FailRestore {
		return fmt.Errorf("restore refused")
	}
	// Restoring the front of a flip chain restores the whole chain.
	targets := []*Surface{s}
	if s.index == 0 && len(s.chain) > 0 {
		targets = s.chain
	}
	for _, t := range targets {
		if !t.lost {
			continue
		}
		for i := range t.pix {
			t.pix[i] = 0
		}
		t.lost = false
		t.gen++
	}
	return nil
}

func (s *Surface) Lock() (device.Locked, error) {
	if err := s.usable(); err != nil {
		return device.Locked{}, err
	}
	if s.locked {
		return device.Locked{}, fmt.Errorf("surface already locked")
	}
	s.locked = true
	return device.Locked{Pix: s.pix, Pitch: s.pitch}, nil
}

func (s *Surface) Unlock() { s.locked = false }

func (s *Surface) usable() error {
	if s.released {
		return fmt.Errorf("surface released")
	}
	if s.lost {
		return device.ErrSurfaceLost
	}
	return nil
}

func (s *Surface) Fill(r image.Rectangle, color uint32) error {
	if err := s.usable(); err != nil {
		return err
	}
	r = device.Area(s, r)
	bpp := s.format.BytesPerPixel()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := s.pix[y*s.pitch:]
		for x := r.Min.X; x < r.Max.X; x++ {
			device.WritePixel(row[x*bpp:], bpp, color)
		}
	}
	return nil
}

// Blit copies with nearest-neighbour scaling, converting between formats
// when they differ.
func (s *Surface) Blit(dst image.Rectangle, src device.Surface, srcRect image.Rectangle) error {
	hs, ok := src.(*Surface)
	if !ok {
		return fmt.Errorf("foreign surface %T", src)
	}
	if err := s.usable(); err != nil {
		return err
	}
	if err := hs.usable(); err != nil {
		return err
	}
	d := device.Area(s, dst)
	sr := device.Area(hs, srcRect)
	if d.Empty() || sr.Empty() {
		return nil
	}
	dbpp, sbpp := s.format.BytesPerPixel(), hs.format.BytesPerPixel()
	same := s.format == hs.format
	var pal [256]device.RGB
	if hs.format.Indexed && hs.palette != nil {
		pal = hs.palette.Entries()
	}
	for y := 0; y < d.Dy(); y++ {
		sy := sr.Min.Y + y*sr.Dy()/d.Dy()
		drow := s.pix[(d.Min.Y+y)*s.pitch:]
		srow := hs.pix[sy*hs.pitch:]
		for x := 0; x < d.Dx(); x++ {
			sx := sr.Min.X + x*sr.Dx()/d.Dx()
			c := device.ReadPixel(srow[sx*sbpp:], sbpp)
			if !same {
				c = convert(c, hs.format, s.format, &pal)
			}
			device.WritePixel(drow[(d.Min.X+x)*dbpp:], dbpp, c)
		}
	}
	return nil
}

func convert(c uint32, from, to device.PixelFormat, pal *[256]device.RGB) uint32 {
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
		// Grey level; indexed targets are only written by tests.
		return uint32((uint16(r) + uint16(g) + uint16(b)) / 3)
	}
	return to.Pack(r, g, b, a)
}

func (s *Surface) Flip() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.index != 0 || len(s.chain) < 2 {
		return fmt.Errorf("surface is not the front of a flip chain")
	}
	front := s.chain[0].pix
	for i := 0; i < len(s.chain)-1; i++ {
		s.chain[i].pix = s.chain[i+1].pix
	}
	s.chain[len(s.chain)-1].pix = front
	return nil
}

func (s *Surface) FlipDone() bool {
	if s.b.Faults.FlipBusy > 0 {
		s.b.Faults.FlipBusy--
		return false
	}
	return true
}

func (s *Surface) BackBuffer() (device.Surface, error) {
	if s.index+1 >= len(s.chain) {
		return nil, fmt.Errorf("no attached back buffer")
	}
	return s.chain[s.index+1], nil
}

func (s *Surface) AttachDepth(z device.Surface) error {
	hz, ok := z.(*Surface)
	if !ok {
		return fmt.Errorf("foreign surface %T", z)
	}
	if hz.desc.Caps&device.CapZBuffer == 0 {
		return fmt.Errorf("surface is not a z-buffer")
	}
	s.depth = hz
	return nil
}

func (s *Surface) SetPalette(p device.Palette) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.palette = p
	return nil
}

func (s *Surface) SetColorKey(key uint32) error {
	s.colorKey, s.keyed = key, true
	return nil
}

func (s *Surface) Release() {
	if s.released {
		return
	}
	if s.index == 0 {
		for _, c := range s.chain[min(1, len(s.chain)):] {
			c.released = true
			delete(s.b.surfaces, c)
		}
	}
	s.released = true
	delete(s.b.surfaces, s)
}
