// Package texture manages texture pages: fixed-size tiles kept in a system
// memory copy that survives device loss and a device copy the renderer draws
// from.
package texture

import (
	"errors"
	"fmt"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/palette"
)

// DefaultCapacity is the number of page slots when none is given.
const DefaultCapacity = 256

// SurfaceFactory creates the page surfaces.
type SurfaceFactory interface {
	CreateSurface(d device.SurfaceDesc) (device.Surface, error)
}

type page struct {
	occupied      bool
	width, height int
	palette       int
	sys           device.Surface
	vid           device.Surface
	handle        device.TextureHandle
}

// Allocator is a fixed table of texture page slots.
type Allocator struct {
	surfaces SurfaceFactory
	palettes *palette.Registry
	dev      device.Device
	format   device.PixelFormat
	compat   bool

	// OnRelease runs whenever a device copy is released, so cached texture
	// handles can be dropped.
	OnRelease func()

	pages []page
}

func NewAllocator(capacity int, surfaces SurfaceFactory, palettes *palette.Registry) *Allocator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Allocator{
		surfaces: surfaces,
		palettes: palettes,
		pages:    make([]page, capacity),
	}
}

// Bind attaches the allocator to a device and its negotiated format. Device
// copies are not rebuilt until Reload.
func (a *Allocator) Bind(dev device.Device, n Negotiation) {
	a.dev = dev
	a.format = n.Format
	a.compat = n.Compatible
}

// Unbind releases every device copy and detaches the device. System copies
// are kept.
func (a *Allocator) Unbind() {
	for i := range a.pages {
		if a.pages[i].occupied {
			a.releaseDeviceCopy(i)
		}
	}
	a.dev = nil
}

func (a *Allocator) Bound() bool                { return a.dev != nil }
func (a *Allocator) Format() device.PixelFormat { return a.format }
func (a *Allocator) Compatible() bool           { return a.compat }
func (a *Allocator) HasAlpha() bool             { return a.format.HasAlpha() }
func (a *Allocator) Capacity() int              { return len(a.pages) }

// Available counts free slots.
func (a *Allocator) Available() int {
	n := 0
	for i := range a.pages {
		if !a.pages[i].occupied {
			n++
		}
	}
	return n
}

// Allocate takes the first free slot for a width x height page. pal is a
// palette slot, or -1 for a true-colour page. The palette gains a reference
// for the lifetime of the page.
func (a *Allocator) Allocate(width, height, pal int) (int, error) {
	if a.format.BPP == 0 {
		return -1, fmt.Errorf("allocate page: no texture format negotiated")
	}
	idx := -1
	for i := range a.pages {
		if !a.pages[i].occupied {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, gfxerr.ErrNoFreeSlot
	}

	f := a.format
	sys, err := a.surfaces.CreateSurface(device.SurfaceDesc{
		Width: width, Height: height,
		Caps:   device.CapTexture,
		Memory: device.MemorySystem,
		Format: &f,
	})
	if err != nil {
		return -1, fmt.Errorf("allocate page: %w", err)
	}
	if pal >= 0 {
		if err := a.palettes.Retain(pal); err != nil {
			sys.Release()
			return -1, fmt.Errorf("allocate page: %w", err)
		}
		if err := sys.SetPalette(a.palettes.Handle(pal)); err != nil {
			a.palettes.Free(pal)
			sys.Release()
			return -1, gfxerr.Wrap(gfxerr.SetPalette, err)
		}
	}
	a.pages[idx] = page{occupied: true, width: width, height: height, palette: pal, sys: sys}

	if err := a.InitDeviceCopy(idx); err != nil {
		a.Free(idx)
		return -1, err
	}
	gfxlog.Logger().Debug("texture page allocated", "slot", idx, "w", width, "h", height, "palette", pal)
	return idx, nil
}

// InitDeviceCopy creates the device copy of a page and fetches its handle.
// Paletted pages are colour-keyed on index 0.
func (a *Allocator) InitDeviceCopy(i int) error {
	p, err := a.slot(i)
	if err != nil {
		return err
	}
	if a.dev == nil {
		return nil
	}
	f := a.format
	vid, err := a.surfaces.CreateSurface(device.SurfaceDesc{
		Width: p.width, Height: p.height,
		Caps:   device.CapTexture,
		Memory: device.MemoryDevice,
		Format: &f,
	})
	if err != nil {
		return fmt.Errorf("texture page %d: %w", i, err)
	}
	if p.palette >= 0 {
		if err := vid.SetPalette(a.palettes.Handle(p.palette)); err != nil {
			vid.Release()
			return gfxerr.Wrap(gfxerr.SetPalette, err)
		}
		if err := vid.SetColorKey(0); err != nil {
			vid.Release()
			return fmt.Errorf("texture page %d colour key: %w", i, err)
		}
	}
	h, err := a.dev.TextureHandle(vid)
	if err != nil {
		vid.Release()
		return fmt.Errorf("texture page %d handle: %w", i, err)
	}
	p.vid, p.handle = vid, h
	return nil
}

func (a *Allocator) releaseDeviceCopy(i int) {
	p := &a.pages[i]
	if a.OnRelease != nil {
		a.OnRelease()
	}
	p.handle = 0
	if p.vid != nil {
		p.vid.Release()
		p.vid = nil
	}
}

// Load resynchronises the device copy from the system copy. With reset an
// existing device copy is restored in place; otherwise, or when the restore
// fails, it is recreated.
func (a *Allocator) Load(i int, reset bool) error {
	p, err := a.slot(i)
	if err != nil {
		return err
	}
	if a.dev == nil {
		return fmt.Errorf("texture page %d: allocator not bound", i)
	}
	restored := false
	if reset && p.vid != nil {
		restored = !p.vid.IsLost() || p.vid.Restore() == nil
		if restored {
			if p.handle, err = a.dev.TextureHandle(p.vid); err != nil {
				restored = false
			}
		}
	}
	if !restored {
		a.releaseDeviceCopy(i)
		if err := a.InitDeviceCopy(i); err != nil {
			return err
		}
	}
	if err := p.vid.Blit(p.vid.Bounds(), p.sys, p.sys.Bounds()); err != nil {
		return fmt.Errorf("texture page %d upload: %w", i, err)
	}
	return nil
}

// Reload resynchronises every occupied page and reports all failures.
func (a *Allocator) Reload(reset bool) error {
	var errs []error
	for i := range a.pages {
		if a.pages[i].occupied {
			if err := a.Load(i, reset); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Handle returns the draw handle of a page, restoring a lost device copy
// first. Unknown slots yield 0.
func (a *Allocator) Handle(i int) device.TextureHandle {
	p, err := a.slot(i)
	if err != nil {
		return 0
	}
	if p.vid != nil && p.vid.IsLost() {
		if err := a.Load(i, true); err != nil {
			gfxlog.Logger().Warn("texture page restore failed", "slot", i, "err", err)
		}
	}
	return p.handle
}

// Free releases both copies of a page and its palette reference. Free slots
// are ignored.
func (a *Allocator) Free(i int) {
	p, err := a.slot(i)
	if err != nil {
		return
	}
	a.releaseDeviceCopy(i)
	if p.sys != nil {
		p.sys.Release()
	}
	if p.palette >= 0 {
		a.palettes.Free(p.palette)
	}
	*p = page{}
}

func (a *Allocator) FreeAll() {
	for i := range a.pages {
		if a.pages[i].occupied {
			a.Free(i)
		}
	}
}

// AddPage8 stores an indexed page using palette slot pal. buf is tightly
// packed, width bytes per row. The texture format must be paletted.
func (a *Allocator) AddPage8(width, height int, buf []byte, pal int) (int, error) {
	if pal < 0 {
		return -1, fmt.Errorf("add 8-bit page: no palette")
	}
	if !a.format.Indexed {
		return -1, gfxerr.Wrap(gfxerr.WrongBitDepth, fmt.Errorf("8-bit page into %d-bit texture format", a.format.BPP))
	}
	if len(buf) < width*height {
		return -1, fmt.Errorf("add 8-bit page: buffer holds %d bytes, need %d", len(buf), width*height)
	}
	idx, err := a.Allocate(width, height, pal)
	if err != nil {
		return -1, err
	}
	err = a.write(idx, func(l device.Locked) {
		for y := 0; y < height; y++ {
			copy(l.Pix[y*l.Pitch:y*l.Pitch+width], buf[y*width:])
		}
	})
	return a.finishAdd(idx, err)
}

// AddPage16 stores a true-colour page given as little-endian 1-5-5-5
// pixels. When the texture format matches, rows are copied as they are;
// otherwise every pixel is unpacked and repacked into the texture format.
// A paletted texture format rejects the page.
func (a *Allocator) AddPage16(width, height int, buf []byte) (int, error) {
	if a.format.Indexed || a.format.BPP < 16 {
		return -1, gfxerr.Wrap(gfxerr.WrongBitDepth, fmt.Errorf("16-bit page into %d-bit texture format", a.format.BPP))
	}
	if len(buf) < width*height*2 {
		return -1, fmt.Errorf("add 16-bit page: buffer holds %d bytes, need %d", len(buf), width*height*2)
	}
	idx, err := a.Allocate(width, height, -1)
	if err != nil {
		return -1, err
	}
	if a.compat {
		err = a.write(idx, func(l device.Locked) {
			for y := 0; y < height; y++ {
				copy(l.Pix[y*l.Pitch:y*l.Pitch+width*2], buf[y*width*2:])
			}
		})
	} else {
		f := a.format
		bpp := f.BytesPerPixel()
		err = a.write(idx, func(l device.Locked) {
			for y := 0; y < height; y++ {
				src := buf[y*width*2:]
				dst := l.Pix[y*l.Pitch:]
				for x := 0; x < width; x++ {
					device.WritePixel(dst[x*bpp:], bpp, convert1555(f, uint16(src[2*x])|uint16(src[2*x+1])<<8))
				}
			}
		})
	}
	return a.finishAdd(idx, err)
}

// convert1555 repacks one 1-5-5-5 pixel. Channels are taken as the top five
// bits of a byte, the alpha bit as fully opaque or clear.
func convert1555(f device.PixelFormat, p uint16) uint32 {
	r := uint8(p>>7) & 0xF8
	g := uint8(p>>2) & 0xF8
	b := uint8(p<<3) & 0xF8
	var alpha uint8
	if p>>15&1 != 0 {
		alpha = 0xFF
	}
	return f.Pack(r, g, b, alpha)
}

func (a *Allocator) write(i int, fill func(device.Locked)) error {
	sys := a.pages[i].sys
	l, err := sys.Lock()
	if err != nil {
		return gfxerr.Wrap(gfxerr.LockSurface, err)
	}
	fill(l)
	sys.Unlock()
	return nil
}

func (a *Allocator) finishAdd(idx int, err error) (int, error) {
	if err == nil {
		err = a.Load(idx, false)
	}
	if err != nil {
		a.Free(idx)
		return -1, err
	}
	return idx, nil
}

// SystemCopy exposes a page's system-memory surface.
func (a *Allocator) SystemCopy(i int) device.Surface {
	if p, err := a.slot(i); err == nil {
		return p.sys
	}
	return nil
}

// DeviceCopy exposes a page's device-memory surface, or nil when unbound.
func (a *Allocator) DeviceCopy(i int) device.Surface {
	if p, err := a.slot(i); err == nil {
		return p.vid
	}
	return nil
}

func (a *Allocator) slot(i int) (*page, error) {
	if i < 0 || i >= len(a.pages) || !a.pages[i].occupied {
		return nil, fmt.Errorf("texture page %d not allocated", i)
	}
	return &a.pages[i], nil
}
