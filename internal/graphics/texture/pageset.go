package texture

import (
	"errors"
	"fmt"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/palette"
)

const (
	// PageSide is the edge length of a level texture page.
	PageSide = 256
	// LevelPages is the number of pages a level can reference.
	LevelPages = 128
)

// PageSet maps a level's page numbers to allocator slots and caches their
// draw handles for the frame.
type PageSet struct {
	alloc    *Allocator
	palettes *palette.Registry

	slots   [LevelPages]int
	handles [LevelPages]device.TextureHandle
	palette int
}

func NewPageSet(a *Allocator, p *palette.Registry) *PageSet {
	ps := &PageSet{alloc: a, palettes: p}
	ps.reset()
	return ps
}

func (ps *PageSet) reset() {
	for i := range ps.slots {
		ps.slots[i] = -1
		ps.handles[i] = 0
	}
	ps.palette = -1
}

// Load replaces the level pages. With pal set, buf holds count 8-bit pages
// of PageSide x PageSide; otherwise count 16-bit 1-5-5-5 pages.
func (ps *PageSet) Load(count int, buf []byte, pal *palette.Entries) error {
	ps.Free()
	if count > LevelPages {
		return fmt.Errorf("level has %d texture pages, limit is %d", count, LevelPages)
	}
	size := PageSide * PageSide
	if pal == nil {
		size *= 2
	}
	if len(buf) < count*size {
		return fmt.Errorf("texture data holds %d bytes, %d pages need %d", len(buf), count, count*size)
	}
	if pal != nil {
		idx, err := ps.palettes.Create(pal)
		if err != nil {
			return fmt.Errorf("level palette: %w", err)
		}
		ps.palette = idx
	}
	// A page that fails to load stays empty; the rest of the level still
	// loads.
	var errs []error
	for i := 0; i < count; i++ {
		chunk := buf[i*size : (i+1)*size]
		var (
			slot int
			err  error
		)
		if pal != nil {
			slot, err = ps.alloc.AddPage8(PageSide, PageSide, chunk, ps.palette)
		} else {
			slot, err = ps.alloc.AddPage16(PageSide, PageSide, chunk)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("level page %d: %w", i, err))
			continue
		}
		ps.slots[i] = slot
	}
	ps.RefreshHandles()
	gfxlog.Logger().Info("level texture pages loaded", "count", count, "paletted", pal != nil, "failed", len(errs))
	return errors.Join(errs...)
}

// RefreshHandles re-reads every page handle, restoring lost pages.
func (ps *PageSet) RefreshHandles() {
	for i, s := range ps.slots {
		if s >= 0 {
			ps.handles[i] = ps.alloc.Handle(s)
		} else {
			ps.handles[i] = 0
		}
	}
}

// Handle returns the cached handle of a level page, 0 when absent.
func (ps *PageSet) Handle(page int) device.TextureHandle {
	if page < 0 || page >= LevelPages {
		return 0
	}
	return ps.handles[page]
}

// Slot returns the allocator slot of a level page, or -1.
func (ps *PageSet) Slot(page int) int {
	if page < 0 || page >= LevelPages {
		return -1
	}
	return ps.slots[page]
}

// Palette returns the level palette slot, or -1 for true-colour levels.
func (ps *PageSet) Palette() int { return ps.palette }

// Free releases the level's pages and its palette reference.
func (ps *PageSet) Free() {
	for _, s := range ps.slots {
		if s >= 0 {
			ps.alloc.Free(s)
		}
	}
	ps.palettes.Free(ps.palette)
	ps.reset()
}
