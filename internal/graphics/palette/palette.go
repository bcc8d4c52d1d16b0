// Package palette owns the 256-colour palettes used by paletted texture pages
// and provides the colour matching used to move pixels between palettes.
package palette

import (
	"fmt"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
)

const (
	// Size is the number of entries in a palette.
	Size = 256
	// MaxSlots is the registry capacity.
	MaxSlots = 256
	// Reserved is the count of host-owned entries at each end of a palette.
	Reserved = 10
)

// Entries is one full palette.
type Entries = [Size]device.RGB

// Creator makes device palettes.
type Creator interface {
	CreatePalette(entries [256]device.RGB) (device.Palette, error)
}

type slot struct {
	occupied bool
	entries  Entries
	handle   device.Palette
	refs     int
}

// Registry is a fixed table of palette slots. Device palettes are made by
// the backend and outlive every device rebuild.
type Registry struct {
	creator Creator
	slots   [MaxSlots]slot
}

func NewRegistry(c Creator) *Registry {
	return &Registry{creator: c}
}

// Create installs a palette in the first free slot with one reference.
func (r *Registry) Create(entries *Entries) (int, error) {
	idx := -1
	for i := range r.slots {
		if !r.slots[i].occupied {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, gfxerr.ErrNoFreeSlot
	}
	s := &r.slots[idx]
	if r.creator != nil {
		h, err := r.creator.CreatePalette(*entries)
		if err != nil {
			return -1, gfxerr.Wrap(gfxerr.CreatePalette, err)
		}
		s.handle = h
	}
	s.occupied = true
	s.entries = *entries
	s.refs = 1
	gfxlog.Logger().Debug("palette created", "slot", idx)
	return idx, nil
}

// Retain adds a reference to an occupied slot.
func (r *Registry) Retain(i int) error {
	if !r.valid(i) {
		return fmt.Errorf("palette slot %d not allocated", i)
	}
	r.slots[i].refs++
	return nil
}

// Free drops one reference. The slot is released when none remain. Negative
// indexes are ignored.
func (r *Registry) Free(i int) {
	if !r.valid(i) {
		return
	}
	s := &r.slots[i]
	s.refs--
	if s.refs > 0 {
		return
	}
	if s.handle != nil {
		s.handle.Release()
	}
	*s = slot{}
	gfxlog.Logger().Debug("palette freed", "slot", i)
}

// FreeAll releases every slot regardless of references.
func (r *Registry) FreeAll() {
	for i := range r.slots {
		if r.slots[i].occupied {
			r.slots[i].refs = 1
			r.Free(i)
		}
	}
}

func (r *Registry) Entries(i int) (*Entries, bool) {
	if !r.valid(i) {
		return nil, false
	}
	return &r.slots[i].entries, true
}

// Handle returns the device palette of a slot, or nil.
func (r *Registry) Handle(i int) device.Palette {
	if !r.valid(i) {
		return nil
	}
	return r.slots[i].handle
}

func (r *Registry) Refs(i int) int {
	if !r.valid(i) {
		return 0
	}
	return r.slots[i].refs
}

// Available counts free slots.
func (r *Registry) Available() int {
	n := 0
	for i := range r.slots {
		if !r.slots[i].occupied {
			n++
		}
	}
	return n
}

func (r *Registry) valid(i int) bool {
	return i >= 0 && i < MaxSlots && r.slots[i].occupied
}
