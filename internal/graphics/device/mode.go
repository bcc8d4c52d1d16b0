package device

import (
	"fmt"
	"sort"
)

// VGAKind tells whether a display mode is palette-indexed.
type VGAKind int

const (
	VGANone VGAKind = iota
	VGA256Color
	VGAStandard
)

// DisplayMode is one resolution offered by an adapter.
type DisplayMode struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	BPP    int     `json:"bpp"`
	VGA    VGAKind `json:"vga"`
}

func (m DisplayMode) String() string {
	return fmt.Sprintf("%dx%dx%d", m.Width, m.Height, m.BPP)
}

func (m DisplayMode) IsZero() bool { return m.Width == 0 || m.Height == 0 }

// Compare orders modes by pixel area, then depth, then VGA kind.
func (m DisplayMode) Compare(o DisplayMode) int {
	a1, a2 := m.Width*m.Height, o.Width*o.Height
	switch {
	case a1 < a2:
		return -1
	case a1 > a2:
		return 1
	case m.BPP < o.BPP:
		return -1
	case m.BPP > o.BPP:
		return 1
	case m.VGA < o.VGA:
		return -1
	case m.VGA > o.VGA:
		return 1
	}
	return 0
}

// SortModes sorts ascending by Compare.
func SortModes(modes []DisplayMode) {
	sort.SliceStable(modes, func(i, j int) bool { return modes[i].Compare(modes[j]) < 0 })
}

// ClosestMode returns the first mode of a sorted list that is not smaller than
// target, or the largest mode when every mode is smaller.
func ClosestMode(modes []DisplayMode, target DisplayMode) (DisplayMode, bool) {
	if len(modes) == 0 {
		return DisplayMode{}, false
	}
	for _, m := range modes {
		if m.Compare(target) >= 0 {
			return m, true
		}
	}
	return modes[len(modes)-1], true
}

// Adapter is one display device as reported by a backend.
type Adapter struct {
	Name    string
	Primary bool

	HardwareModes []DisplayMode
	SoftwareModes []DisplayMode

	// ZBufferlessHSR adapters sort hidden surfaces themselves and get no z-buffer.
	ZBufferlessHSR bool
	// ShadeRestricted adapters only offer stippled alpha.
	ShadeRestricted bool
	MaxTextureSize  int
	ZBufferDepths   []int
}

// HasMode reports whether m is offered for the given render path.
func (a Adapter) HasMode(m DisplayMode, hardware bool) bool {
	list := a.SoftwareModes
	if hardware {
		list = a.HardwareModes
	}
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}

// ZBufferDepth picks the shallowest supported depth, 16 preferred.
func (a Adapter) ZBufferDepth() int {
	for _, want := range []int{16, 24, 32} {
		for _, d := range a.ZBufferDepths {
			if d == want {
				return d
			}
		}
	}
	return 8
}
