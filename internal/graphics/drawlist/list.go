// Package drawlist collects a frame's polygons and submits them to the
// device in the order they were added.
package drawlist

import (
	"fmt"
	"image"

	"gfxcore/internal/graphics/device"
)

// Kind tags an entry with its drawing method.
type Kind uint8

const (
	// Textured is an opaque textured fan.
	Textured Kind = iota
	// TexturedKeyed is a textured fan with transparent texels.
	TexturedKeyed
	TexturedHalf
	TexturedAdd
	TexturedSub
	TexturedQuarter

	// Flat is a gouraud shaded fan without texture.
	Flat
	FlatHalf
	FlatAdd
	FlatSub
	FlatQuarter

	// Translucent is a flat fan drawn with the alpha enabler forced on.
	Translucent
	Line

	HealthBar
	AirBar

	numKinds
)

var kindNames = [numKinds]string{
	"textured", "textured-keyed", "textured-half", "textured-add", "textured-sub", "textured-quarter",
	"flat", "flat-half", "flat-add", "flat-sub", "flat-quarter",
	"translucent", "line", "health-bar", "air-bar",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsTextured reports whether entries of this kind reference a texture page.
func (k Kind) IsTextured() bool { return k <= TexturedQuarter }

// IsBar reports whether the kind is drawn by the bar drawer.
func (k Kind) IsBar() bool { return k == HealthBar || k == AirBar }

// EnvironmentPage is the page number that selects the captured environment
// texture instead of a level page.
const EnvironmentPage = 0xFFFF

// Bar is the payload of a bar entry.
type Bar struct {
	Rect image.Rectangle
	// Value is the filled share in percent.
	Value int
	// Pixel is the scale of one frame pixel in screen pixels.
	Pixel int
}

// Entry is one recorded primitive.
type Entry struct {
	Kind     Kind
	Page     int
	Vertices []device.Vertex
	Bar      Bar
}

// DefaultBudget is the number of vertices a list holds unless told otherwise.
const DefaultBudget = 0x2000

// List is a per-frame sequence of entries. Vertices are copied into storage
// reserved up front, so an entry never aliases caller memory.
type List struct {
	entries []Entry
	verts   []device.Vertex
	budget  int
}

// NewList returns a list that holds at most budget vertices. A budget of 0
// selects DefaultBudget.
func NewList(budget int) *List {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &List{
		entries: make([]Entry, 0, budget/4),
		verts:   make([]device.Vertex, 0, budget),
		budget:  budget,
	}
}

func (l *List) Len() int         { return len(l.entries) }
func (l *List) Entries() []Entry { return l.entries }
func (l *List) Vertices() int    { return len(l.verts) }
func (l *List) Budget() int      { return l.budget }
func (l *List) Remaining() int   { return l.budget - len(l.verts) }

// Full reports whether the vertex budget is spent.
func (l *List) Full() bool { return len(l.verts) >= l.budget }

// Reset empties the list, keeping its storage.
func (l *List) Reset() {
	l.entries = l.entries[:0]
	l.verts = l.verts[:0]
}

func (l *List) add(k Kind, page int, v []device.Vertex) bool {
	least := 3
	if k == Line {
		least = 2
	}
	if len(v) < least || len(v) > l.Remaining() {
		return false
	}
	start := len(l.verts)
	l.verts = append(l.verts, v...)
	l.entries = append(l.entries, Entry{Kind: k, Page: page, Vertices: l.verts[start:len(l.verts):len(l.verts)]})
	return true
}

// AddTextured records a textured fan. It reports false when k is not a
// textured kind, the fan is degenerate or the budget is spent.
func (l *List) AddTextured(k Kind, page int, v []device.Vertex) bool {
	if !k.IsTextured() {
		return false
	}
	return l.add(k, page, v)
}

// AddFlat records an untextured fan, translucent fan or line strip.
func (l *List) AddFlat(k Kind, v []device.Vertex) bool {
	if k.IsTextured() || k.IsBar() || k >= numKinds {
		return false
	}
	return l.add(k, 0, v)
}

// AddBar records a health or air bar.
func (l *List) AddBar(k Kind, b Bar) bool {
	if !k.IsBar() {
		return false
	}
	l.entries = append(l.entries, Entry{Kind: k, Bar: b})
	return true
}
