// Package device defines the graphics backend contract: surfaces, palettes,
// a 3D device and the display itself. Two variants implement it, an
// in-memory headless backend and an OpenGL backend.
package device

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
)

// Memory selects where a surface lives.
type Memory uint8

const (
	MemoryAny Memory = iota
	MemoryDevice
	MemorySystem
)

// Caps are surface capability flags.
type Caps uint32

const (
	CapPrimary Caps = 1 << iota
	CapFlip
	CapOffscreen
	CapTexture
	CapZBuffer
	Cap3D
	CapManaged
)

// SurfaceDesc requests a surface from a backend.
type SurfaceDesc struct {
	Width, Height int
	Caps          Caps
	Memory        Memory
	// Format is nil for the display format.
	Format *PixelFormat
	// BackBuffers is the flip chain length behind a primary surface.
	BackBuffers int
	ZDepth      int
}

// Locked is a CPU view of surface memory, valid until Unlock.
type Locked struct {
	Pix   []byte
	Pitch int
}

// ErrSurfaceLost is returned by any operation on a lost surface.
var ErrSurfaceLost = errors.New("surface lost")

// ErrStillDrawing is returned by non-blocking queries while the device is busy.
var ErrStillDrawing = errors.New("still drawing")

// Surface is a pixel buffer owned by a backend. An empty rectangle argument
// means the whole surface.
type Surface interface {
	Desc() SurfaceDesc
	Format() PixelFormat
	Bounds() image.Rectangle

	IsLost() bool
	// Restore reallocates a lost surface. Contents are undefined afterwards.
	Restore() error

	Lock() (Locked, error)
	Unlock()

	Fill(r image.Rectangle, color uint32) error
	Blit(dst image.Rectangle, src Surface, srcRect image.Rectangle) error

	// Flip rotates a flip chain; only valid on a primary surface.
	Flip() error
	FlipDone() bool
	// BackBuffer returns the next surface in the flip chain.
	BackBuffer() (Surface, error)
	AttachDepth(z Surface) error

	SetPalette(p Palette) error
	SetColorKey(key uint32) error

	Release()
}

// Palette is a device 256-entry palette.
type Palette interface {
	Entries() [256]RGB
	Release()
}

// TextureHandle identifies a texture to the device. Zero means no texture.
type TextureHandle uint32

// Vertex is a transformed, lit vertex in screen space.
type Vertex struct {
	X, Y, Z, RHW float32
	// Color and Specular are 0xAARRGGBB.
	Color    uint32
	Specular uint32
	U, V     float32
}

// WithAlpha replaces the alpha byte of an ARGB colour.
func WithAlpha(c uint32, a uint8) uint32 {
	return c&0x00FFFFFF | uint32(a)<<24
}

type Topology int

const (
	TriangleFan Topology = iota
	LineStrip
)

func (t Topology) String() string {
	switch t {
	case TriangleFan:
		return "TriangleFan"
	case LineStrip:
		return "LineStrip"
	}
	return fmt.Sprintf("Topology(%d)", int(t))
}

// RenderState identifies one device state value.
type RenderState int

const (
	StateFillMode RenderState = iota
	StateShadeMode
	StateCullMode
	StateSrcBlend
	StateDestBlend
	StateAlphaBlendEnable
	StateStippledAlpha
	StateColorKeyEnable
	StateAlphaTestEnable
	StateAlphaRef
	StateAlphaFunc
	StateZEnable
	StateZWriteEnable
	StateZFunc
	StatePerspective
	StateDither
	StateMagFilter
	StateMinFilter
	StateTextureAddress

	NumRenderStates
)

// Values for the state ids above.
const (
	FillSolid     uint32 = 3
	ShadeGouraud  uint32 = 2
	CullNone      uint32 = 1
	AddressClamp  uint32 = 3
	FilterPoint   uint32 = 1
	FilterLinear  uint32 = 2
	StateDisabled uint32 = 0
	StateEnabled  uint32 = 1
)

// Blend factors.
const (
	BlendZero uint32 = iota + 1
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
)

// Compare functions for depth and alpha tests.
const (
	CmpNever uint32 = iota + 1
	CmpLess
	CmpEqual
	CmpLessEqual
	CmpGreater
	CmpNotEqual
	CmpGreaterEqual
	CmpAlways
)

// Bool converts a flag to a state value.
func Bool(v bool) uint32 {
	if v {
		return StateEnabled
	}
	return StateDisabled
}

type ClearFlags uint8

const (
	ClearTarget ClearFlags = 1 << iota
	ClearZBuffer
)

// Device draws primitives into the surface it was created on.
type Device interface {
	BeginScene() error
	EndScene() error

	SetTexture(h TextureHandle) error
	SetRenderState(s RenderState, v uint32) error
	RenderState(s RenderState) uint32
	DrawPrimitive(t Topology, v []Vertex) error

	Clear(r image.Rectangle, flags ClearFlags, color uint32) error
	SetViewport(r image.Rectangle) error

	// TextureFormats lists the formats usable for texture surfaces, in
	// driver preference order.
	TextureFormats() []PixelFormat
	// TextureHandle binds a texture surface for drawing.
	TextureHandle(s Surface) (TextureHandle, error)

	Release()
}

// Backend is the display, surface and device factory.
type Backend interface {
	Name() string

	Adapters() []Adapter
	// SelectAdapter makes the named adapter current; an empty name selects
	// the primary adapter.
	SelectAdapter(name string) (Adapter, error)

	SetFullscreen(m DisplayMode) error
	// SetWindowed sizes the window and reports the effective mode.
	SetWindowed(width, height int) (DisplayMode, error)
	DisplayFormat() (PixelFormat, error)

	CreateSurface(d SurfaceDesc) (Surface, error)
	CreatePalette(entries [256]RGB) (Palette, error)
	CreateDevice(target Surface) (Device, error)

	// SystemPalette returns the palette reserved by the host system.
	SystemPalette() [256]RGB

	PumpMessages()
	WindowOrigin() image.Point
	ShouldClose() bool
	Close() error
}

// Area resolves an empty rectangle to the full surface and clips the rest.
func Area(s Surface, r image.Rectangle) image.Rectangle {
	b := s.Bounds()
	if r.Empty() {
		return b
	}
	return r.Intersect(b)
}

// Factory creates a backend.
type Factory func() (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a backend variant selectable by name.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[name]; dup {
		panic("device: Register called twice for backend " + name)
	}
	factories[name] = f
}

// Open creates the named backend.
func Open(name string) (Backend, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (have %v)", name, Names())
	}
	return f()
}

// Names lists registered backends.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
