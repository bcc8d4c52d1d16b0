// Package overlay stamps short status text into the frame.
package overlay

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"gfxcore/internal/graphics/device"
)

// DefaultFrames is how long a mode change stays on screen.
const DefaultFrames = 120

// ModeInfo shows the current display mode for a number of frames after
// every mode change.
type ModeInfo struct {
	face   font.Face
	frames int

	text   string
	mask   *image.Alpha
	left   int
	origin image.Point
}

func NewModeInfo(frames int) *ModeInfo {
	if frames <= 0 {
		frames = DefaultFrames
	}
	return &ModeInfo{face: basicfont.Face7x13, frames: frames, origin: margin}
}

// ModeChanged rasterises the mode string and restarts the countdown.
func (m *ModeInfo) ModeChanged(mode string) {
	m.text = mode
	m.left = m.frames
	m.mask = rasterize(m.face, mode)
}

func (m *ModeInfo) Text() string       { return m.text }
func (m *ModeInfo) Active() bool       { return m.left > 0 && m.mask != nil }
func (m *ModeInfo) Remaining() int     { return m.left }
func (m *ModeInfo) Mask() *image.Alpha { return m.mask }

func rasterize(face font.Face, s string) *image.Alpha {
	met := face.Metrics()
	w := font.MeasureString(face, s).Ceil()
	h := met.Height.Ceil()
	if w == 0 || h == 0 {
		return nil
	}
	img := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  img,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{Y: met.Ascent},
	}
	d.DrawString(s)
	return img
}

// Stamp writes the text at pos into dst in white and counts down one frame.
// Pixels are packed with the surface format; paletted surfaces get index
// 255.
func (m *ModeInfo) Stamp(dst device.Surface, pos image.Point) error {
	if !m.Active() {
		return nil
	}
	m.left--

	area := m.mask.Bounds().Add(pos).Intersect(dst.Bounds())
	if area.Empty() {
		return nil
	}
	f := dst.Format()
	white := uint32(0xFF)
	if !f.Indexed {
		white = f.Pack(0xFF, 0xFF, 0xFF, 0xFF)
	}
	bpp := f.BytesPerPixel()

	lk, err := dst.Lock()
	if err != nil {
		return fmt.Errorf("lock overlay target: %w", err)
	}
	defer dst.Unlock()
	for y := area.Min.Y; y < area.Max.Y; y++ {
		row := lk.Pix[y*lk.Pitch:]
		for x := area.Min.X; x < area.Max.X; x++ {
			if m.mask.AlphaAt(x-pos.X, y-pos.Y).A < 0x80 {
				continue
			}
			device.WritePixel(row[x*bpp:], bpp, white)
		}
	}
	return nil
}
