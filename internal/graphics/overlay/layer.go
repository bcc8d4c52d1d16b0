package overlay

import (
	"image"

	"gfxcore/internal/graphics/renderer"
)

var margin = image.Pt(8, 8)

var _ renderer.Layer = (*ModeInfo)(nil)

func (m *ModeInfo) Init() error { return nil }
func (m *ModeInfo) Dispose()    { m.mask, m.left = nil, 0 }

// SetViewport anchors the text to the top-left corner of r.
func (m *ModeInfo) SetViewport(r image.Rectangle) { m.origin = r.Min.Add(margin) }

// Render stamps the text into the finished frame.
func (m *ModeInfo) Render(ctx renderer.FrameContext) error {
	return m.Stamp(ctx.Target, m.origin)
}
