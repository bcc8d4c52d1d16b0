package texture

import (
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxerr"
)

// Negotiation is the outcome of texture format selection.
type Negotiation struct {
	Format device.PixelFormat
	// Compatible is set when 16-bit asset data can be copied without
	// conversion.
	Compatible bool
	// Disable16 is the effective setting; it is cleared when no paletted
	// format was offered.
	Disable16 bool
}

// Negotiate picks a texture format from the device's list. Formats under 8
// bpp are ignored. With disable16, or for depths under 16, only the 8-bit
// paletted format is taken, and disable16 stops the search at the first one.
// Otherwise every RGB format replaces the previous pick and the search stops
// at an exact 1-5-5-5 match.
func Negotiate(formats []device.PixelFormat, disable16 bool) (Negotiation, error) {
	n := scan(formats, disable16)
	if disable16 && n.Format.BPP < 8 {
		n = scan(formats, false)
	}
	if n.Format.BPP < 8 {
		return n, gfxerr.New(gfxerr.EnumTextureFormats)
	}
	return n, nil
}

func scan(formats []device.PixelFormat, disable16 bool) Negotiation {
	n := Negotiation{Disable16: disable16}
	for _, f := range formats {
		if f.BPP < 8 {
			continue
		}
		if disable16 || f.BPP < 16 {
			if f.Indexed && f.BPP == 8 {
				n.Format = f
				if disable16 {
					n.Compatible = false
					return n
				}
			}
		} else if !f.Indexed {
			n.Format = f
			if f.Is1555() {
				n.Compatible = true
				return n
			}
		}
		n.Compatible = false
	}
	return n
}
