package app

import (
	"fmt"

	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/palette"
	"gfxcore/internal/graphics/texture"
	"gfxcore/pkg/pagefile"
)

// demoPageCount is the number of generated pages used without a level file.
const demoPageCount = 4

var demoColors = [demoPageCount][2]device.RGB{
	{{R: 0xC0, G: 0x40, B: 0x20}, {R: 0x60, G: 0x20, B: 0x10}},
	{{R: 0x20, G: 0xA0, B: 0x40}, {R: 0x10, G: 0x40, B: 0x20}},
	{{R: 0x30, G: 0x60, B: 0xE0}, {R: 0x10, G: 0x20, B: 0x60}},
	{{R: 0xE0, G: 0xD0, B: 0x40}, {R: 0x50, G: 0x40, B: 0x10}},
}

// demoPages builds 16-bit checkerboard pages. Every page but the first has
// see-through holes on the dark squares' centre texels.
func demoPages() *pagefile.File {
	f := &pagefile.File{Depth: 16}
	for i, c := range demoColors {
		buf := make([]byte, f.PageSize())
		for y := 0; y < pagefile.PageSide; y++ {
			for x := 0; x < pagefile.PageSide; x++ {
				light := (x/32+y/32)%2 == 0
				col, a := c[1], uint8(0xFF)
				if light {
					col = c[0]
				} else if i > 0 && x%32 >= 12 && x%32 < 20 && y%32 >= 12 && y%32 < 20 {
					a = 0
				}
				px := device.Format1555.Pack(col.R, col.G, col.B, a)
				device.WritePixel(buf[(y*pagefile.PageSide+x)*2:], 2, px)
			}
		}
		f.Pages = append(f.Pages, buf)
	}
	return f
}

// levelFile returns the page file of the current level.
func (a *App) levelFile() (*pagefile.File, error) {
	if a.level == "" {
		return demoPages(), nil
	}
	return a.loader.Load(a.level)
}

// loadLevel uploads the level pages into the allocator.
func (a *App) loadLevel() error {
	f, err := a.levelFile()
	if err != nil {
		return fmt.Errorf("load level %q: %w", a.level, err)
	}
	// Pages follow the negotiated texture category.
	if a.textures.Format().Indexed {
		f = f.To8(false)
	} else {
		f = f.To16()
	}
	var pal *palette.Entries
	if f.Palette != nil {
		pal = new(palette.Entries)
		for i, c := range f.Palette {
			pal[i] = device.RGB{R: c[0], G: c[1], B: c[2]}
		}
	}
	if err := a.pages.Load(len(f.Pages), f.Data(), pal); err != nil {
		return err
	}
	a.pageCount = min(len(f.Pages), texture.LevelPages)
	a.loaded = true
	gfxlog.Logger().Info("level pages loaded", "level", a.level, "pages", a.pageCount, "depth", f.Depth)
	return nil
}

// ReloadLevelGraphics is called by the display controller when the pixel
// category changed under the loaded level.
func (a *App) ReloadLevelGraphics(palettes, textures bool) error {
	if !textures && !palettes {
		return nil
	}
	if !a.ctl.Settings().Hardware() {
		a.loaded = false
		return nil
	}
	return a.loadLevel()
}

// ensureLevel loads pages the first time a hardware stack is live.
func (a *App) ensureLevel() error {
	if a.loaded || !a.ctl.Settings().Hardware() || a.ctl.Device() == nil {
		return nil
	}
	return a.loadLevel()
}
