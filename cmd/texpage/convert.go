package main

import (
	"image"

	"gfxcore/pkg/pagefile"

	xdraw "golang.org/x/image/draw"
)

// scalePage resamples src onto a single page.
func scalePage(src image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, pagefile.PageSide, pagefile.PageSide))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
