// Command texpage packs images into a level texture page file.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"gfxcore/pkg/pagefile"
)

var (
	depth  = flag.Int("depth", 16, "page depth, 8 (paletted) or 16 (1-5-5-5)")
	dither = flag.Bool("dither", false, "enable Floyd-Steinberg error diffusion for 8-bit pages")
	out    = flag.String("o", "level"+pagefile.Ext, "output page file")
)

const usageString = `Image to texture page converter. Every image becomes one %dx%d page.

Usage: texpage [flags] <image>...

`

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, pagefile.PageSide, pagefile.PageSide)
	flag.PrintDefaults()
}

func decode(path string) (image.Image, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 || flag.NArg() > pagefile.MaxPages {
		flag.Usage()
		os.Exit(1)
	}

	pages := make([]*image.NRGBA, 0, flag.NArg())
	for _, path := range flag.Args() {
		img, err := decode(path)
		if err != nil {
			log.Fatalln(err)
		}
		pages = append(pages, scalePage(img))
	}

	var f *pagefile.File
	switch *depth {
	case 8:
		f = pagefile.FromImages8(pages, *dither)
	case 16:
		f = pagefile.FromImages16(pages)
	default:
		log.Fatal("unsupported depth: ", *depth)
	}

	if err := pagefile.Save(*out, f); err != nil {
		log.Fatalln(err)
	}
	log.Printf("wrote %d pages to %s", len(f.Pages), *out)
}
