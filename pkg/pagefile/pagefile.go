// Package pagefile reads and writes level texture page files: a short
// header, an optional 256-entry RGB palette and the raw pages.
package pagefile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	Magic   = "TPAG"
	Version = 1
	// PageSide is the edge length of every page.
	PageSide = 256
	// MaxPages is the largest page count a file may declare.
	MaxPages = 128
)

const flagPalette = 1

var ErrBadMagic = errors.New("not a texture page file")

type header struct {
	Magic   [4]byte
	Version uint16
	Count   uint16
	Depth   uint16
	Flags   uint16
}

// File is a decoded page file. 8-bit files carry a palette and one byte per
// texel; 16-bit files carry 1-5-5-5 texels, little endian.
type File struct {
	Depth   int
	Palette *[256][3]uint8
	Pages   [][]byte
}

// PageSize is the byte size of one page.
func (f *File) PageSize() int { return PageSide * PageSide * f.Depth / 8 }

// Data returns the pages back to back.
func (f *File) Data() []byte {
	out := make([]byte, 0, len(f.Pages)*f.PageSize())
	for _, p := range f.Pages {
		out = append(out, p...)
	}
	return out
}

func (f *File) validate() error {
	switch f.Depth {
	case 8:
		if f.Palette == nil {
			return fmt.Errorf("8-bit page file without palette")
		}
	case 16:
	default:
		return fmt.Errorf("unsupported page depth %d", f.Depth)
	}
	if len(f.Pages) > MaxPages {
		return fmt.Errorf("%d pages, limit is %d", len(f.Pages), MaxPages)
	}
	for i, p := range f.Pages {
		if len(p) != f.PageSize() {
			return fmt.Errorf("page %d holds %d bytes, want %d", i, len(p), f.PageSize())
		}
	}
	return nil
}

// Read decodes a page file.
func Read(r io.Reader) (*File, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read page file header: %w", err)
	}
	if string(h.Magic[:]) != Magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("page file version %d, want %d", h.Version, Version)
	}
	f := &File{Depth: int(h.Depth)}
	if h.Flags&flagPalette != 0 {
		f.Palette = new([256][3]uint8)
		if err := binary.Read(r, binary.LittleEndian, f.Palette); err != nil {
			return nil, fmt.Errorf("read page file palette: %w", err)
		}
	}
	if int(h.Count) > MaxPages {
		return nil, fmt.Errorf("%d pages, limit is %d", h.Count, MaxPages)
	}
	if f.Depth != 8 && f.Depth != 16 {
		return nil, fmt.Errorf("unsupported page depth %d", f.Depth)
	}
	for i := 0; i < int(h.Count); i++ {
		p := make([]byte, f.PageSize())
		if _, err := io.ReadFull(r, p); err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		f.Pages = append(f.Pages, p)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Write encodes f.
func Write(w io.Writer, f *File) error {
	if err := f.validate(); err != nil {
		return err
	}
	h := header{Version: Version, Count: uint16(len(f.Pages)), Depth: uint16(f.Depth)}
	copy(h.Magic[:], Magic)
	if f.Palette != nil {
		h.Flags |= flagPalette
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if f.Palette != nil {
		if err := binary.Write(w, binary.LittleEndian, f.Palette); err != nil {
			return err
		}
	}
	for _, p := range f.Pages {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a page file from disk.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open page file: %w", err)
	}
	defer fh.Close()
	return Read(bufio.NewReader(fh))
}

// Save writes a page file to disk.
func Save(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create page file: %w", err)
	}
	bw := bufio.NewWriter(fh)
	if err := Write(bw, f); err != nil {
		fh.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
