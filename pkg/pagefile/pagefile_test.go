package pagefile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testFile(depth, count int) *File {
	f := &File{Depth: depth}
	if depth == 8 {
		f.Palette = new([256][3]uint8)
		for i := range f.Palette {
			f.Palette[i] = [3]uint8{uint8(i), uint8(255 - i), 7}
		}
	}
	for i := 0; i < count; i++ {
		p := make([]byte, f.PageSize())
		for j := range p {
			p[j] = byte(i + j)
		}
		f.Pages = append(f.Pages, p)
	}
	return f
}

func TestRoundTrip(t *testing.T) {
	for _, depth := range []int{8, 16} {
		want := testFile(depth, 3)
		var buf bytes.Buffer
		if err := Write(&buf, want); err != nil {
			t.Fatalf("depth %d: Write: %v", depth, err)
		}
		got, err := Read(&buf)
		if err != nil {
			t.Fatalf("depth %d: Read: %v", depth, err)
		}
		if got.Depth != depth || len(got.Pages) != 3 {
			t.Fatalf("depth %d: got depth %d, %d pages", depth, got.Depth, len(got.Pages))
		}
		if !bytes.Equal(got.Data(), want.Data()) {
			t.Fatalf("depth %d: page data differs", depth)
		}
		if (got.Palette == nil) != (depth == 16) {
			t.Fatalf("depth %d: palette present=%v", depth, got.Palette != nil)
		}
		if depth == 8 && *got.Palette != *want.Palette {
			t.Fatalf("palette differs")
		}
	}
}

func TestReadErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testFile(16, 2)); err != nil {
		t.Fatal(err)
	}
	good := buf.Bytes()

	bad := append([]byte("NOPE"), good[4:]...)
	if _, err := Read(bytes.NewReader(bad)); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("bad magic: got %v", err)
	}
	if _, err := Read(bytes.NewReader(good[:len(good)-10])); err == nil {
		t.Fatal("truncated file accepted")
	}
}

func TestWriteValidates(t *testing.T) {
	tests := []struct {
		name string
		f    *File
	}{
		{"8-bit without palette", &File{Depth: 8}},
		{"depth 24", &File{Depth: 24}},
		{"short page", &File{Depth: 16, Pages: [][]byte{make([]byte, 10)}}},
	}
	for _, tt := range tests {
		if err := Write(&bytes.Buffer{}, tt.f); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestLoaderCaches(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)
	if err := Save(l.Path("level1"), testFile(16, 1)); err != nil {
		t.Fatal(err)
	}
	a, err := l.Load("level1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "level1"+Ext)); err != nil {
		t.Fatal(err)
	}
	b, err := l.Load("level1")
	if err != nil || a != b {
		t.Fatalf("cached load: %v, same=%v", err, a == b)
	}
	l.Forget("level1")
	if _, err := l.Load("level1"); err == nil {
		t.Fatal("load after forget should read the removed file")
	}
}
