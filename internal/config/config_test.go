package config

import (
	"os"
	"path/filepath"
	"testing"

	"gfxcore/internal/graphics/device"
)

func TestAlphaBlendModeClamp(t *testing.T) {
	defer SetAlphaBlendMode(GetAlphaBlendMode())
	cases := []struct{ in, want int }{
		{-3, 0}, {0, 0}, {1, 1}, {2, 2}, {9, MaxAlphaBlendMode},
	}
	for _, c := range cases {
		SetAlphaBlendMode(c.in)
		if got := GetAlphaBlendMode(); got != c.want {
			t.Errorf("SetAlphaBlendMode(%d): got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestReflectionBlurClamp(t *testing.T) {
	defer SetReflectionBlur(GetReflectionBlur())
	SetReflectionBlur(17)
	if got := GetReflectionBlur(); got != MaxReflectionBlur {
		t.Fatalf("got %d, want %d", got, MaxReflectionBlur)
	}
	SetReflectionBlur(-1)
	if got := GetReflectionBlur(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestFPSLimitClamp(t *testing.T) {
	defer SetFPSLimit(GetFPSLimit())
	cases := []struct{ in, want int }{
		{-1, 0}, {0, 0}, {144, 144}, {5000, MaxFPSLimit},
	}
	for _, c := range cases {
		SetFPSLimit(c.in)
		if got := GetFPSLimit(); got != c.want {
			t.Errorf("SetFPSLimit(%d): got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPictureSizeMinimum(t *testing.T) {
	w, h := GetPictureSize()
	defer SetPictureSize(w, h)
	SetPictureSize(10, 10)
	if w, h := GetPictureSize(); w != 320 || h != 200 {
		t.Fatalf("got %dx%d, want 320x200", w, h)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.json")
	s := Default()
	s.RenderMode = RenderSoftware
	s.FullScreen = true
	s.Mode = device.DisplayMode{Width: 320, Height: 200, BPP: 8, VGA: device.VGA256Color}
	s.Adapter = "Second Display"
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != s {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.json")
	if err := os.WriteFile(path, []byte(`{"fullScreen": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.FullScreen = true
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("missing file loaded")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"renderMode": 7}`), 0o644)
	if _, err := Load(bad); err == nil {
		t.Fatalf("unknown render mode accepted")
	}
}
