package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gfxcore/internal/graphics/device"
)

// RenderMode selects the rasterization path.
type RenderMode int

const (
	RenderSoftware RenderMode = iota
	RenderHardware
)

func (m RenderMode) String() string {
	if m == RenderHardware {
		return "hardware"
	}
	return "software"
}

// DisplaySettings is the full description of a display configuration. Two
// settings are the same configuration exactly when they compare equal.
type DisplaySettings struct {
	RenderMode RenderMode `json:"renderMode"`
	// Adapter is the adapter name, empty for the primary one.
	Adapter string `json:"adapter"`
	// Mode is the fullscreen display mode.
	Mode         device.DisplayMode `json:"mode"`
	WindowWidth  int                `json:"windowWidth"`
	WindowHeight int                `json:"windowHeight"`

	FullScreen      bool `json:"fullScreen"`
	TripleBuffering bool `json:"tripleBuffering"`
	ZBuffer         bool `json:"zBuffer"`

	BilinearFiltering  bool `json:"bilinearFiltering"`
	PerspectiveCorrect bool `json:"perspectiveCorrect"`
	Dither             bool `json:"dither"`

	Disable16BitTextures bool `json:"disable16BitTextures"`
	// FlipBroken drivers report a flip complete before it is; presentation
	// then waits on the flip explicitly.
	FlipBroken bool `json:"flipBroken"`
}

// Hardware reports whether the hardware render path is selected.
func (s DisplaySettings) Hardware() bool { return s.RenderMode == RenderHardware }

// Default returns a windowed hardware configuration.
func Default() DisplaySettings {
	return DisplaySettings{
		RenderMode:         RenderHardware,
		Mode:               device.DisplayMode{Width: 640, Height: 480, BPP: 16},
		WindowWidth:        640,
		WindowHeight:       480,
		ZBuffer:            true,
		BilinearFiltering:  true,
		PerspectiveCorrect: true,
	}
}

// Load reads settings from a JSON file. Fields missing from the file keep
// their Default values.
func Load(path string) (DisplaySettings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("could not read settings file: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("could not unmarshal settings json: %w", err)
	}
	if s.RenderMode != RenderSoftware && s.RenderMode != RenderHardware {
		return Default(), fmt.Errorf("unknown render mode %d", s.RenderMode)
	}
	return s, nil
}

// Save writes settings as indented JSON.
func Save(path string, s DisplaySettings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("could not write settings file: %w", err)
	}
	return nil
}
