package config

import "sync"

// RenderSettings holds process-wide render tunables
type RenderSettings struct {
	mu             sync.RWMutex
	alphaBlendMode int
	reflectionMode int
	reflectionBlur int
	pictureWidth   int
	pictureHeight  int
	fpsLimit       int
}

const (
	// MaxAlphaBlendMode is the two-pass blend emulation
	MaxAlphaBlendMode = 2
	// MaxReflectionBlur keeps the environment capture at least 1/16 of the buffer
	MaxReflectionBlur = 4
	MaxFPSLimit       = 1000
)

var globalRenderSettings = &RenderSettings{
	alphaBlendMode: 1, // single-pass blending
	reflectionMode: 0,
	reflectionBlur: 2,
	pictureWidth:   640,
	pictureHeight:  480,
	fpsLimit:       60,
}

// GetAlphaBlendMode returns 0 (off), 1 (basic) or 2 (advanced)
func GetAlphaBlendMode() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.alphaBlendMode
}

// SetAlphaBlendMode sets the translucency quality
func SetAlphaBlendMode(mode int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()

	if mode < 0 {
		mode = 0
	}
	if mode > MaxAlphaBlendMode {
		mode = MaxAlphaBlendMode
	}

	globalRenderSettings.alphaBlendMode = mode
}

// GetReflectionMode returns the reflection mode, 0 disables environment mapping
func GetReflectionMode() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.reflectionMode
}

// SetReflectionMode sets the reflection mode
func SetReflectionMode(mode int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if mode < 0 {
		mode = 0
	}
	globalRenderSettings.reflectionMode = mode
}

// GetReflectionBlur returns the power-of-two shrink applied to the environment capture
func GetReflectionBlur() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.reflectionBlur
}

// SetReflectionBlur sets the environment capture shrink
func SetReflectionBlur(blur int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()

	// Clamp to reasonable values
	if blur < 0 {
		blur = 0
	}
	if blur > MaxReflectionBlur {
		blur = MaxReflectionBlur
	}

	globalRenderSettings.reflectionBlur = blur
}

// GetPictureSize returns the size of the background picture buffer
func GetPictureSize() (width, height int) {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.pictureWidth, globalRenderSettings.pictureHeight
}

// SetPictureSize sets the picture buffer size. It applies the next time the
// picture buffer is created.
func SetPictureSize(width, height int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	if width < 320 {
		width = 320
	}
	if height < 200 {
		height = 200
	}
	globalRenderSettings.pictureWidth = width
	globalRenderSettings.pictureHeight = height
}

// GetFPSLimit returns the frame rate cap, 0 means uncapped
func GetFPSLimit() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.fpsLimit
}

// SetFPSLimit sets the frame rate cap
func SetFPSLimit(limit int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.fpsLimit = max(0, min(limit, MaxFPSLimit))
}
