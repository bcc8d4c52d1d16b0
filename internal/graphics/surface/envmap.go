package surface

import (
	"image"

	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	"gfxcore/internal/graphics/gfxerr"
	"gfxcore/internal/graphics/gfxlog"
)

const maxEnvironmentSide = 2048

// EnvironmentSide returns the edge of the environment texture for a buffer:
// the largest power of two that still fits the buffer after the blur shift,
// clamped to the texture size limit.
func EnvironmentSide(buffer image.Point, blur, maxTexture int) int {
	limit := min(buffer.X, buffer.Y)
	side := 1
	for side<<blur <= limit {
		side <<= 1
	}
	if maxTexture <= 0 || maxTexture > maxEnvironmentSide {
		maxTexture = maxEnvironmentSide
	}
	return min(side, maxTexture)
}

func (p *Pool) createEnvironment() error {
	side := EnvironmentSide(p.buffer, config.GetReflectionBlur(), p.adapter.MaxTextureSize)
	s, err := p.create(device.SurfaceDesc{
		Width: side, Height: side,
		Caps:   device.CapTexture | device.CapManaged,
		Memory: device.MemoryDevice,
	}, gfxerr.CreateEnvmapBuffer)
	if err != nil {
		return err
	}
	p.surfaces[Environment] = s
	return nil
}

// EnvironmentTexture captures the centred square of the last presented
// frame into the environment surface and returns its handle. The capture
// happens once per frame; 0 means reflections are off or unavailable.
func (p *Pool) EnvironmentTexture() device.TextureHandle {
	if p.envHandle != 0 {
		return p.envHandle
	}
	if config.GetReflectionMode() == 0 || p.dev == nil {
		return 0
	}
	if p.surfaces[Environment] == nil {
		if err := p.createEnvironment(); err != nil {
			gfxlog.Logger().Warn("environment map unavailable", "err", err)
			return 0
		}
	}

	src := p.surfaces[Capture]
	var origin image.Point
	if src == nil {
		src = p.surfaces[Primary]
		origin = p.backend.WindowOrigin()
	}
	if src == nil {
		return 0
	}
	side := min(p.mode.Width, p.mode.Height)
	at := image.Pt((p.mode.Width-side)/2, (p.mode.Height-side)/2).Add(origin)
	env := p.surfaces[Environment]
	if err := env.Blit(image.Rectangle{}, src, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))}); err != nil {
		gfxlog.Logger().Debug("environment capture failed", "err", err)
		return 0
	}
	h, err := p.dev.TextureHandle(env)
	if err != nil {
		gfxlog.Logger().Debug("environment handle failed", "err", err)
		return 0
	}
	p.envHandle = h
	return h
}

// ResetEnvironment forgets the captured environment so the next request
// captures a new frame.
func (p *Pool) ResetEnvironment() { p.envHandle = 0 }
