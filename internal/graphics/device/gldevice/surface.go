package gldevice

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"

	"gfxcore/internal/graphics/device"
)

// Surface keeps its pixels in a Go slice. Surfaces the device can draw into
// or sample from also own a GL texture; render targets add a framebuffer.
// cpuDirty and gpuDirty tell which copy is newer.
type Surface struct {
	b      *Backend
	desc   device.SurfaceDesc
	format device.PixelFormat
	pix    []byte
	pitch  int
	gen    int

	tex, fbo, rbo      uint32
	cpuDirty, gpuDirty bool

	released bool
	locked   bool

	chain []*Surface
	index int
	depth *Surface
	// mirror is the back buffer last flipped to this front buffer.
	mirror *Surface

	palette  device.Palette
	colorKey uint32
	keyed    bool

	// handle is the texture handle owner gave out for this surface.
	handle device.TextureHandle
	owner  *Device
}

func (s *Surface) Desc() device.SurfaceDesc   { return s.desc }
func (s *Surface) Format() device.PixelFormat { return s.format }
func (s *Surface) Bounds() image.Rectangle    { return image.Rect(0, 0, s.desc.Width, s.desc.Height) }
func (s *Surface) IsLost() bool               { return !s.released && s.gen != s.b.gen }

func (s *Surface) size() image.Point { return image.Pt(s.desc.Width, s.desc.Height) }

func (s *Surface) isDepth() bool { return s.desc.Caps&device.CapZBuffer != 0 }

func (s *Surface) isTarget() bool {
	return s.desc.Caps&(device.Cap3D|device.CapPrimary|device.CapFlip) != 0
}

func (s *Surface) onDevice() bool {
	return s.isTarget() || s.desc.Memory == device.MemoryDevice || s.desc.Caps&device.CapTexture != 0
}

func (s *Surface) usable() error {
	switch {
	case s.released:
		return fmt.Errorf("surface released")
	case s.IsLost():
		return device.ErrSurfaceLost
	case s.locked:
		return fmt.Errorf("surface locked")
	}
	return nil
}

// alloc creates the GL objects of the surface.
func (s *Surface) alloc() error {
	w, h := int32(s.desc.Width), int32(s.desc.Height)
	if s.isDepth() {
		gl.GenRenderbuffers(1, &s.rbo)
		gl.BindRenderbuffer(gl.RENDERBUFFER, s.rbo)
		internal := uint32(gl.DEPTH_COMPONENT16)
		if s.desc.ZDepth > 16 {
			internal = gl.DEPTH_COMPONENT24
		}
		gl.RenderbufferStorage(gl.RENDERBUFFER, internal, w, h)
		gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
		return nil
	}
	if !s.onDevice() {
		return nil
	}
	gl.GenTextures(1, &s.tex)
	gl.BindTexture(gl.TEXTURE_2D, s.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, w, h, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if s.isTarget() {
		gl.GenFramebuffers(1, &s.fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, s.fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, s.tex, 0)
		status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if status != gl.FRAMEBUFFER_COMPLETE {
			s.free()
			return fmt.Errorf("framebuffer incomplete: 0x%x", status)
		}
	}
	s.cpuDirty = true
	return nil
}

func (s *Surface) free() {
	if s.fbo != 0 {
		gl.DeleteFramebuffers(1, &s.fbo)
		s.fbo = 0
	}
	if s.tex != 0 {
		gl.DeleteTextures(1, &s.tex)
		s.tex = 0
	}
	if s.rbo != 0 {
		gl.DeleteRenderbuffers(1, &s.rbo)
		s.rbo = 0
	}
}

// upload pushes the CPU pixels to the texture when they are newer.
func (s *Surface) upload() {
	if s.tex == 0 || !s.cpuDirty {
		return
	}
	s.syncMirror()
	var pal [256]device.RGB
	if s.format.Indexed && s.palette != nil {
		pal = s.palette.Entries()
	}
	keyed := s.keyed || (s.format.Indexed && s.desc.Caps&device.CapTexture != 0)
	rgba := s.b.scratch(s.desc.Width * s.desc.Height * 4)
	expandRGBA(rgba, s.pix, s.pitch, s.size(), s.format, &pal, s.colorKey, keyed)
	gl.BindTexture(gl.TEXTURE_2D, s.tex)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(s.desc.Width), int32(s.desc.Height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	s.cpuDirty = false
}

// download reads the framebuffer back when the GPU copy is newer.
func (s *Surface) download() {
	s.syncMirror()
	if s.fbo == 0 || !s.gpuDirty {
		return
	}
	rgba := s.b.scratch(s.desc.Width * s.desc.Height * 4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, s.fbo)
	gl.ReadPixels(0, 0, int32(s.desc.Width), int32(s.desc.Height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	var pal [256]device.RGB
	if s.format.Indexed && s.palette != nil {
		pal = s.palette.Entries()
	}
	packRGBA(s.pix, s.pitch, rgba, s.size(), s.format, &pal)
	s.gpuDirty = false
}

// syncMirror copies the flipped back buffer into a front buffer on demand.
func (s *Surface) syncMirror() {
	m := s.mirror
	if m == nil {
		return
	}
	s.mirror = nil
	m.download()
	blitPixels(s, s.Bounds(), m, m.Bounds())
	s.cpuDirty = true
}

func (s *Surface) Restore() error {
	if s.released {
		return fmt.Errorf("surface released")
	}
	if !s.IsLost() {
		return nil
	}
	s.free()
	s.gen = s.b.gen
	s.gpuDirty = false
	if err := s.alloc(); err != nil {
		return err
	}
	if s.depth != nil {
		return s.AttachDepth(s.depth)
	}
	return nil
}

func (s *Surface) Lock() (device.Locked, error) {
	if err := s.usable(); err != nil {
		return device.Locked{}, err
	}
	if s.isDepth() {
		return device.Locked{}, fmt.Errorf("depth surfaces cannot be locked")
	}
	s.download()
	s.locked = true
	return device.Locked{Pix: s.pix, Pitch: s.pitch}, nil
}

func (s *Surface) Unlock() {
	if s.locked {
		s.locked = false
		s.cpuDirty = true
	}
}

// Fill writes color into r. Depth surfaces are cleared by the device.
func (s *Surface) Fill(r image.Rectangle, color uint32) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.isDepth() {
		return nil
	}
	s.download()
	r = device.Area(s, r)
	bpp := s.format.BytesPerPixel()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := s.pix[y*s.pitch:]
		for x := r.Min.X; x < r.Max.X; x++ {
			device.WritePixel(row[x*bpp:], bpp, color)
		}
	}
	s.cpuDirty = true
	return nil
}

// Blit copies with nearest-neighbour scaling. A blit into the windowed
// primary surface is shown at once.
func (s *Surface) Blit(dst image.Rectangle, src device.Surface, srcRect image.Rectangle) error {
	gs, ok := src.(*Surface)
	if !ok {
		return fmt.Errorf("foreign surface %T", src)
	}
	if err := s.usable(); err != nil {
		return err
	}
	if err := gs.usable(); err != nil {
		return err
	}
	d := device.Area(s, dst)
	sr := device.Area(gs, srcRect)
	if d.Empty() || sr.Empty() {
		return nil
	}
	gs.download()
	s.download()
	blitPixels(s, d, gs, sr)
	s.cpuDirty = true
	if s.desc.Caps&device.CapPrimary != 0 && len(s.chain) == 0 {
		s.b.show(s)
	}
	return nil
}

// Flip shows the back buffer. The front buffer mirrors it until the next
// flip; the GL swap chain does the actual buffering.
func (s *Surface) Flip() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.index != 0 || len(s.chain) < 2 {
		return fmt.Errorf("surface is not the front of a flip chain")
	}
	back := s.chain[1]
	s.b.show(back)
	s.mirror = back
	s.cpuDirty = true
	return nil
}

func (s *Surface) FlipDone() bool { return true }

func (s *Surface) BackBuffer() (device.Surface, error) {
	if s.index+1 >= len(s.chain) {
		return nil, fmt.Errorf("no attached back buffer")
	}
	return s.chain[s.index+1], nil
}

func (s *Surface) AttachDepth(z device.Surface) error {
	gz, ok := z.(*Surface)
	if !ok || !gz.isDepth() {
		return fmt.Errorf("not a depth surface")
	}
	if s.fbo == 0 {
		return fmt.Errorf("surface is not a render target")
	}
	if gz.desc.Width < s.desc.Width || gz.desc.Height < s.desc.Height {
		return fmt.Errorf("depth surface %dx%d smaller than target", gz.desc.Width, gz.desc.Height)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, s.fbo)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, gz.rbo)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("framebuffer incomplete with depth: 0x%x", status)
	}
	s.depth = gz
	return nil
}

func (s *Surface) SetPalette(p device.Palette) error {
	if !s.format.Indexed {
		return fmt.Errorf("surface is not palettized")
	}
	s.palette = p
	s.cpuDirty = true
	return nil
}

func (s *Surface) SetColorKey(key uint32) error {
	s.colorKey, s.keyed = key, true
	s.cpuDirty = true
	return nil
}

func (s *Surface) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dropHandle()
	s.free()
	delete(s.b.surfaces, s)
	for _, c := range s.chain {
		if c != s && !c.released {
			c.Release()
		}
	}
}

// dropHandle removes the surface from its device's handle table.
func (s *Surface) dropHandle() {
	if d := s.owner; d != nil && d.handles != nil {
		delete(d.handles, s.handle)
	}
	s.handle, s.owner = 0, nil
}

// Palette is a plain 256-entry palette; expansion happens on upload.
type Palette struct {
	entries  [256]device.RGB
	released bool
}

func (p *Palette) Entries() [256]device.RGB { return p.entries }
func (p *Palette) Release()                 { p.released = true }
