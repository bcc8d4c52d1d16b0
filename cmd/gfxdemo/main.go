// Command gfxdemo drives the display stack with a small animated scene.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"runtime"

	"gfxcore/internal/app"
	"gfxcore/internal/config"
	"gfxcore/internal/graphics/device"
	_ "gfxcore/internal/graphics/device/gldevice"
	_ "gfxcore/internal/graphics/device/headless"
	"gfxcore/internal/graphics/gfxlog"
	"gfxcore/internal/graphics/overlay"

	"github.com/xlab/closer"
)

var (
	backend    = flag.String("backend", "gl", "display backend")
	configPath = flag.String("config", "", "display settings file (JSON)")
	saveConfig = flag.Bool("save", false, "write the live settings back to -config on exit")
	fullscreen = flag.Bool("fullscreen", false, "use a fullscreen mode")
	mode       = flag.String("mode", "", "fullscreen mode as WIDTHxHEIGHTxBPP")
	software   = flag.Bool("software", false, "use the software render path")
	zbuffer    = flag.Bool("zbuffer", true, "attach a depth buffer")
	triple     = flag.Bool("triple", false, "triple buffering")
	blend      = flag.Int("blend", config.GetAlphaBlendMode(), "alpha blend mode: 0 off, 1 basic, 2 advanced")
	reflection = flag.Int("reflect", config.GetReflectionMode(), "reflection mode, 0 disables environment maps")
	fps        = flag.Int("fps", config.GetFPSLimit(), "frame rate cap, 0 for none")
	frames     = flag.Int("frames", 0, "exit after this many frames")
	assets     = flag.String("assets", "assets/levels", "directory with page files")
	level      = flag.String("level", "", "page file to show; generated pages when empty")
	fontPath   = flag.String("font", "", "TrueType font for the mode overlay")
	verbose    = flag.Bool("v", false, "debug logging")
)

func init() {
	runtime.LockOSThread()
}

func parseMode(s string) (device.DisplayMode, error) {
	var m device.DisplayMode
	if _, err := fmt.Sscanf(s, "%dx%dx%d", &m.Width, &m.Height, &m.BPP); err != nil {
		return m, fmt.Errorf("bad mode %q: %w", s, err)
	}
	return m, nil
}

// settings loads the config file and lays the flags the user set over it.
func settings() (config.DisplaySettings, error) {
	s := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		switch {
		case err == nil:
			s = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return s, err
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fullscreen":
			s.FullScreen = *fullscreen
		case "mode":
			var m device.DisplayMode
			if m, err = parseMode(*mode); err == nil {
				s.Mode = m
				s.FullScreen = true
			}
		case "software":
			if *software {
				s.RenderMode = config.RenderSoftware
			} else {
				s.RenderMode = config.RenderHardware
			}
		case "zbuffer":
			s.ZBuffer = *zbuffer
		case "triple":
			s.TripleBuffering = *triple
		}
	})
	return s, err
}

func main() {
	flag.Parse()

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	gfxlog.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	config.SetAlphaBlendMode(*blend)
	config.SetReflectionMode(*reflection)
	config.SetFPSLimit(*fps)

	s, err := settings()
	if err != nil {
		log.Fatalln(err)
	}

	a, err := app.New(app.Options{
		Backend:    *backend,
		Settings:   s,
		AssetsPath: *assets,
		Level:      *level,
	})
	if err != nil {
		log.Fatalln(err)
	}
	if *fontPath != "" {
		face, err := overlay.LoadFace(*fontPath, 16)
		if err != nil {
			log.Println(err)
		} else {
			a.ModeInfo().SetFace(face)
			a.ModeInfo().ModeChanged(a.Controller().Mode())
		}
	}
	closer.Bind(func() {
		if *saveConfig && *configPath != "" {
			if err := config.Save(*configPath, a.Controller().Settings()); err != nil {
				log.Println(err)
			}
		}
		if err := a.Close(); err != nil {
			log.Println(err)
		}
	})
	defer closer.Close()

	if err := a.Run(*frames); err != nil {
		closer.Fatalln(err)
	}
}
