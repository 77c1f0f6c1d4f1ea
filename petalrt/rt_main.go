package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"
	"runtime"

	"github.com/gekko3d/petalfall"
	"github.com/gekko3d/petalfall/petalrt/rt/gldevice"
	"github.com/gekko3d/petalfall/petalrt/rt/preview"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file; built-in defaults when empty")
	debug := flag.Bool("debug", false, "Debug logging, and panic on invalid engine calls")
	width := flag.Int("width", 1280, "Window width")
	height := flag.Int("height", 720, "Window height")
	snapshot := flag.String("snapshot", "", "Render one frame on the CPU to this PNG file and exit")
	frames := flag.Int("frames", 0, "Stop after this many frames (0 runs until the window closes); with -snapshot, frames simulated before capture")
	flag.Parse()

	cfg := petalfall.DefaultConfig()
	if *configPath != "" {
		loaded, err := petalfall.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *debug {
		cfg.Debug = true
	}
	logger := petalfall.NewDefaultLogger("petalfall", cfg.Debug)

	if *snapshot != "" {
		if err := writeSnapshot(*snapshot, cfg, *width, *height, *frames); err != nil {
			logger.Errorf("snapshot: %v", err)
			os.Exit(1)
		}
		logger.Infof("wrote %s", *snapshot)
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	window, err := gldevice.CreateWindow(gldevice.WindowOptions{
		Width:       *width,
		Height:      *height,
		Title:       "petalfall",
		Transparent: true,
		VSync:       true,
	})
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	engine := petalfall.NewEngine(cfg, gldevice.Opener(logger), logger)
	if !engine.Init(window) {
		logger.Warnf("petal layer unavailable, showing an empty window")
		runEmpty(window, *frames)
		return
	}
	defer engine.Destroy()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		_ = engine.Resize(width, height)
	})
	window.SetIconifyCallback(func(w *glfw.Window, iconified bool) {
		if iconified {
			_ = engine.Stop()
		} else {
			_ = engine.Start()
		}
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			if engine.Running() {
				_ = engine.Stop()
			} else {
				_ = engine.Start()
			}
		}
	})

	for n := 0; !window.ShouldClose(); n++ {
		if *frames > 0 && n >= *frames {
			break
		}
		glfw.PollEvents()
		if engine.Running() {
			_ = engine.Frame()
			window.SwapBuffers()
		} else {
			glfw.WaitEventsTimeout(0.1)
		}
	}

	s := engine.Stats()
	logger.Infof("%d frames rendered, %d skipped", s.Frames, s.Skipped)
}

func runEmpty(window *glfw.Window, frames int) {
	for n := 0; !window.ShouldClose() && (frames <= 0 || n < frames); n++ {
		glfw.WaitEventsTimeout(0.1)
	}
}

func writeSnapshot(path string, cfg petalfall.Config, width, height, frames int) error {
	scene, err := petalfall.NewScene(cfg, width, height)
	if err != nil {
		return err
	}
	for i := 0; i < max(frames, 1); i++ {
		scene.Advance(1.0 / 60)
	}
	img := scene.Snapshot(preview.DefaultOptions(width, height))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
