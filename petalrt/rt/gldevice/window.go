package gldevice

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowOptions configures CreateWindow.
type WindowOptions struct {
	Width       int
	Height      int
	Title       string
	Transparent bool
	VSync       bool
}

// CreateWindow opens a glfw window with an OpenGL 4.1 core context. glfw.Init must have
// been called on the locked main thread. The returned window satisfies gpu.Surface.
func CreateWindow(opts WindowOptions) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	if opts.Transparent {
		glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)
	}

	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window %dx%d: %w", opts.Width, opts.Height, err)
	}
	win.MakeContextCurrent()
	if opts.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	return win, nil
}
