package gpu

import (
	"errors"
	"fmt"
)

// Handle names a driver object. Zero is never a valid object; for framebuffers it
// selects the default (visible) framebuffer.
type Handle uint32

// Location is a resolved uniform or attribute slot.
type Location int32

// Unused marks a name the driver did not resolve, typically because the compiler
// optimized it away. Setting an Unused uniform is a no-op.
const Unused Location = -1

func (l Location) Valid() bool { return l >= 0 }

type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
	StageLink
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageLink:
		return "link"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

type BlendMode uint8

const (
	BlendNone BlendMode = iota
	// BlendAlpha is SRC_ALPHA, ONE_MINUS_SRC_ALPHA.
	BlendAlpha
)

type Primitive uint8

const (
	PrimitivePoints Primitive = iota
	PrimitiveTriangleStrip
)

// ErrAllocation wraps driver failures to create textures, depth buffers, framebuffers or buffers.
var ErrAllocation = errors.New("gpu: allocation failed")

// Device is the subset of a GL-style driver the engine needs. Every Create call has a
// matching Delete; callers own what they create. Implementations are not safe for
// concurrent use and must be driven from the thread owning the context.
type Device interface {
	CompileShader(stage Stage, src string) (Handle, error)
	DeleteShader(sh Handle)
	LinkProgram(vs, fs Handle) (Handle, error)
	DeleteProgram(p Handle)
	UniformLocation(p Handle, name string) Location
	AttribLocation(p Handle, name string) Location

	CreateTexture(w, h int) (Handle, error)
	DeleteTexture(tex Handle)
	CreateDepthBuffer(w, h int) (Handle, error)
	DeleteDepthBuffer(db Handle)
	CreateFramebuffer(color, depth Handle) (Handle, error)
	DeleteFramebuffer(fb Handle)

	CreateBuffer() (Handle, error)
	BufferData(buf Handle, data []float32)
	DeleteBuffer(buf Handle)

	BindFramebuffer(fb Handle)
	Viewport(x, y, w, h int)
	Clear(r, g, b, a float32, depth bool)
	SetDepthTest(enabled bool)
	SetBlend(mode BlendMode)

	UseProgram(p Handle)
	BindTexture(unit int, tex Handle)
	Uniform1i(loc Location, v int32)
	Uniform1f(loc Location, v float32)
	Uniform2f(loc Location, x, y float32)
	Uniform3f(loc Location, x, y, z float32)
	Uniform4f(loc Location, x, y, z, w float32)
	UniformMatrix4(loc Location, m *[16]float32)

	// VertexAttrib binds buf to loc as size floats per vertex starting at offset floats.
	VertexAttrib(loc Location, buf Handle, size, offset int)
	DisableAttrib(loc Location)
	Draw(mode Primitive, first, count int)

	// PointSizeRange reports the smallest and largest point sprite the driver rasterizes.
	PointSizeRange() (min, max float32)

	// Close releases context-level state held by the device itself.
	Close()
}

// Surface is the host drawing surface the device renders into.
type Surface interface {
	FramebufferSize() (width, height int)
}

// Opener acquires a device for a surface. An error means the effect is unavailable.
type Opener func(Surface) (Device, error)

// Logger is the logging surface used by this package.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
