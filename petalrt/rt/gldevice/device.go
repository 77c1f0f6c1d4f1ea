// Package gldevice implements gpu.Device on OpenGL 4.1 core.
package gldevice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gekko3d/petalfall/petalrt/rt/gpu"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Device drives the context current on the calling thread. All methods must be called
// from that thread.
type Device struct {
	vao uint32
}

var _ gpu.Device = (*Device)(nil)

type currentContext interface {
	MakeContextCurrent()
}

// Opener returns a gpu.Opener that makes the surface's context current (when it has
// one), loads the GL entry points and prepares the shared vertex array.
func Opener(log gpu.Logger) gpu.Opener {
	return func(s gpu.Surface) (gpu.Device, error) {
		if c, ok := s.(currentContext); ok {
			c.MakeContextCurrent()
		}
		if err := gl.Init(); err != nil {
			return nil, fmt.Errorf("gl init: %w", err)
		}
		if log != nil {
			log.Debugf("OpenGL %s, GLSL %s, %s",
				gl.GoStr(gl.GetString(gl.VERSION)),
				gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION)),
				gl.GoStr(gl.GetString(gl.RENDERER)))
		}
		d := &Device{}
		gl.GenVertexArrays(1, &d.vao)
		gl.BindVertexArray(d.vao)
		gl.Enable(gl.PROGRAM_POINT_SIZE)
		gl.Disable(gl.CULL_FACE)
		return d, nil
	}
}

func (d *Device) CompileShader(stage gpu.Stage, src string) (gpu.Handle, error) {
	var kind uint32
	switch stage {
	case gpu.StageVertex:
		kind = gl.VERTEX_SHADER
	case gpu.StageFragment:
		kind = gl.FRAGMENT_SHADER
	default:
		return 0, fmt.Errorf("cannot compile %s stage", stage)
	}
	if strings.TrimSpace(src) == "" {
		return 0, errors.New("empty source")
	}

	sh := gl.CreateShader(kind)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(sh, 1, csrc, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &n)
		msg := infoLog(n, func(buf *uint8) { gl.GetShaderInfoLog(sh, n, nil, buf) })
		gl.DeleteShader(sh)
		return 0, errors.New(msg)
	}
	return gpu.Handle(sh), nil
}

func (d *Device) DeleteShader(sh gpu.Handle) {
	if sh != 0 {
		gl.DeleteShader(uint32(sh))
	}
}

func (d *Device) LinkProgram(vs, fs gpu.Handle) (gpu.Handle, error) {
	p := gl.CreateProgram()
	gl.AttachShader(p, uint32(vs))
	gl.AttachShader(p, uint32(fs))
	gl.LinkProgram(p)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &n)
		msg := infoLog(n, func(buf *uint8) { gl.GetProgramInfoLog(p, n, nil, buf) })
		gl.DeleteProgram(p)
		return 0, errors.New(msg)
	}
	gl.DetachShader(p, uint32(vs))
	gl.DetachShader(p, uint32(fs))
	return gpu.Handle(p), nil
}

func infoLog(n int32, read func(*uint8)) string {
	if n <= 0 {
		return "no diagnostic"
	}
	buf := make([]uint8, n+1)
	read(&buf[0])
	return strings.TrimRight(string(buf), "\x00\n ")
}

func (d *Device) DeleteProgram(p gpu.Handle) {
	if p != 0 {
		gl.DeleteProgram(uint32(p))
	}
}

func (d *Device) UniformLocation(p gpu.Handle, name string) gpu.Location {
	return gpu.Location(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

func (d *Device) AttribLocation(p gpu.Handle, name string) gpu.Location {
	return gpu.Location(gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00")))
}

func (d *Device) CreateTexture(w, h int) (gpu.Handle, error) {
	drainErrors()
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &tex)
		return 0, fmt.Errorf("texture %dx%d: gl error 0x%x: %w", w, h, code, gpu.ErrAllocation)
	}
	return gpu.Handle(tex), nil
}

func (d *Device) DeleteTexture(tex gpu.Handle) {
	if tex != 0 {
		t := uint32(tex)
		gl.DeleteTextures(1, &t)
	}
}

func (d *Device) CreateDepthBuffer(w, h int) (gpu.Handle, error) {
	drainErrors()
	var rb uint32
	gl.GenRenderbuffers(1, &rb)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rb)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(w), int32(h))
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteRenderbuffers(1, &rb)
		return 0, fmt.Errorf("depth buffer %dx%d: gl error 0x%x: %w", w, h, code, gpu.ErrAllocation)
	}
	return gpu.Handle(rb), nil
}

func (d *Device) DeleteDepthBuffer(db gpu.Handle) {
	if db != 0 {
		rb := uint32(db)
		gl.DeleteRenderbuffers(1, &rb)
	}
}

func (d *Device) CreateFramebuffer(color, depth gpu.Handle) (gpu.Handle, error) {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(color), 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, uint32(depth))
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fb)
		return 0, fmt.Errorf("framebuffer incomplete (0x%x): %w", status, gpu.ErrAllocation)
	}
	return gpu.Handle(fb), nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Handle) {
	if fb != 0 {
		f := uint32(fb)
		gl.DeleteFramebuffers(1, &f)
	}
}

func (d *Device) CreateBuffer() (gpu.Handle, error) {
	var buf uint32
	gl.GenBuffers(1, &buf)
	if buf == 0 {
		return 0, fmt.Errorf("vertex buffer: %w", gpu.ErrAllocation)
	}
	return gpu.Handle(buf), nil
}

func (d *Device) BufferData(buf gpu.Handle, data []float32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(buf))
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *Device) DeleteBuffer(buf gpu.Handle) {
	if buf != 0 {
		b := uint32(buf)
		gl.DeleteBuffers(1, &b)
	}
}

func (d *Device) BindFramebuffer(fb gpu.Handle) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
}

func (d *Device) Viewport(x, y, w, h int) {
	gl.Viewport(int32(x), int32(y), int32(w), int32(h))
}

func (d *Device) Clear(r, g, b, a float32, depth bool) {
	gl.ClearColor(r, g, b, a)
	mask := uint32(gl.COLOR_BUFFER_BIT)
	if depth {
		gl.DepthMask(true)
		mask |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(mask)
}

func (d *Device) SetDepthTest(enabled bool) {
	if enabled {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LEQUAL)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

func (d *Device) SetBlend(mode gpu.BlendMode) {
	switch mode {
	case gpu.BlendAlpha:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	default:
		gl.Disable(gl.BLEND)
	}
}

func (d *Device) UseProgram(p gpu.Handle) { gl.UseProgram(uint32(p)) }

func (d *Device) BindTexture(unit int, tex gpu.Handle) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
}

func (d *Device) Uniform1i(loc gpu.Location, v int32) {
	if loc.Valid() {
		gl.Uniform1i(int32(loc), v)
	}
}

func (d *Device) Uniform1f(loc gpu.Location, v float32) {
	if loc.Valid() {
		gl.Uniform1f(int32(loc), v)
	}
}

func (d *Device) Uniform2f(loc gpu.Location, x, y float32) {
	if loc.Valid() {
		gl.Uniform2f(int32(loc), x, y)
	}
}

func (d *Device) Uniform3f(loc gpu.Location, x, y, z float32) {
	if loc.Valid() {
		gl.Uniform3f(int32(loc), x, y, z)
	}
}

func (d *Device) Uniform4f(loc gpu.Location, x, y, z, w float32) {
	if loc.Valid() {
		gl.Uniform4f(int32(loc), x, y, z, w)
	}
}

// UniformMatrix4 uploads m as stored: column-major, no transpose.
func (d *Device) UniformMatrix4(loc gpu.Location, m *[16]float32) {
	if loc.Valid() {
		gl.UniformMatrix4fv(int32(loc), 1, false, &m[0])
	}
}

func (d *Device) VertexAttrib(loc gpu.Location, buf gpu.Handle, size, offset int) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(buf))
	gl.EnableVertexAttribArray(uint32(loc))
	gl.VertexAttribPointerWithOffset(uint32(loc), int32(size), gl.FLOAT, false, 0, uintptr(offset*4))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *Device) DisableAttrib(loc gpu.Location) {
	gl.DisableVertexAttribArray(uint32(loc))
}

func (d *Device) Draw(mode gpu.Primitive, first, count int) {
	prim := uint32(gl.POINTS)
	if mode == gpu.PrimitiveTriangleStrip {
		prim = gl.TRIANGLE_STRIP
	}
	gl.DrawArrays(prim, int32(first), int32(count))
}

func (d *Device) PointSizeRange() (float32, float32) {
	var r [2]float32
	gl.GetFloatv(gl.POINT_SIZE_RANGE, &r[0])
	if r[1] <= 0 {
		return 1, 1
	}
	return r[0], r[1]
}

func (d *Device) Close() {
	if d.vao != 0 {
		gl.BindVertexArray(0)
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

func drainErrors() {
	for i := 0; i < 8 && gl.GetError() != gl.NO_ERROR; i++ {
	}
}
