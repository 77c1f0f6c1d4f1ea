// Package gputest provides a recording gpu.Device for tests that run without a driver.
package gputest

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/gekko3d/petalfall/petalrt/rt/gpu"
)

type Kind string

const (
	KindShader      Kind = "shader"
	KindProgram     Kind = "program"
	KindTexture     Kind = "texture"
	KindDepth       Kind = "depth"
	KindFramebuffer Kind = "framebuffer"
	KindBuffer      Kind = "buffer"
)

// DrawCall captures the pipeline state at a Draw.
type DrawCall struct {
	Framebuffer gpu.Handle
	Viewport    [4]int
	Program     gpu.Handle
	Mode        gpu.Primitive
	First       int
	Count       int
	DepthTest   bool
	Blend       gpu.BlendMode
	Textures    map[int]gpu.Handle
	Uniforms    map[string][]float32
}

// Device is an in-memory gpu.Device. The exported fields inject failures.
type Device struct {
	// ShaderError, when set, is called for every CompileShader; a non-nil result fails it.
	ShaderError func(stage gpu.Stage, src string) error
	LinkError   error
	// FailTextureAt fails the n-th CreateTexture call (1-based) and every later one when
	// FailTexturesAfter is set.
	FailTextureAt     int
	FailTexturesAfter bool
	BufferError       error
	// Eliminated names resolve to gpu.Unused.
	Eliminated map[string]bool
	PointMax   float32

	Calls  []string
	Draws  []DrawCall
	Errors []string
	Closed bool

	next     gpu.Handle
	live     map[gpu.Handle]Kind
	created  map[Kind]int
	deleted  map[Kind]int
	sizes    map[gpu.Handle][2]int
	fbParts  map[gpu.Handle][2]gpu.Handle
	buffers  map[gpu.Handle][]float32
	shSrc    map[gpu.Handle]string
	locNames map[gpu.Handle]map[gpu.Location]string
	uniforms map[gpu.Handle]map[gpu.Location][]float32

	textureCalls int
	fb           gpu.Handle
	viewport     [4]int
	depthTest    bool
	blend        gpu.BlendMode
	program      gpu.Handle
	units        map[int]gpu.Handle
}

func NewDevice() *Device {
	return &Device{
		PointMax: 64,
		live:     map[gpu.Handle]Kind{},
		created:  map[Kind]int{},
		deleted:  map[Kind]int{},
		sizes:    map[gpu.Handle][2]int{},
		fbParts:  map[gpu.Handle][2]gpu.Handle{},
		buffers:  map[gpu.Handle][]float32{},
		shSrc:    map[gpu.Handle]string{},
		locNames: map[gpu.Handle]map[gpu.Location]string{},
		uniforms: map[gpu.Handle]map[gpu.Location][]float32{},
		units:    map[int]gpu.Handle{},
	}
}

// Opener returns a gpu.Opener handing out d, or failing with err when err is non-nil.
func (d *Device) Opener(err error) gpu.Opener {
	return func(gpu.Surface) (gpu.Device, error) {
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func (d *Device) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

func (d *Device) alloc(kind Kind) gpu.Handle {
	d.next++
	d.live[d.next] = kind
	d.created[kind]++
	return d.next
}

func (d *Device) release(kind Kind, h gpu.Handle) {
	if h == 0 {
		return
	}
	got, ok := d.live[h]
	if !ok || got != kind {
		d.Errors = append(d.Errors, fmt.Sprintf("delete %s %d: not live", kind, h))
		return
	}
	delete(d.live, h)
	d.deleted[kind]++
}

// Live counts live objects of kind.
func (d *Device) Live(kind Kind) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// LiveTotal counts all live objects.
func (d *Device) LiveTotal() int { return len(d.live) }

func (d *Device) Created(kind Kind) int { return d.created[kind] }
func (d *Device) Deleted(kind Kind) int { return d.deleted[kind] }

// IsLive reports whether h is a live object.
func (d *Device) IsLive(h gpu.Handle) bool {
	_, ok := d.live[h]
	return ok
}

// Size returns the dimensions a texture or depth buffer was created with.
func (d *Device) Size(h gpu.Handle) (int, int) {
	s := d.sizes[h]
	return s[0], s[1]
}

// Attachments returns the color texture and depth buffer of a framebuffer.
func (d *Device) Attachments(fb gpu.Handle) (color, depth gpu.Handle) {
	p := d.fbParts[fb]
	return p[0], p[1]
}

// BufferContents returns the last data uploaded to buf.
func (d *Device) BufferContents(buf gpu.Handle) []float32 { return d.buffers[buf] }

// DrawsTo filters draws by target framebuffer.
func (d *Device) DrawsTo(fb gpu.Handle) []DrawCall {
	var out []DrawCall
	for _, dc := range d.Draws {
		if dc.Framebuffer == fb {
			out = append(out, dc)
		}
	}
	return out
}

// Reset forgets recorded calls and draws but keeps objects.
func (d *Device) Reset() {
	d.Calls = nil
	d.Draws = nil
}

func (d *Device) CompileShader(stage gpu.Stage, src string) (gpu.Handle, error) {
	d.record("CompileShader %s", stage)
	if strings.TrimSpace(src) == "" {
		return 0, errors.New("0:0: empty source")
	}
	if d.ShaderError != nil {
		if err := d.ShaderError(stage, src); err != nil {
			return 0, err
		}
	}
	h := d.alloc(KindShader)
	d.shSrc[h] = src
	return h, nil
}

func (d *Device) DeleteShader(sh gpu.Handle) {
	d.record("DeleteShader %d", sh)
	d.release(KindShader, sh)
	delete(d.shSrc, sh)
}

func (d *Device) LinkProgram(vs, fs gpu.Handle) (gpu.Handle, error) {
	d.record("LinkProgram %d %d", vs, fs)
	if d.LinkError != nil {
		return 0, d.LinkError
	}
	if !d.IsLive(vs) || !d.IsLive(fs) {
		return 0, errors.New("link: stage not live")
	}
	p := d.alloc(KindProgram)
	d.locNames[p] = map[gpu.Location]string{}
	d.uniforms[p] = map[gpu.Location][]float32{}
	return p, nil
}

func (d *Device) DeleteProgram(p gpu.Handle) {
	d.record("DeleteProgram %d", p)
	d.release(KindProgram, p)
}

func (d *Device) location(p gpu.Handle, name string) gpu.Location {
	if d.Eliminated[name] {
		return gpu.Unused
	}
	names, ok := d.locNames[p]
	if !ok {
		return gpu.Unused
	}
	for loc, n := range names {
		if n == name {
			return loc
		}
	}
	loc := gpu.Location(len(names))
	names[loc] = name
	return loc
}

func (d *Device) UniformLocation(p gpu.Handle, name string) gpu.Location {
	return d.location(p, name)
}

func (d *Device) AttribLocation(p gpu.Handle, name string) gpu.Location {
	return d.location(p, name)
}

func (d *Device) CreateTexture(w, h int) (gpu.Handle, error) {
	d.textureCalls++
	d.record("CreateTexture %dx%d", w, h)
	if d.FailTextureAt > 0 && (d.textureCalls == d.FailTextureAt || (d.FailTexturesAfter && d.textureCalls > d.FailTextureAt)) {
		return 0, fmt.Errorf("texture %dx%d: out of memory: %w", w, h, gpu.ErrAllocation)
	}
	t := d.alloc(KindTexture)
	d.sizes[t] = [2]int{w, h}
	return t, nil
}

func (d *Device) DeleteTexture(tex gpu.Handle) {
	d.record("DeleteTexture %d", tex)
	d.release(KindTexture, tex)
}

func (d *Device) CreateDepthBuffer(w, h int) (gpu.Handle, error) {
	d.record("CreateDepthBuffer %dx%d", w, h)
	db := d.alloc(KindDepth)
	d.sizes[db] = [2]int{w, h}
	return db, nil
}

func (d *Device) DeleteDepthBuffer(db gpu.Handle) {
	d.record("DeleteDepthBuffer %d", db)
	d.release(KindDepth, db)
}

func (d *Device) CreateFramebuffer(color, depth gpu.Handle) (gpu.Handle, error) {
	d.record("CreateFramebuffer %d %d", color, depth)
	if d.sizes[color] != d.sizes[depth] {
		return 0, fmt.Errorf("framebuffer incomplete: attachment sizes differ: %w", gpu.ErrAllocation)
	}
	fb := d.alloc(KindFramebuffer)
	d.fbParts[fb] = [2]gpu.Handle{color, depth}
	return fb, nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Handle) {
	d.record("DeleteFramebuffer %d", fb)
	d.release(KindFramebuffer, fb)
}

func (d *Device) CreateBuffer() (gpu.Handle, error) {
	d.record("CreateBuffer")
	if d.BufferError != nil {
		return 0, d.BufferError
	}
	return d.alloc(KindBuffer), nil
}

func (d *Device) BufferData(buf gpu.Handle, data []float32) {
	d.record("BufferData %d %d", buf, len(data))
	if !d.IsLive(buf) {
		d.Errors = append(d.Errors, fmt.Sprintf("BufferData on dead buffer %d", buf))
		return
	}
	d.buffers[buf] = append([]float32(nil), data...)
}

func (d *Device) DeleteBuffer(buf gpu.Handle) {
	d.record("DeleteBuffer %d", buf)
	d.release(KindBuffer, buf)
	delete(d.buffers, buf)
}

func (d *Device) BindFramebuffer(fb gpu.Handle) {
	d.record("BindFramebuffer %d", fb)
	if fb != 0 && !d.IsLive(fb) {
		d.Errors = append(d.Errors, fmt.Sprintf("bind dead framebuffer %d", fb))
	}
	d.fb = fb
}

func (d *Device) Viewport(x, y, w, h int) {
	d.record("Viewport %d %d %d %d", x, y, w, h)
	d.viewport = [4]int{x, y, w, h}
}

func (d *Device) Clear(r, g, b, a float32, depth bool) {
	d.record("Clear %v %v %v %v depth=%v", r, g, b, a, depth)
}

func (d *Device) SetDepthTest(enabled bool) {
	d.record("SetDepthTest %v", enabled)
	d.depthTest = enabled
}

func (d *Device) SetBlend(mode gpu.BlendMode) {
	d.record("SetBlend %d", mode)
	d.blend = mode
}

func (d *Device) UseProgram(p gpu.Handle) {
	d.record("UseProgram %d", p)
	if p != 0 && !d.IsLive(p) {
		d.Errors = append(d.Errors, fmt.Sprintf("use dead program %d", p))
	}
	d.program = p
}

func (d *Device) BindTexture(unit int, tex gpu.Handle) {
	d.record("BindTexture %d %d", unit, tex)
	if tex != 0 && !d.IsLive(tex) {
		d.Errors = append(d.Errors, fmt.Sprintf("bind dead texture %d", tex))
	}
	d.units[unit] = tex
}

func (d *Device) setUniform(loc gpu.Location, v ...float32) {
	if !loc.Valid() || d.program == 0 {
		return
	}
	if u, ok := d.uniforms[d.program]; ok {
		u[loc] = v
	}
}

func (d *Device) Uniform1i(loc gpu.Location, v int32) { d.setUniform(loc, float32(v)) }
func (d *Device) Uniform1f(loc gpu.Location, v float32) { d.setUniform(loc, v) }
func (d *Device) Uniform2f(loc gpu.Location, x, y float32) { d.setUniform(loc, x, y) }
func (d *Device) Uniform3f(loc gpu.Location, x, y, z float32) { d.setUniform(loc, x, y, z) }
func (d *Device) Uniform4f(loc gpu.Location, x, y, z, w float32) {
	d.setUniform(loc, x, y, z, w)
}
func (d *Device) UniformMatrix4(loc gpu.Location, m *[16]float32) { d.setUniform(loc, m[:]...) }

func (d *Device) VertexAttrib(loc gpu.Location, buf gpu.Handle, size, offset int) {
	d.record("VertexAttrib %d buf=%d size=%d offset=%d", loc, buf, size, offset)
	if !d.IsLive(buf) {
		d.Errors = append(d.Errors, fmt.Sprintf("attrib from dead buffer %d", buf))
	}
}

func (d *Device) DisableAttrib(loc gpu.Location) {
	d.record("DisableAttrib %d", loc)
}

func (d *Device) Draw(mode gpu.Primitive, first, count int) {
	d.record("Draw %d %d %d", mode, first, count)
	for unit, tex := range d.units {
		if tex != 0 && d.fb != 0 {
			if color, _ := d.Attachments(d.fb); color == tex {
				d.Errors = append(d.Errors, fmt.Sprintf("feedback: framebuffer %d samples its own texture on unit %d", d.fb, unit))
			}
		}
	}
	uniforms := map[string][]float32{}
	for loc, v := range d.uniforms[d.program] {
		uniforms[d.locNames[d.program][loc]] = v
	}
	d.Draws = append(d.Draws, DrawCall{
		Framebuffer: d.fb,
		Viewport:    d.viewport,
		Program:     d.program,
		Mode:        mode,
		First:       first,
		Count:       count,
		DepthTest:   d.depthTest,
		Blend:       d.blend,
		Textures:    maps.Clone(d.units),
		Uniforms:    uniforms,
	})
}

func (d *Device) PointSizeRange() (float32, float32) { return 1, d.PointMax }

func (d *Device) Close() {
	d.record("Close")
	d.Closed = true
}
