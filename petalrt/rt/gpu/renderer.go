package gpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/petalfall/petalrt/rt/core"
	"github.com/gekko3d/petalfall/petalrt/rt/shaders"

	"github.com/go-gl/mathgl/mgl32"
)

// quadVertices is a full-screen triangle strip in clip space.
var quadVertices = []float32{
	-1, -1,
	1, -1,
	-1, 1,
	1, 1,
}

// Settings are the renderer constants fixed for an engine's lifetime.
type Settings struct {
	DOF         mgl32.Vec3 // focus distance, focus range, max defocus
	Fade        mgl32.Vec3 // far fade start, far fade half distance, near fade distance
	Threshold   float32    // bright-pass luminance threshold
	BlurPasses  int
	DepthLayers int
	ClearColor  [4]float32
}

// Frame is everything one Render call consumes.
type Frame struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Elapsed    float32
	Delta      float32

	// Packed particle data (see core.Field.Pack) and its particle count.
	Particles []float32
	Count     int
	// LayerStep is the z distance between repeated depth layers.
	LayerStep float32
	Opacity   float32
}

type particleInputs struct {
	Projection Location `uniform:"uProjection"`
	Modelview  Location `uniform:"uModelview"`
	Resolution Location `uniform:"uResolution"`
	Offset     Location `uniform:"uOffset"`
	DOF        Location `uniform:"uDOF"`
	Fade       Location `uniform:"uFade"`
	PointLimit Location `uniform:"uPointLimit"`
	Position   Location `attrib:"aPosition"`
	Euler      Location `attrib:"aEuler"`
	Misc       Location `attrib:"aMisc"`
}

type backgroundInputs struct {
	Resolution Location `uniform:"uResolution"`
	Times      Location `uniform:"uTimes"`
	Position   Location `attrib:"aPosition"`
}

type brightInputs struct {
	Resolution Location `uniform:"uResolution"`
	Src        Location `uniform:"uSrc"`
	Delta      Location `uniform:"uDelta"`
	Threshold  Location `uniform:"uThreshold"`
	Position   Location `attrib:"aPosition"`
}

type blurInputs struct {
	Resolution Location `uniform:"uResolution"`
	Src        Location `uniform:"uSrc"`
	Delta      Location `uniform:"uDelta"`
	BlurDir    Location `uniform:"uBlurDir"`
	Position   Location `attrib:"aPosition"`
}

type compositeInputs struct {
	Src         Location `uniform:"uSrc"`
	Bloom       Location `uniform:"uBloom"`
	BloomAmount Location `uniform:"uBloomAmount"`
	Opacity     Location `uniform:"uOpacity"`
	Position    Location `attrib:"aPosition"`
}

// Renderer draws the background, particle, bloom and composite passes. It owns the
// render target pool, the program cache and the two vertex buffers.
type Renderer struct {
	dev      Device
	log      Logger
	sources  shaders.Sources
	settings Settings

	Programs *Cache
	Pool     *TargetPool

	quadBuf     Handle
	particleBuf Handle

	particle     *Program
	particleIn   particleInputs
	background   *Program
	backgroundIn backgroundInputs
	bright       *Program
	brightIn     brightInputs
	blur         *Program
	blurIn       blurInputs
	composite    *Program
	compositeIn  compositeInputs

	// Failures holds the diagnostics of programs that did not build.
	Failures []error

	width    int
	height   int
	pointMax float32
	released bool
}

func NewRenderer(dev Device, sources shaders.Sources, settings Settings, log Logger) *Renderer {
	if log == nil {
		log = nopLogger{}
	}
	if settings.BlurPasses < 0 {
		settings.BlurPasses = 0
	}
	return &Renderer{
		dev:      dev,
		log:      log,
		sources:  sources,
		settings: settings,
		Programs: NewCache(dev, log),
		Pool:     NewTargetPool(dev),
	}
}

// Init acquires render targets, programs and buffers, in that order. Target and program
// failures degrade the output and are not returned; a buffer failure is returned and the
// caller must Release. Missing shader sources fail before anything is acquired.
func (r *Renderer) Init(width, height int) error {
	if err := r.sources.Validate(); err != nil {
		return err
	}
	r.width, r.height = width, height
	_, r.pointMax = r.dev.PointSizeRange()

	if err := r.Pool.Resize(width, height); err != nil {
		r.log.Warnf("render targets %dx%d unavailable, frames will be skipped: %v", width, height, err)
	}

	r.particle = r.bind("particle", r.sources.ParticleVert, r.sources.ParticleFrag, &r.particleIn)
	r.background = r.bind("background", r.sources.QuadVert, r.sources.BackgroundFrag, &r.backgroundIn)
	r.bright = r.bind("bright", r.sources.QuadVert, r.sources.BrightFrag, &r.brightIn)
	r.blur = r.bind("blur", r.sources.QuadVert, r.sources.BlurFrag, &r.blurIn)
	r.composite = r.bind("composite", r.sources.CompositeVert, r.sources.CompositeFrag, &r.compositeIn)

	var err error
	if r.quadBuf, err = r.dev.CreateBuffer(); err != nil {
		return fmt.Errorf("quad buffer: %w", err)
	}
	r.dev.BufferData(r.quadBuf, quadVertices)
	if r.particleBuf, err = r.dev.CreateBuffer(); err != nil {
		return fmt.Errorf("particle buffer: %w", err)
	}
	return nil
}

func (r *Renderer) bind(name, vs, fs string, layout any) *Program {
	p, err := r.Programs.Bind(name, vs, fs, layout)
	if err != nil {
		r.log.Errorf("%v", err)
		r.Failures = append(r.Failures, err)
		return nil
	}
	return p
}

// BloomAvailable reports whether the bright and blur programs built.
func (r *Renderer) BloomAvailable() bool { return r.bright != nil && r.blur != nil }

// ParticlesAvailable reports whether the particle program built.
func (r *Renderer) ParticlesAvailable() bool { return r.particle != nil }

// BackgroundAvailable reports whether the background program built.
func (r *Renderer) BackgroundAvailable() bool { return r.background != nil }

// Size returns the current output dimensions.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Resize recreates the whole target pool at the new size.
func (r *Renderer) Resize(width, height int) error {
	r.width, r.height = width, height
	return r.Pool.Resize(width, height)
}

// Render draws one frame into the default framebuffer. It returns an error, and draws
// nothing, when the frame has to be skipped.
func (r *Renderer) Render(f Frame) error {
	if r.released {
		return errors.New("gpu: renderer released")
	}
	if r.composite == nil {
		return fmt.Errorf("composite: %w", ErrNoProgram)
	}
	if !r.Pool.Ready() {
		if err := r.Pool.Resize(r.width, r.height); err != nil {
			return err
		}
	}

	aspect := float32(r.width) / float32(max(r.height, 1))

	r.dev.BindFramebuffer(r.Pool.Main.Framebuffer)
	r.dev.Viewport(0, 0, r.Pool.Main.Width, r.Pool.Main.Height)
	r.dev.SetDepthTest(true)
	c := r.settings.ClearColor
	r.dev.Clear(c[0], c[1], c[2], c[3], true)

	r.drawBackground(f, aspect)
	r.drawParticles(f, aspect)

	bloom := r.BloomAvailable()
	if bloom {
		r.drawBright(aspect)
		for i := 0; i < r.settings.BlurPasses; i++ {
			radius, spread := 1.5+float32(i), 2+float32(i)
			r.drawBlur(r.Pool.HalfA, r.Pool.HalfB, mgl32.Vec4{radius, 0, spread, 0}, aspect)
			r.drawBlur(r.Pool.HalfB, r.Pool.HalfA, mgl32.Vec4{0, radius, 0, spread}, aspect)
		}
	}

	r.drawComposite(f, bloom)
	return nil
}

func (r *Renderer) drawBackground(f Frame, aspect float32) {
	if r.background == nil {
		return
	}
	in := &r.backgroundIn
	r.dev.SetDepthTest(false)
	r.dev.SetBlend(BlendNone)
	r.dev.UseProgram(r.background.Handle)
	r.dev.Uniform3f(in.Resolution, float32(r.width), float32(r.height), aspect)
	r.dev.Uniform2f(in.Times, f.Elapsed, f.Delta)
	r.drawQuad(in.Position)
}

func (r *Renderer) drawParticles(f Frame, aspect float32) {
	if r.particle == nil || f.Count <= 0 {
		return
	}
	in := &r.particleIn
	r.dev.BufferData(r.particleBuf, f.Particles)

	r.dev.SetDepthTest(true)
	r.dev.SetBlend(BlendAlpha)
	r.dev.UseProgram(r.particle.Handle)

	proj, view := f.Projection, f.View
	r.dev.UniformMatrix4(in.Projection, (*[16]float32)(&proj))
	r.dev.UniformMatrix4(in.Modelview, (*[16]float32)(&view))
	r.dev.Uniform3f(in.Resolution, float32(r.width), float32(r.height), aspect)
	r.dev.Uniform3f(in.DOF, r.settings.DOF[0], r.settings.DOF[1], r.settings.DOF[2])
	r.dev.Uniform3f(in.Fade, r.settings.Fade[0], r.settings.Fade[1], r.settings.Fade[2])
	r.dev.Uniform1f(in.PointLimit, r.pointMax)

	posOff, eulerOff, miscOff := core.PackedOffsets(f.Count)
	r.attrib(in.Position, r.particleBuf, core.PositionComponents, posOff)
	r.attrib(in.Euler, r.particleBuf, core.EulerComponents, eulerOff)
	r.attrib(in.Misc, r.particleBuf, core.MiscComponents, miscOff)

	// Farthest layer first so blending stays back to front across layers.
	for layer := r.settings.DepthLayers; layer >= 0; layer-- {
		r.dev.Uniform3f(in.Offset, 0, 0, -f.LayerStep*float32(layer))
		r.dev.Draw(PrimitivePoints, 0, f.Count)
	}

	r.disable(in.Position)
	r.disable(in.Euler)
	r.disable(in.Misc)
	r.dev.SetBlend(BlendNone)
}

func (r *Renderer) drawBright(aspect float32) {
	in := &r.brightIn
	src, dst := r.Pool.Main, r.Pool.HalfA
	r.beginEffect(dst)
	r.dev.UseProgram(r.bright.Handle)
	r.dev.BindTexture(0, src.Texture)
	r.dev.Uniform1i(in.Src, 0)
	r.dev.Uniform2f(in.Delta, 1/float32(src.Width), 1/float32(src.Height))
	r.dev.Uniform3f(in.Resolution, float32(dst.Width), float32(dst.Height), aspect)
	r.dev.Uniform1f(in.Threshold, r.settings.Threshold)
	r.drawQuad(in.Position)
	r.dev.BindTexture(0, 0)
}

func (r *Renderer) drawBlur(src, dst *RenderTarget, dir mgl32.Vec4, aspect float32) {
	in := &r.blurIn
	r.beginEffect(dst)
	r.dev.UseProgram(r.blur.Handle)
	r.dev.BindTexture(0, src.Texture)
	r.dev.Uniform1i(in.Src, 0)
	r.dev.Uniform2f(in.Delta, 1/float32(src.Width), 1/float32(src.Height))
	r.dev.Uniform3f(in.Resolution, float32(dst.Width), float32(dst.Height), aspect)
	r.dev.Uniform4f(in.BlurDir, dir[0], dir[1], dir[2], dir[3])
	r.drawQuad(in.Position)
	r.dev.BindTexture(0, 0)
}

func (r *Renderer) drawComposite(f Frame, bloom bool) {
	in := &r.compositeIn
	r.dev.BindFramebuffer(0)
	r.dev.Viewport(0, 0, r.width, r.height)
	r.dev.SetDepthTest(false)
	r.dev.SetBlend(BlendNone)
	r.dev.Clear(0, 0, 0, 0, true)

	r.dev.UseProgram(r.composite.Handle)
	r.dev.BindTexture(0, r.Pool.Main.Texture)
	r.dev.Uniform1i(in.Src, 0)
	r.dev.Uniform1i(in.Bloom, 1)
	if bloom {
		r.dev.BindTexture(1, r.Pool.HalfA.Texture)
		r.dev.Uniform1f(in.BloomAmount, 1)
	} else {
		r.dev.Uniform1f(in.BloomAmount, 0)
	}
	r.dev.Uniform1f(in.Opacity, f.Opacity)
	r.drawQuad(in.Position)
	r.dev.BindTexture(1, 0)
	r.dev.BindTexture(0, 0)
}

func (r *Renderer) beginEffect(dst *RenderTarget) {
	r.dev.BindFramebuffer(dst.Framebuffer)
	r.dev.Viewport(0, 0, dst.Width, dst.Height)
	r.dev.SetDepthTest(false)
	r.dev.SetBlend(BlendNone)
	r.dev.Clear(0, 0, 0, 0, false)
}

func (r *Renderer) drawQuad(pos Location) {
	r.attrib(pos, r.quadBuf, 2, 0)
	r.dev.Draw(PrimitiveTriangleStrip, 0, 4)
	r.disable(pos)
}

func (r *Renderer) attrib(loc Location, buf Handle, size, offset int) {
	if loc.Valid() {
		r.dev.VertexAttrib(loc, buf, size, offset)
	}
}

func (r *Renderer) disable(loc Location) {
	if loc.Valid() {
		r.dev.DisableAttrib(loc)
	}
}

// Release deletes buffers, then programs, then render targets. Safe to call more than once.
func (r *Renderer) Release() {
	if r.released {
		return
	}
	r.released = true

	if r.particleBuf != 0 {
		r.dev.DeleteBuffer(r.particleBuf)
		r.particleBuf = 0
	}
	if r.quadBuf != 0 {
		r.dev.DeleteBuffer(r.quadBuf)
		r.quadBuf = 0
	}
	r.Programs.Release()
	r.particle, r.background, r.bright, r.blur, r.composite = nil, nil, nil, nil, nil
	r.Pool.Destroy()
}
