package petalfall

import (
	"image"
	"math/rand"
	"time"

	"github.com/gekko3d/petalfall/petalrt/rt/core"
	"github.com/gekko3d/petalfall/petalrt/rt/preview"

	"github.com/go-gl/mathgl/mgl32"
)

// volumeCenter is where the particle volume sits in world space.
var volumeCenter = mgl32.Vec3{}

// Scene is the CPU side of the effect: the fixed camera, its projection and the
// particle field. It has no GPU state and can be advanced and previewed headless.
type Scene struct {
	Camera     *core.Camera
	Projection *core.Projection
	Field      *core.Field

	cfg    Config
	packed []float32
}

// NewScene seeds a field for cfg and fits the projection so the volume's vertical
// extent fills a width x height viewport.
func NewScene(cfg Config, width, height int) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	camera, err := core.NewCamera(cfg.Eye, cfg.Target, cfg.Up)
	if err != nil {
		return nil, err
	}
	aspect := float32(max(width, 1)) / float32(max(height, 1))
	fov := core.FitFovY(cfg.HalfExtent.Y(), camera.DistanceTo(volumeCenter))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Scene{
		Camera:     camera,
		Projection: core.NewProjection(fov, cfg.Near, cfg.Far, aspect),
		cfg:        cfg,
	}
	s.Field = core.NewField(core.FieldConfig{
		Count:      cfg.Particles,
		HalfExtent: s.extent(aspect),
	}, rand.New(rand.NewSource(seed)))
	return s, nil
}

func (s *Scene) extent(aspect float32) mgl32.Vec3 {
	half := s.cfg.HalfExtent
	if s.cfg.FitAspect {
		half[0] = half[1] * aspect
	}
	return half
}

// SetViewport refits the projection and, with FitAspect, the volume's x extent.
func (s *Scene) SetViewport(width, height int) {
	aspect := float32(max(width, 1)) / float32(max(height, 1))
	s.Projection.SetAspect(aspect)
	s.Field.SetHalfExtent(s.extent(aspect))
}

// Advance moves the simulation dt seconds and returns the packed, depth sorted particles.
// The slice is reused by the next call.
func (s *Scene) Advance(dt float32) []float32 {
	s.Camera.Update()
	s.Field.Update(dt, s.Camera.View)
	s.packed = s.Field.Pack(s.packed)
	return s.packed
}

// LayerStep is the z distance between repeated depth layers: one volume depth.
func (s *Scene) LayerStep() float32 {
	return 2 * s.Field.HalfExtent().Z()
}

// Snapshot rasterizes the current field on the CPU.
func (s *Scene) Snapshot(opts preview.Options) *image.RGBA {
	if opts.Fade == (mgl32.Vec3{}) {
		opts.Fade = s.cfg.Fade
	}
	return preview.Render(s.Field.Particles(), s.Camera.View, s.Projection.Matrix, opts)
}
