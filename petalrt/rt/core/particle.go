package core

import (
	"cmp"
	"math"
	"math/rand"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

const twoPi = 2 * math.Pi

// Particle is one simulated petal.
type Particle struct {
	Position        mgl32.Vec3
	Velocity        mgl32.Vec3 // units per second
	Euler           mgl32.Vec3 // radians, kept in [0, 2π)
	AngularVelocity mgl32.Vec3 // radians per second
	Size            float32
	Alpha           float32

	// DepthKey is the view-space z of the last update. It only orders particles for blending.
	DepthKey float32
}

// Floats per particle in the packed vertex buffer: position(3) + euler(3) + size/alpha(2).
const (
	PositionComponents = 3
	EulerComponents    = 3
	MiscComponents     = 2
	PackedStride       = PositionComponents + EulerComponents + MiscComponents
)

// PackedLen is the number of float32 values Pack writes for n particles.
func PackedLen(n int) int { return n * PackedStride }

// PackedOffsets returns the float offsets of the position, euler and misc sub-ranges.
func PackedOffsets(n int) (position, euler, misc int) {
	return 0, n * PositionComponents, n * (PositionComponents + EulerComponents)
}

type FieldConfig struct {
	Count      int
	HalfExtent mgl32.Vec3
}

// Field owns a fixed number of particles inside an axis-aligned volume centered at the
// origin. Particles leaving the volume re-enter on the opposite face.
type Field struct {
	particles  []Particle
	halfExtent mgl32.Vec3
}

// NewField seeds cfg.Count particles from rng.
func NewField(cfg FieldConfig, rng *rand.Rand) *Field {
	if cfg.Count < 0 {
		cfg.Count = 0
	}
	f := &Field{
		particles:  make([]Particle, cfg.Count),
		halfExtent: cfg.HalfExtent,
	}

	symmetric := func() float32 { return rng.Float32()*2 - 1 }
	for i := range f.particles {
		p := &f.particles[i]

		dir := mgl32.Vec3{
			symmetric()*0.3 + 0.8,
			symmetric()*0.2 - 1.0,
			symmetric()*0.3 + 0.5,
		}.Normalize()
		p.Velocity = dir.Mul(2 + rng.Float32())

		p.AngularVelocity = mgl32.Vec3{
			symmetric() * math.Pi,
			symmetric() * math.Pi,
			symmetric() * math.Pi,
		}
		p.Position = mgl32.Vec3{
			symmetric() * cfg.HalfExtent.X(),
			symmetric() * cfg.HalfExtent.Y(),
			symmetric() * cfg.HalfExtent.Z(),
		}
		p.Euler = mgl32.Vec3{
			rng.Float32() * twoPi,
			rng.Float32() * twoPi,
			rng.Float32() * twoPi,
		}
		p.Size = 0.9 + rng.Float32()*0.1
		p.Alpha = 1
	}
	return f
}

// NewFieldFrom builds a field from explicit particle state. The slice is copied.
func NewFieldFrom(particles []Particle, halfExtent mgl32.Vec3) *Field {
	return &Field{
		particles:  slices.Clone(particles),
		halfExtent: halfExtent,
	}
}

func (f *Field) Len() int { return len(f.particles) }

// Particles exposes the current, depth-sorted particle state. Callers must not retain it
// across Update.
func (f *Field) Particles() []Particle { return f.particles }

func (f *Field) HalfExtent() mgl32.Vec3 { return f.halfExtent }

// SetHalfExtent changes the volume. Particles now outside are wrapped on the next Update.
func (f *Field) SetHalfExtent(h mgl32.Vec3) { f.halfExtent = h }

// Update advances the simulation by dt seconds and orders particles back to front
// relative to the view matrix.
func (f *Field) Update(dt float32, view mgl32.Mat4) {
	depthRow := view.Row(2)
	for i := range f.particles {
		p := &f.particles[i]

		p.Position = p.Position.Add(p.Velocity.Mul(dt))
		p.Euler = p.Euler.Add(p.AngularVelocity.Mul(dt))

		for axis := 0; axis < 3; axis++ {
			p.Position[axis] = wrapAxis(p.Position[axis], p.Size, f.halfExtent[axis])
			p.Euler[axis] = wrapAngle(p.Euler[axis])
		}

		p.DepthKey = depthRow.Dot(p.Position.Vec4(1))
	}

	// Ascending view-space z: the farthest particle is drawn first.
	slices.SortStableFunc(f.particles, func(a, b Particle) int {
		return cmp.Compare(a.DepthKey, b.DepthKey)
	})
}

// Pack writes the particles, in their current order, into dst as three contiguous
// sub-ranges (see PackedOffsets). dst is grown if needed and returned.
func (f *Field) Pack(dst []float32) []float32 {
	n := len(f.particles)
	if cap(dst) < PackedLen(n) {
		dst = make([]float32, PackedLen(n))
	}
	dst = dst[:PackedLen(n)]

	posOff, eulerOff, miscOff := PackedOffsets(n)
	positions := dst[posOff:eulerOff]
	eulers := dst[eulerOff:miscOff]
	misc := dst[miscOff:]
	for i := range f.particles {
		p := &f.particles[i]
		copy(positions[i*PositionComponents:], p.Position[:])
		copy(eulers[i*EulerComponents:], p.Euler[:])
		misc[i*MiscComponents] = p.Size
		misc[i*MiscComponents+1] = p.Alpha
	}
	return dst
}

// wrapAxis moves a coordinate whose extent reaches or crosses a face of the volume to
// the opposite side, in whole steps of the volume width.
func wrapAxis(pos, size, half float32) float32 {
	p, h, r := float64(pos), float64(half), float64(size)*0.5
	if h <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return pos
	}
	over := math.Abs(p) - r - h
	if over < 0 {
		return pos
	}
	steps := math.Floor(over/(2*h)) + 1
	if p > 0 {
		p -= 2 * h * steps
	} else {
		p += 2 * h * steps
	}
	return float32(p)
}

func wrapAngle(a float32) float32 {
	w := math.Mod(float64(a), twoPi)
	if w < 0 {
		w += twoPi
	}
	out := float32(w)
	if out >= float32(twoPi) {
		out = 0
	}
	return out
}
