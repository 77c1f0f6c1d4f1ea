package core

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrDegenerateBasis is returned when a look-at basis cannot be built:
// the eye sits on the target or the up vector is parallel to the view direction.
var ErrDegenerateBasis = errors.New("core: degenerate look-at basis")

const basisEpsilon = 1e-6

// Camera is a fixed look-at camera. View is recomputed by Update every frame.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	View mgl32.Mat4
}

func NewCamera(position, target, up mgl32.Vec3) (*Camera, error) {
	c := &Camera{
		Position: position,
		Target:   target,
		Up:       up,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Update()
	return c, nil
}

// Validate reports ErrDegenerateBasis if the current parameters cannot produce a view matrix.
func (c *Camera) Validate() error {
	_, err := LookAt(c.Position, c.Target, c.Up)
	return err
}

// Update rederives View. A degenerate basis keeps the previous matrix.
func (c *Camera) Update() {
	view, err := LookAt(c.Position, c.Target, c.Up)
	if err != nil {
		return
	}
	c.View = view
}

// DistanceTo returns the distance from the camera to p. The projection is fitted with the
// distance to the volume center, which need not be the look-at target.
func (c *Camera) DistanceTo(p mgl32.Vec3) float32 {
	return c.Position.Sub(p).Len()
}

// LookAt builds a right-handed, column-major view matrix.
//
//	forward = normalize(eye - target)
//	side    = normalize(up x forward)
//	trueUp  = forward x side
//
// The rows of the rotation part are side, trueUp and forward; the translation column
// holds -dot(eye, axis) for each of them. The result matches mgl32.LookAtV.
func LookAt(eye, target, up mgl32.Vec3) (mgl32.Mat4, error) {
	forward := eye.Sub(target)
	if forward.Len() < basisEpsilon {
		return mgl32.Ident4(), ErrDegenerateBasis
	}
	forward = forward.Normalize()

	side := up.Cross(forward)
	if side.Len() < basisEpsilon {
		return mgl32.Ident4(), ErrDegenerateBasis
	}
	side = side.Normalize()
	trueUp := forward.Cross(side)

	return mgl32.Mat4{
		side[0], trueUp[0], forward[0], 0,
		side[1], trueUp[1], forward[1], 0,
		side[2], trueUp[2], forward[2], 0,
		-side.Dot(eye), -trueUp.Dot(eye), -forward.Dot(eye), 1,
	}, nil
}

// Projection holds a perspective frustum. FovY is in degrees and is chosen once at
// scene setup; only the aspect ratio changes afterwards.
type Projection struct {
	FovY   float32
	Near   float32
	Far    float32
	Aspect float32

	Matrix mgl32.Mat4
}

func NewProjection(fovY, near, far, aspect float32) *Projection {
	p := &Projection{
		FovY: fovY,
		Near: near,
		Far:  far,
	}
	p.SetAspect(aspect)
	return p
}

// SetAspect rebuilds Matrix for a new viewport aspect ratio.
func (p *Projection) SetAspect(aspect float32) {
	if aspect <= 0 {
		aspect = 1
	}
	p.Aspect = aspect
	p.Matrix = Perspective(p.FovY, aspect, p.Near, p.Far)
}

// Perspective is the OpenGL frustum matrix: column-major, view-space z in [-near, -far]
// mapped to clip-space z in [-1, 1].
func Perspective(fovYDegrees, aspect, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(fovYDegrees), aspect, near, far)
}

// FitFovY returns the vertical field of view, in degrees, at which a volume of the given
// half height exactly fills the frustum when its center is distance away from the camera.
func FitFovY(halfHeight, distance float32) float32 {
	return float32(2 * math.Atan2(float64(halfHeight), float64(distance)) * 180 / math.Pi)
}
