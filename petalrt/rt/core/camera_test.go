package core

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func ndc(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	clip := m.Mul4x1(p.Vec4(1))
	return clip.Vec3().Mul(1 / clip.W())
}

func TestPerspectiveDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(100)
	proj := Perspective(60, 16.0/9.0, near, far)

	if z := ndc(proj, mgl32.Vec3{0, 0, -near}).Z(); !mgl32.FloatEqualThreshold(z, -1, 1e-4) {
		t.Errorf("near plane center maps to z=%v, want -1", z)
	}
	if z := ndc(proj, mgl32.Vec3{0, 0, -far}).Z(); !mgl32.FloatEqualThreshold(z, 1, 1e-4) {
		t.Errorf("far plane center maps to z=%v, want 1", z)
	}
}

func TestLookAtOriginAndBasis(t *testing.T) {
	tests := []struct {
		name   string
		eye    mgl32.Vec3
		target mgl32.Vec3
		up     mgl32.Vec3
	}{
		{"default", mgl32.Vec3{0, 0, 100}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{"oblique", mgl32.Vec3{12, -4, 30}, mgl32.Vec3{1, 2, -3}, mgl32.Vec3{0, 1, 0}},
		{"z-up", mgl32.Vec3{0, -20, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}

	for _, tc := range tests {
		view, err := LookAt(tc.eye, tc.target, tc.up)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}

		origin := view.Mul4x1(tc.eye.Vec4(1)).Vec3()
		if !origin.ApproxEqualThreshold(mgl32.Vec3{}, 1e-4) {
			t.Errorf("%s: eye maps to %v, want origin", tc.name, origin)
		}

		// Target lies straight ahead, on the negative z axis.
		ahead := view.Mul4x1(tc.target.Vec4(1)).Vec3()
		if ahead.Z() >= 0 || !mgl32.FloatEqualThreshold(ahead.X(), 0, 1e-4) || !mgl32.FloatEqualThreshold(ahead.Y(), 0, 1e-4) {
			t.Errorf("%s: target maps to %v, want (0, 0, -d)", tc.name, ahead)
		}

		ref := mgl32.LookAtV(tc.eye, tc.target, tc.up)
		if !view.ApproxEqualThreshold(ref, 1e-4) {
			t.Errorf("%s: LookAt differs from mgl32.LookAtV\n got %v\nwant %v", tc.name, view, ref)
		}
	}
}

func TestLookAtDegenerate(t *testing.T) {
	if _, err := LookAt(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}); !errors.Is(err, ErrDegenerateBasis) {
		t.Errorf("up parallel to forward: got %v, want ErrDegenerateBasis", err)
	}
	if _, err := LookAt(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1}, mgl32.Vec3{0, 1, 0}); !errors.Is(err, ErrDegenerateBasis) {
		t.Errorf("eye on target: got %v, want ErrDegenerateBasis", err)
	}
	if _, err := NewCamera(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{}, mgl32.Vec3{0, -1, 0}); err == nil {
		t.Error("NewCamera accepted a degenerate basis")
	}
}

func TestCameraUpdateKeepsLastGoodView(t *testing.T) {
	cam, err := NewCamera(mgl32.Vec3{0, 0, 100}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	before := cam.View
	cam.Up = mgl32.Vec3{0, 0, 1}
	cam.Update()
	if cam.View != before {
		t.Errorf("degenerate update replaced the view matrix")
	}
}

func TestCameraDistanceTo(t *testing.T) {
	cam, err := NewCamera(mgl32.Vec3{0, 0, 100}, mgl32.Vec3{0, 0, 40}, mgl32.Vec3{0, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		point mgl32.Vec3
		want  float32
	}{
		{mgl32.Vec3{}, 100},
		{cam.Target, 60},
		{mgl32.Vec3{0, 0, 100}, 0},
		{mgl32.Vec3{30, 40, 100}, 50},
	}
	for _, tc := range tests {
		if d := cam.DistanceTo(tc.point); d != tc.want {
			t.Errorf("DistanceTo(%v) = %v, want %v", tc.point, d, tc.want)
		}
	}
}

func TestFitFovYFillsVolume(t *testing.T) {
	halfHeight, distance := float32(20), float32(100)
	fov := FitFovY(halfHeight, distance)

	for _, aspect := range []float32{0.5, 1, 16.0 / 9.0, 3} {
		proj := NewProjection(fov, 0.1, 200, aspect)
		top := ndc(proj.Matrix, mgl32.Vec3{0, halfHeight, -distance})
		if !mgl32.FloatEqualThreshold(top.Y(), 1, 1e-4) {
			t.Errorf("aspect %v: volume top maps to ndc y=%v, want 1", aspect, top.Y())
		}
		bottom := ndc(proj.Matrix, mgl32.Vec3{0, -halfHeight, -distance})
		if !mgl32.FloatEqualThreshold(bottom.Y(), -1, 1e-4) {
			t.Errorf("aspect %v: volume bottom maps to ndc y=%v, want -1", aspect, bottom.Y())
		}
	}
}

func TestProjectionSetAspectGuardsZero(t *testing.T) {
	p := NewProjection(45, 0.1, 100, 0)
	if p.Aspect != 1 {
		t.Errorf("Aspect = %v, want fallback 1", p.Aspect)
	}
}
