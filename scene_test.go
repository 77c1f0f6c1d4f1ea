package petalfall

import (
	"testing"

	"github.com/gekko3d/petalfall/petalrt/rt/core"
	"github.com/gekko3d/petalfall/petalrt/rt/preview"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSceneFitsVolumeVertically(t *testing.T) {
	s, err := NewScene(testConfig(), 1280, 720)
	require.NoError(t, err)

	// The top edge of the volume, at the volume's center depth, lands on the top of the viewport.
	top := s.Projection.Matrix.Mul4(s.Camera.View).Mul4x1(mgl32.Vec4{0, 20, 0, 1})
	assert.InDelta(t, 1, top.Y()/top.W(), 1e-4)

	assert.InDelta(t, 20*1280.0/720.0, s.Field.HalfExtent().X(), 1e-3)
	assert.Equal(t, float32(40), s.LayerStep())
}

func TestNewSceneFitsToVolumeCenterNotTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Target = mgl32.Vec3{0, 0, 30}
	s, err := NewScene(cfg, 800, 800)
	require.NoError(t, err)

	assert.InDelta(t, core.FitFovY(20, 60), s.Projection.FovY, 1e-4)
	top := s.Projection.Matrix.Mul4(s.Camera.View).Mul4x1(mgl32.Vec4{0, 20, 0, 1})
	assert.InDelta(t, 1, top.Y()/top.W(), 1e-4)
}

func TestNewSceneRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Up = mgl32.Vec3{0, 0, 2}
	_, err := NewScene(cfg, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, core.ErrDegenerateBasis)
}

func TestSceneAdvancePacksSortedField(t *testing.T) {
	s, err := NewScene(testConfig(), 800, 600)
	require.NoError(t, err)

	packed := s.Advance(0.05)
	require.Len(t, packed, core.PackedLen(120))

	row := s.Camera.View.Row(2)
	prev := float32(-1e9)
	for i := 0; i < 120; i++ {
		key := row.Dot(mgl32.Vec4{packed[i*3], packed[i*3+1], packed[i*3+2], 1})
		assert.GreaterOrEqual(t, key, prev)
		prev = key
	}

	again := s.Advance(0.05)
	assert.Equal(t, &packed[0], &again[0], "the packed buffer is reused")
}

func TestSceneSetViewport(t *testing.T) {
	s, err := NewScene(testConfig(), 800, 600)
	require.NoError(t, err)

	s.SetViewport(600, 600)
	assert.InDelta(t, 1, s.Projection.Aspect, 1e-6)
	assert.InDelta(t, 20, s.Field.HalfExtent().X(), 1e-4)

	s.SetViewport(0, 0)
	assert.InDelta(t, 1, s.Projection.Aspect, 1e-6)
}

func TestSceneSnapshot(t *testing.T) {
	s, err := NewScene(testConfig(), 160, 90)
	require.NoError(t, err)
	s.Advance(0.016)

	img := s.Snapshot(preview.DefaultOptions(160, 90))
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 90, img.Bounds().Dy())
}
