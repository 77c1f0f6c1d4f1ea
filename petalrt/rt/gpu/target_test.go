package gpu_test

import (
	"testing"

	"github.com/gekko3d/petalfall/petalrt/rt/gpu"
	"github.com/gekko3d/petalfall/petalrt/rt/gpu/gputest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{800, 600, 400, 300},
		{801, 601, 400, 300},
		{3, 2, 1, 1},
		{1, 1, 1, 1},
		{1920, 1, 960, 1},
	}
	for _, tc := range tests {
		w, h := gpu.HalfSize(tc.w, tc.h)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("HalfSize(%d, %d) = %d, %d; want %d, %d", tc.w, tc.h, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestCreateTargetAttachmentsMatch(t *testing.T) {
	dev := gputest.NewDevice()
	rt, err := gpu.CreateTarget(dev, 320, 200)
	require.NoError(t, err)

	color, depth := dev.Attachments(rt.Framebuffer)
	assert.Equal(t, rt.Texture, color)
	assert.Equal(t, rt.Depth, depth)

	tw, th := dev.Size(rt.Texture)
	dw, dh := dev.Size(rt.Depth)
	assert.Equal(t, [2]int{320, 200}, [2]int{tw, th})
	assert.Equal(t, [2]int{tw, th}, [2]int{dw, dh})

	rt.Destroy()
	rt.Destroy()
	var nilTarget *gpu.RenderTarget
	nilTarget.Destroy()

	assert.Equal(t, 0, dev.LiveTotal())
	assert.Empty(t, dev.Errors, "each object is deleted once")
}

func TestCreateTargetFailures(t *testing.T) {
	t.Run("zero size", func(t *testing.T) {
		dev := gputest.NewDevice()
		_, err := gpu.CreateTarget(dev, 0, 10)
		assert.ErrorIs(t, err, gpu.ErrAllocation)
		assert.Equal(t, 0, dev.LiveTotal())
	})
	t.Run("texture out of memory", func(t *testing.T) {
		dev := gputest.NewDevice()
		dev.FailTextureAt = 1
		_, err := gpu.CreateTarget(dev, 64, 64)
		assert.ErrorIs(t, err, gpu.ErrAllocation)
		assert.Equal(t, 0, dev.LiveTotal())
	})
}

func assertPoolGeneration(t *testing.T, dev *gputest.Device, pool *gpu.TargetPool, w, h int) {
	t.Helper()
	require.True(t, pool.Ready())
	hw, hh := gpu.HalfSize(w, h)

	assert.Equal(t, [2]int{w, h}, [2]int{pool.Main.Width, pool.Main.Height})
	for _, rt := range []*gpu.RenderTarget{pool.HalfA, pool.HalfB} {
		assert.Equal(t, [2]int{hw, hh}, [2]int{rt.Width, rt.Height})
	}
	for _, rt := range []*gpu.RenderTarget{pool.Main, pool.HalfA, pool.HalfB} {
		tw, th := dev.Size(rt.Texture)
		assert.Equal(t, [2]int{rt.Width, rt.Height}, [2]int{tw, th})
		assert.True(t, dev.IsLive(rt.Framebuffer))
	}

	assert.Equal(t, 3, dev.Live(gputest.KindTexture), "one live target per slot")
	assert.Equal(t, 3, dev.Live(gputest.KindDepth))
	assert.Equal(t, 3, dev.Live(gputest.KindFramebuffer))
}

func TestTargetPoolResizeIsIdempotent(t *testing.T) {
	dev := gputest.NewDevice()
	pool := gpu.NewTargetPool(dev)

	require.NoError(t, pool.Resize(800, 600))
	assertPoolGeneration(t, dev, pool, 800, 600)
	firstMain := pool.Main.Framebuffer

	require.NoError(t, pool.Resize(800, 600))
	assertPoolGeneration(t, dev, pool, 800, 600)
	assert.False(t, dev.IsLive(firstMain), "previous generation destroyed")
	assert.Equal(t, 3, dev.Deleted(gputest.KindTexture))

	require.NoError(t, pool.Resize(1023, 767))
	assertPoolGeneration(t, dev, pool, 1023, 767)
	w, h := pool.Size()
	assert.Equal(t, 1023, w)
	assert.Equal(t, 767, h)

	pool.Destroy()
	assert.False(t, pool.Ready())
	assert.Equal(t, 0, dev.LiveTotal())
	assert.Empty(t, dev.Errors)
}

func TestTargetPoolResizeRollsBack(t *testing.T) {
	dev := gputest.NewDevice()
	pool := gpu.NewTargetPool(dev)
	require.NoError(t, pool.Resize(640, 480))

	// The second texture of the next generation fails: HalfA.
	dev.FailTextureAt = 5
	err := pool.Resize(1280, 720)
	require.ErrorIs(t, err, gpu.ErrAllocation)

	assert.False(t, pool.Ready(), "never half constructed")
	assert.Nil(t, pool.Main)
	assert.Equal(t, 0, dev.LiveTotal(), "old and partial generations are both released")
	assert.Empty(t, dev.Errors)

	// A later attempt can succeed.
	dev.FailTextureAt = 0
	require.NoError(t, pool.Resize(1280, 720))
	assertPoolGeneration(t, dev, pool, 1280, 720)
}
