package petalfall

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.BlurPasses)
	assert.Equal(t, 100*time.Millisecond, cfg.MaxFrameDelta)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no particles", func(c *Config) { c.Particles = 0 }},
		{"flat volume", func(c *Config) { c.HalfExtent = mgl32.Vec3{20, 0, 20} }},
		{"near behind camera", func(c *Config) { c.Near = 0 }},
		{"far before near", func(c *Config) { c.Far = c.Near }},
		{"negative blur", func(c *Config) { c.BlurPasses = -1 }},
		{"negative layers", func(c *Config) { c.DepthLayers = -1 }},
		{"no delta clamp", func(c *Config) { c.MaxFrameDelta = 0 }},
		{"negative fade", func(c *Config) { c.FadeIn = -time.Second }},
		{"eye at center", func(c *Config) { c.Eye = mgl32.Vec3{}; c.Target = mgl32.Vec3{0, 0, -1} }},
		{"eye on target", func(c *Config) { c.Target = c.Eye }},
		{"up along view", func(c *Config) { c.Up = mgl32.Vec3{0, 0, 1} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDecodeConfigOverridesDefaults(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`
particles: 500
half_extent: [30, 15, 10]
fit_aspect: false
eye: [0, 5, 50]
bloom_threshold: 0.5
depth_layers: 1
max_frame_delta: 50ms
fade_in: 2s
debug: true
`))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Particles)
	assert.Equal(t, mgl32.Vec3{30, 15, 10}, cfg.HalfExtent)
	assert.False(t, cfg.FitAspect)
	assert.Equal(t, mgl32.Vec3{0, 5, 50}, cfg.Eye)
	assert.Equal(t, float32(0.5), cfg.Threshold)
	assert.Equal(t, 1, cfg.DepthLayers)
	assert.Equal(t, 50*time.Millisecond, cfg.MaxFrameDelta)
	assert.Equal(t, 2*time.Second, cfg.FadeIn)
	assert.True(t, cfg.Debug)

	// Untouched keys keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.Up, cfg.Up)
	assert.Equal(t, def.BlurPasses, cfg.BlurPasses)
}

func TestDecodeConfigErrors(t *testing.T) {
	_, err := DecodeConfig(strings.NewReader("particals: 10\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = DecodeConfig(strings.NewReader("particles: -4\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := DecodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petals.yaml")
	require.NoError(t, os.WriteFile(path, []byte("particles: 64\nseed: 9\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Particles)
	assert.Equal(t, int64(9), cfg.Seed)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
