package petalfall

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gekko3d/petalfall/petalrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("petalfall: invalid config")

// Config holds the engine constants. Zero values are not meaningful; start from
// DefaultConfig.
type Config struct {
	// Particle field.
	Particles  int        `yaml:"particles"`
	HalfExtent mgl32.Vec3 `yaml:"half_extent"`
	// FitAspect widens or narrows the x extent to HalfExtent.y * aspect on every resize.
	FitAspect bool `yaml:"fit_aspect"`
	// Seed for the initial field. Zero picks a time based seed.
	Seed int64 `yaml:"seed"`

	// Camera and projection.
	Eye    mgl32.Vec3 `yaml:"eye"`
	Target mgl32.Vec3 `yaml:"target"`
	Up     mgl32.Vec3 `yaml:"up"`
	Near   float32    `yaml:"near"`
	Far    float32    `yaml:"far"`

	// Rendering.
	DOF         mgl32.Vec3 `yaml:"dof"`  // focus distance, focus range, max defocus
	Fade        mgl32.Vec3 `yaml:"fade"` // far fade start, far fade half distance, near fade distance
	Threshold   float32    `yaml:"bloom_threshold"`
	BlurPasses  int        `yaml:"blur_passes"`
	DepthLayers int        `yaml:"depth_layers"`
	ClearColor  [4]float32 `yaml:"clear_color"`

	// Timing.
	MaxFrameDelta time.Duration `yaml:"max_frame_delta"`
	FadeIn        time.Duration `yaml:"fade_in"`

	// Debug turns invalid lifecycle transitions into panics and enables debug logging.
	Debug bool `yaml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Particles:  1600,
		HalfExtent: mgl32.Vec3{20, 20, 20},
		FitAspect:  true,

		Eye:    mgl32.Vec3{0, 0, 60},
		Target: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		Near:   1,
		Far:    300,

		DOF:         mgl32.Vec3{60, 20, 2},
		Fade:        mgl32.Vec3{80, 20, 5},
		Threshold:   0.7,
		BlurPasses:  2,
		DepthLayers: 0,

		MaxFrameDelta: 100 * time.Millisecond,
		FadeIn:        1500 * time.Millisecond,
	}
}

// LoadConfig reads YAML from path over DefaultConfig and validates the result.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}

// DecodeConfig is LoadConfig over a reader.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Particles <= 0:
		return bad("particles must be positive, got %d", c.Particles)
	case c.HalfExtent.X() <= 0 || c.HalfExtent.Y() <= 0 || c.HalfExtent.Z() <= 0:
		return bad("half_extent must be positive, got %v", c.HalfExtent)
	case c.Near <= 0 || c.Far <= c.Near:
		return bad("need 0 < near < far, got near=%v far=%v", c.Near, c.Far)
	case c.BlurPasses < 0:
		return bad("blur_passes must not be negative")
	case c.DepthLayers < 0:
		return bad("depth_layers must not be negative")
	case c.MaxFrameDelta <= 0:
		return bad("max_frame_delta must be positive")
	case c.FadeIn < 0:
		return bad("fade_in must not be negative")
	case c.Eye.Len() < 1e-6:
		return bad("eye must not sit at the volume center")
	}
	if _, err := core.LookAt(c.Eye, c.Target, c.Up); err != nil {
		return fmt.Errorf("%w: camera: %w", ErrInvalidConfig, err)
	}
	return nil
}
