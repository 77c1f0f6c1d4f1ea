package petalfall

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gekko3d/petalfall/petalrt/rt/gpu"
	"github.com/gekko3d/petalfall/petalrt/rt/shaders"

	"github.com/google/uuid"
)

// ErrInvalidState is returned for calls that are not legal in the engine's current
// lifecycle state. With Config.Debug set these calls panic instead.
var ErrInvalidState = errors.New("petalfall: invalid lifecycle state")

type State uint8

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Stats is a snapshot of the engine's frame counters.
type Stats struct {
	State     State
	Frames    uint64
	Skipped   uint64
	LastDelta time.Duration
	Width     int
	Height    int
	Particles int
	Bloom     bool
}

// Engine renders the falling-petal layer into a host surface. The host owns the frame
// loop: it calls Frame (or Step) once per redraw while Running reports true.
//
// Frame, Step, Resize and Destroy are mutually exclusive. GPU calls are issued on the
// calling goroutine, which must be the thread owning the device's context.
type Engine struct {
	ID uuid.UUID

	cfg     Config
	open    gpu.Opener
	log     Logger
	sources shaders.Sources

	mu       sync.Mutex
	state    State
	dev      gpu.Device
	renderer *gpu.Renderer
	scene    *Scene
	clock    *Clock
	fade     *fader
	width    int
	height   int
	skipping bool
	stats    Stats
}

// NewEngine builds an uninitialized engine. A nil logger discards output.
func NewEngine(cfg Config, open gpu.Opener, logger Logger) *Engine {
	if logger == nil {
		logger = NewNopLogger()
	}
	id := uuid.New()
	return &Engine{
		ID:      id,
		cfg:     cfg,
		open:    open,
		log:     logger.Tagged("engine "+id.String()[:8]),
		sources: shaders.Default(),
		clock:   NewClock(cfg.MaxFrameDelta),
		fade:    newFader(cfg.FadeIn),
	}
}

func (e *Engine) invalid(op string) error {
	err := fmt.Errorf("%w: %s while %s", ErrInvalidState, op, e.state)
	e.log.Errorf("%v", err)
	if e.cfg.Debug {
		panic(err.Error())
	}
	return err
}

// Init acquires a device for surface and builds every GPU resource. It returns false,
// leaving the engine Uninitialized and nothing allocated, when the effect cannot run.
func (e *Engine) Init(surface gpu.Surface) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUninitialized {
		_ = e.invalid("init")
		return false
	}
	if e.open == nil || surface == nil {
		e.log.Warnf("no GPU opener or surface, effect disabled")
		return false
	}

	if err := e.sources.Validate(); err != nil {
		e.log.Errorf("%v", err)
		return false
	}

	w, h := surface.FramebufferSize()
	w, h = max(w, 1), max(h, 1)
	scene, err := NewScene(e.cfg, w, h)
	if err != nil {
		e.log.Errorf("scene: %v", err)
		return false
	}

	dev, err := e.open(surface)
	if err != nil {
		e.log.Warnf("GPU context unavailable, effect disabled: %v", err)
		return false
	}

	renderer := gpu.NewRenderer(dev, e.sources, gpu.Settings{
		DOF:         e.cfg.DOF,
		Fade:        e.cfg.Fade,
		Threshold:   e.cfg.Threshold,
		BlurPasses:  e.cfg.BlurPasses,
		DepthLayers: e.cfg.DepthLayers,
		ClearColor:  e.cfg.ClearColor,
	}, e.log)
	if err := renderer.Init(w, h); err != nil {
		e.log.Warnf("GPU resources unavailable, effect disabled: %v", err)
		renderer.Release()
		dev.Close()
		return false
	}
	if n := len(renderer.Failures); n > 0 {
		e.log.Warnf("%d shader programs failed, running degraded (bloom=%v particles=%v)",
			n, renderer.BloomAvailable(), renderer.ParticlesAvailable())
	}

	e.dev = dev
	e.renderer = renderer
	e.scene = scene
	e.width, e.height = w, h
	e.clock.Reset()
	e.fade.restart()
	e.state = StateRunning

	e.log.Infof("initialized %dx%d, %d particles, fovY %.2f", w, h, scene.Field.Len(), scene.Projection.FovY)
	return true
}

// Start resumes the frame loop and fades the layer back in.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		return nil
	case StateStopped:
		e.state = StateRunning
		e.clock.Reset()
		e.fade.restart()
		return nil
	default:
		return e.invalid("start")
	}
}

// Stop pauses the frame loop. Resources are kept.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateStopped:
		return nil
	case StateRunning:
		e.state = StateStopped
		return nil
	default:
		return e.invalid("stop")
	}
}

// Running reports whether the host should schedule another frame.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Resize recreates every render target at width x height and refits the projection
// and the particle volume. A zero dimension (minimized window) is ignored.
func (e *Engine) Resize(width, height int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning && e.state != StateStopped {
		return e.invalid("resize")
	}
	if width <= 0 || height <= 0 {
		e.log.Debugf("ignoring resize to %dx%d", width, height)
		return nil
	}

	e.width, e.height = width, height
	e.scene.SetViewport(width, height)

	if err := e.renderer.Resize(width, height); err != nil {
		e.log.Warnf("resize %dx%d: %v", width, height, err)
		return err
	}
	e.log.Debugf("resized to %dx%d", width, height)
	return nil
}

// ResizeScaled converts logical dimensions to framebuffer pixels before resizing.
func (e *Engine) ResizeScaled(width, height int, pixelRatio float64) error {
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}
	return e.Resize(int(math.Floor(float64(width)*pixelRatio)), int(math.Floor(float64(height)*pixelRatio)))
}

// Frame advances by the wall time since the previous frame. It is a no-op while Stopped.
func (e *Engine) Frame() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkFrame(); err != nil || e.state != StateRunning {
		return err
	}
	return e.step(e.clock.Tick())
}

// Step advances by an explicit delta. It is a no-op while Stopped.
func (e *Engine) Step(dt time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkFrame(); err != nil || e.state != StateRunning {
		return err
	}
	return e.step(e.clock.Advance(dt))
}

func (e *Engine) checkFrame() error {
	if e.state == StateUninitialized || e.state == StateDestroyed {
		return e.invalid("frame")
	}
	return nil
}

func (e *Engine) step(dt time.Duration) error {
	secs := float32(dt.Seconds())

	packed := e.scene.Advance(secs)

	err := e.renderer.Render(gpu.Frame{
		View:       e.scene.Camera.View,
		Projection: e.scene.Projection.Matrix,
		Elapsed:    float32(e.clock.Elapsed.Seconds()),
		Delta:      secs,
		Particles:  packed,
		Count:      e.scene.Field.Len(),
		LayerStep:  e.scene.LayerStep(),
		Opacity:    e.fade.update(secs),
	})
	e.stats.LastDelta = dt
	if err != nil {
		e.stats.Skipped++
		if !e.skipping {
			e.log.Warnf("skipping frames: %v", err)
		}
		e.skipping = true
		return nil
	}
	if e.skipping {
		e.log.Infof("rendering resumed after %d skipped frames", e.stats.Skipped)
		e.skipping = false
	}
	e.stats.Frames++
	return nil
}

// Stats returns the current frame counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stats
	s.State = e.state
	s.Width, s.Height = e.width, e.height
	if e.scene != nil {
		s.Particles = e.scene.Field.Len()
	}
	if e.renderer != nil {
		s.Bloom = e.renderer.BloomAvailable()
	}
	return s
}

// Destroy releases buffers, programs and render targets, in that order, then the
// device. It is legal once; an engine that never initialized simply becomes Destroyed.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateDestroyed:
		return e.invalid("destroy")
	case StateUninitialized:
		e.state = StateDestroyed
		return nil
	}

	e.renderer.Release()
	e.dev.Close()
	e.renderer, e.dev = nil, nil
	e.state = StateDestroyed
	e.log.Infof("destroyed after %d frames (%d skipped)", e.stats.Frames, e.stats.Skipped)
	return nil
}
