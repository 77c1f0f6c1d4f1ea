package petalfall

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// fader eases the composited layer's opacity from 0 to 1 after Start.
type fader struct {
	duration float32
	tween    *gween.Tween
	value    float32
}

func newFader(d time.Duration) *fader {
	f := &fader{duration: float32(d.Seconds())}
	f.restart()
	return f
}

func (f *fader) restart() {
	if f.duration <= 0 {
		f.tween, f.value = nil, 1
		return
	}
	f.tween = gween.New(0, 1, f.duration, ease.OutQuad)
	f.value = 0
}

// update advances the tween and returns the current opacity.
func (f *fader) update(dt float32) float32 {
	if f.tween == nil {
		return f.value
	}
	v, done := f.tween.Update(dt)
	f.value = min(max(v, 0), 1)
	if done {
		f.tween, f.value = nil, 1
	}
	return f.value
}
