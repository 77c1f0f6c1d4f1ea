package petalfall

import (
	"time"
)

// Clock measures frame deltas. Deltas are clamped to MaxDelta so a host stall cannot
// push the simulation forward in one large step.
type Clock struct {
	MaxDelta time.Duration
	Elapsed  time.Duration
	Dt       time.Duration

	now  func() time.Time
	last time.Time
}

func NewClock(maxDelta time.Duration) *Clock {
	return &Clock{MaxDelta: maxDelta, now: time.Now}
}

// Reset forgets the previous tick; the next Tick yields a zero delta.
func (c *Clock) Reset() {
	c.last = time.Time{}
}

// Tick measures the wall time since the previous Tick and advances by it.
func (c *Clock) Tick() time.Duration {
	now := c.now()
	var dt time.Duration
	if !c.last.IsZero() {
		dt = now.Sub(c.last)
	}
	c.last = now
	return c.Advance(dt)
}

// Advance moves the clock by dt after clamping it to [0, MaxDelta].
func (c *Clock) Advance(dt time.Duration) time.Duration {
	dt = max(dt, 0)
	if c.MaxDelta > 0 {
		dt = min(dt, c.MaxDelta)
	}
	c.Dt = dt
	c.Elapsed += dt
	return dt
}
