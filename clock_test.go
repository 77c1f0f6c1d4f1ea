package petalfall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockAdvanceClamps(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{16 * time.Millisecond, 16 * time.Millisecond},
		{100 * time.Millisecond, 100 * time.Millisecond},
		{3 * time.Second, 100 * time.Millisecond},
		{-time.Millisecond, 0},
	}
	for _, tc := range tests {
		c := NewClock(100 * time.Millisecond)
		assert.Equal(t, tc.want, c.Advance(tc.in), "Advance(%v)", tc.in)
		assert.Equal(t, tc.want, c.Dt)
		assert.Equal(t, tc.want, c.Elapsed)
	}
}

func TestClockTick(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewClock(100 * time.Millisecond)
	c.now = func() time.Time { return now }

	assert.Equal(t, time.Duration(0), c.Tick(), "first tick has no reference")

	now = now.Add(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, c.Tick())

	// A stall, e.g. a hidden window.
	now = now.Add(10 * time.Second)
	assert.Equal(t, 100*time.Millisecond, c.Tick())
	assert.Equal(t, 120*time.Millisecond, c.Elapsed)

	c.Reset()
	now = now.Add(time.Second)
	assert.Equal(t, time.Duration(0), c.Tick())
}
