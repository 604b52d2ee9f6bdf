package emulator

import (
	"sync"
	"time"
)

// Clock measures the elapsed time stamped on channel-data frames.
type Clock struct {
	mu    sync.Mutex
	now   func() time.Time
	start time.Time
}

// NewClock returns a clock started at now(). A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, start: now()}
}

// Reset restarts the clock.
func (c *Clock) Reset() {
	c.mu.Lock()
	c.start = c.now()
	c.mu.Unlock()
}

// Elapsed returns the time since the last reset.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.start)
}

// ElapsedMs returns Elapsed in whole milliseconds.
func (c *Clock) ElapsedMs() uint32 {
	return uint32(c.Elapsed().Milliseconds())
}
