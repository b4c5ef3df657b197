package coupling

import (
	"sync"
	"time"
)

// Clock supplies the time of each tick. Advance moves the clock forward by
// one tick and reports how much time the tick covered.
type Clock interface {
	Now() time.Time
	Advance() (now time.Time, elapsed time.Duration)
}

// WallClock follows real time. The first tick covers Fallback.
type WallClock struct {
	Fallback time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewWallClock returns a clock reading time.Now.
func NewWallClock(fallback time.Duration) *WallClock {
	if fallback <= 0 {
		fallback = time.Second
	}
	return &WallClock{Fallback: fallback, now: time.Now}
}

func (c *WallClock) Now() time.Time { return c.now() }

func (c *WallClock) Advance() (time.Time, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	elapsed := c.Fallback
	if !c.last.IsZero() {
		elapsed = now.Sub(c.last)
	}
	c.last = now
	return now, elapsed
}

// SteppedClock is a simulated clock that moves by a fixed step per tick,
// independent of how fast ticks are executed.
type SteppedClock struct {
	Start time.Time
	Step  time.Duration

	mu      sync.RWMutex
	current time.Time
}

// NewSteppedClock returns a clock positioned at start.
func NewSteppedClock(start time.Time, step time.Duration) *SteppedClock {
	if step <= 0 {
		step = time.Second
	}
	return &SteppedClock{Start: start, Step: step, current: start}
}

func (c *SteppedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *SteppedClock) Advance() (time.Time, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(c.Step)
	return c.current, c.Step
}
