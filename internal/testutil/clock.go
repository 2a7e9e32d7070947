package testutil

import (
	"sync"
	"time"
)

// Epoch is the first time a StepClock returns by default.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock for tests. Every call to Now
// returns a time one step later than the previous call.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewStepClock creates a clock whose first Now is start. A zero start means
// Epoch; a non-positive step means one second.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = Epoch
	}
	if step <= 0 {
		step = time.Second
	}
	return &StepClock{start: start.UTC(), step: step}
}

// Now returns the next time and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Peek returns the time the next Now will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
