// Package clock abstracts the time source used by counter state so that
// window expiry and idle-entry cleanup can be tested deterministically,
// without sleeps.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by time.Now.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Manual is a controllable Clock for tests. Time only moves when the test
// advances it, which makes window resets and grace periods reproducible.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative durations are ignored to
// preserve monotonicity.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to an absolute instant. Prefer Advance in tests;
// Set can move time backward.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
