// Package inflight bounds the number of concurrently open streaming
// requests per client key.
//
// Rate limiting counts requests over time; this gate counts requests that
// are open right now. A streaming chat response holds its slot for the
// whole generation, so the two protections are independent: a client well
// under its request budget can still exhaust the server by leaving many
// streams open.
package inflight

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mindhaven/gate/pkg/clock"
)

// slot tracks open streams for one client key.
type slot struct {
	count       int
	lastUpdated time.Time
}

// Gate is a per-key inflight counter. All state is owned by the instance.
type Gate struct {
	mu     sync.Mutex
	slots  map[string]*slot
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(clk clock.Clock) Option {
	return func(g *Gate) {
		if clk != nil {
			g.clock = clk
		}
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates an empty Gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		slots:  make(map[string]*slot),
		clock:  clock.System(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// TryAcquire claims a slot for the key if fewer than max are open.
// The read and increment happen under one mutex hold, so concurrent
// callers can never both slip past the cap. A rejected call mutates
// nothing. Every successful acquire must be paired with exactly one
// Release.
func (g *Gate) TryAcquire(key string, max int) bool {
	if max <= 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	s, ok := g.slots[key]
	if !ok {
		g.slots[key] = &slot{count: 1, lastUpdated: now}
		return true
	}

	if s.count >= max {
		return false
	}

	s.count++
	s.lastUpdated = now
	return true
}

// Release returns a slot for the key. The count is floored at zero so a
// spurious release can never corrupt the gate, and lastUpdated is stamped
// so idle entries become eligible for cleanup.
func (g *Gate) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[key]
	if !ok {
		return
	}

	if s.count > 0 {
		s.count--
	}
	s.lastUpdated = g.clock.Now()
}

// AtCapacity reports whether the key already holds max or more slots,
// without mutating anything. Used as a cheap pre-check before doing auth
// work for a request that would be rejected anyway.
func (g *Gate) AtCapacity(key string, max int) bool {
	if max <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[key]
	return ok && s.count >= max
}

// Inflight returns the number of open slots for the key.
func (g *Gate) Inflight(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.slots[key]; ok {
		return s.count
	}
	return 0
}

// Sweep removes entries with no open slots that have been idle for longer
// than grace, and returns the number removed. Entries with open slots are
// never touched, regardless of age. The grace period avoids deleting a
// slot that is about to be reused.
func (g *Gate) Sweep(now time.Time, grace time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, s := range g.slots {
		if s.count <= 0 && now.Sub(s.lastUpdated) > grace {
			delete(g.slots, key)
			removed++
		}
	}

	if removed > 0 {
		g.logger.Debug("swept idle inflight entries", slog.Int("removed", removed))
	}

	return removed
}

// Len returns the current number of tracked keys.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}
