package ratelimiter

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindhaven/gate/pkg/clock"
)

// Budget defines the request allowance for one bucket.
type Budget struct {
	Limit  int           // maximum admitted requests per window
	Window time.Duration // window duration
}

// counterKey identifies a window counter. Keys are unique per
// (client, bucket) pair; no ordering is needed.
type counterKey struct {
	client string
	bucket string
}

// windowCounter tracks admissions for one key within the current window.
// It is replaced wholesale once the window expires.
type windowCounter struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window rate limiter with per-bucket budgets.
// All state is owned by the instance; create isolated limiters in tests.
type Limiter struct {
	mu       sync.Mutex
	counters map[counterKey]*windowCounter
	budgets  map[string]Budget
	clock    clock.Clock
	logger   *slog.Logger

	countersCreated atomic.Int64
	countersRemoved atomic.Int64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(clk clock.Clock) Option {
	return func(l *Limiter) {
		if clk != nil {
			l.clock = clk
		}
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Limiter with the given bucket budgets.
func New(budgets map[string]Budget, opts ...Option) (*Limiter, error) {
	if len(budgets) == 0 {
		return nil, ErrNoBudgets
	}
	for name, b := range budgets {
		if b.Limit <= 0 || b.Window <= 0 {
			return nil, fmt.Errorf("%w: bucket %q has limit=%d window=%s", ErrInvalidBudget, name, b.Limit, b.Window)
		}
	}

	l := &Limiter{
		counters: make(map[counterKey]*windowCounter),
		budgets:  budgets,
		clock:    clock.System(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Allow records one request for the key in the given bucket and reports
// whether it fits the budget.
//
// The lookup, decision, and increment happen under a single mutex hold:
// two concurrent requests can never both observe "under limit" and both
// be admitted past it.
func (l *Limiter) Allow(key, bucket string) (Result, error) {
	budget, ok := l.budgets[bucket]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	ck := counterKey{client: key, bucket: bucket}

	c, exists := l.counters[ck]
	if !exists || now.After(c.resetAt) {
		// Fresh window anchored at the first request.
		l.counters[ck] = &windowCounter{count: 1, resetAt: now.Add(budget.Window)}
		if !exists {
			l.countersCreated.Add(1)
		}
		return Result{
			Allowed:   true,
			Limit:     budget.Limit,
			Remaining: budget.Limit - 1,
			ResetAt:   now.Add(budget.Window),
			now:       now,
		}, nil
	}

	if c.count >= budget.Limit {
		return Result{
			Allowed:   false,
			Limit:     budget.Limit,
			Remaining: 0,
			ResetAt:   c.resetAt,
			now:       now,
		}, nil
	}

	c.count++
	return Result{
		Allowed:   true,
		Limit:     budget.Limit,
		Remaining: budget.Limit - c.count,
		ResetAt:   c.resetAt,
		now:       now,
	}, nil
}

// Reset drops the counter for a key/bucket pair. Administrative override;
// the next request starts a fresh window.
func (l *Limiter) Reset(key, bucket string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, counterKey{client: key, bucket: bucket})
}

// Sweep removes every counter whose window has fully elapsed and returns
// the number of entries removed. Called by the cleanup scheduler.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ck, c := range l.counters {
		if !c.resetAt.After(now) {
			delete(l.counters, ck)
			removed++
		}
	}

	if removed > 0 {
		l.countersRemoved.Add(int64(removed))
		l.logger.Debug("swept expired window counters", slog.Int("removed", removed))
	}

	return removed
}

// Len returns the current number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// Stats reports cumulative counter churn for observability.
type Stats struct {
	CountersCreated int64
	CountersRemoved int64
	ActiveCounters  int
}

// Stats returns current limiter statistics. Safe to call at any time.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	active := len(l.counters)
	l.mu.Unlock()

	return Stats{
		CountersCreated: l.countersCreated.Load(),
		CountersRemoved: l.countersRemoved.Load(),
		ActiveCounters:  active,
	}
}
