package ratelimiter

import "time"

// Result describes the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int       // bucket budget
	Remaining int       // requests left in the current window, floored at 0
	ResetAt   time.Time // when the current window expires

	now time.Time // check time, captured for RetryAfter
}

// RetryAfter returns how long a rejected client should wait before
// retrying, rounded up to a whole second and never less than one second.
// Returns 0 for allowed results.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}

	wait := r.ResetAt.Sub(r.now)
	if wait <= 0 {
		return time.Second
	}

	secs := (wait + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}

// RetryAfterSeconds is RetryAfter expressed in whole seconds, matching the
// Retry-After header and the error envelope detail.
func (r Result) RetryAfterSeconds() int {
	return int(r.RetryAfter() / time.Second)
}
