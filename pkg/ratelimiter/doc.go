// Package ratelimiter implements fixed-window request counting keyed by
// (client key, bucket).
//
// Each bucket ("api", "chat", ...) carries its own budget: a maximum
// request count and a window duration. The first request for a key starts
// a fresh window anchored at that instant; requests past the budget are
// rejected until the window expires, at which point the counter is
// replaced wholesale.
//
// Fixed windows were chosen over a sliding log for O(1) memory and O(1)
// checks per key. The trade-off is the boundary artifact: a client can fit
// up to twice the budget into a short span straddling a window edge. That
// behavior is intentional and covered by tests.
//
// Counters live in process memory. There is no cross-instance
// synchronization: in a horizontally scaled deployment each instance
// enforces its own budget. A shared backend (e.g. Redis) could sit behind
// the same surface, but a network hop per admission check changes both
// latency and failure semantics, so it is deliberately not done here.
//
// Usage:
//
//	limiter, err := ratelimiter.New(map[string]ratelimiter.Budget{
//		"api":  {Limit: 60, Window: time.Minute},
//		"chat": {Limit: 10, Window: time.Minute},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := limiter.Allow("203.0.113.7", "api")
//	if err != nil {
//		// unknown bucket: a programming error, not client misbehavior
//	}
//	if !result.Allowed {
//		// reject with result.RetryAfter()
//	}
package ratelimiter
