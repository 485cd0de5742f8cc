// Package admission gates every API call behind authentication, a
// per-client fixed-window rate limiter, and, for streaming chat
// responses, a per-client concurrency cap. It also owns the background
// janitor that reclaims stale counter state.
//
// Two entry points wrap handlers:
//
//   - Standard: request id → client key → auth → rate limit ("api"
//     bucket) → handler.
//   - Streaming: a cheap saturation pre-check → request id → client key →
//     auth → rate limit ("chat" bucket) → concurrency slot acquire →
//     handler, with the slot released on every exit path.
//
// Ordering is deliberate. Authentication runs before any counter is
// touched so unauthenticated traffic never consumes quota, and the
// streaming pre-check runs before authentication so a saturated client
// costs no credential validation work.
//
// Rejections are fail-fast: over-budget requests get an immediate 429
// with a retry hint instead of queueing. All counter state is per
// process; see pkg/ratelimiter for the scaling caveat.
//
// A Service owns all mutable state. Construct one per process (or per
// test) and run its janitor under the process lifecycle:
//
//	svc, err := admission.New[*router.Context](cfg, validator)
//	if err != nil {
//		log.Fatal(err)
//	}
//	go svc.Run(ctx)()
//
//	r.Get("/api/sessions", svc.Standard(listSessions))
//	r.Get("/api/chat/stream", svc.Streaming(streamChat))
package admission
