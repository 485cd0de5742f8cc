package admission

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/core/response"
	"github.com/mindhaven/gate/core/router"
	"github.com/mindhaven/gate/middleware"
	"github.com/mindhaven/gate/pkg/clock"
	"github.com/mindhaven/gate/pkg/inflight"
	"github.com/mindhaven/gate/pkg/ratelimiter"
)

// Response headers set by the pipeline.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
	HeaderResponseTime       = "X-Response-Time"
)

// ErrNilValidator is returned by New when no credential validator is
// provided.
var ErrNilValidator = errors.New("credential validator is required")

// Service owns the admission pipeline state: the rate limiter, the
// streaming concurrency gate, and the janitor reclaiming both.
type Service[C handler.Context] struct {
	cfg       Config
	limiter   *ratelimiter.Limiter
	gate      *inflight.Gate
	validator middleware.CredentialValidator
	clock     clock.Clock
	logger    *slog.Logger

	// janitor lifecycle
	mu     sync.Mutex
	cancel func()
	wg     sync.WaitGroup
}

// Option configures a Service.
type Option[C handler.Context] func(*Service[C])

// WithClock sets the time source shared by the limiter, the gate, and the
// janitor. Defaults to the system clock.
func WithClock[C handler.Context](clk clock.Clock) Option[C] {
	return func(s *Service[C]) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithLogger sets the logger for pipeline decisions and janitor activity.
func WithLogger[C handler.Context](logger *slog.Logger) Option[C] {
	return func(s *Service[C]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service from the given configuration and credential
// validator.
func New[C handler.Context](cfg Config, validator middleware.CredentialValidator, opts ...Option[C]) (*Service[C], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if validator == nil {
		return nil, ErrNilValidator
	}

	s := &Service[C]{
		cfg:       cfg,
		validator: validator,
		clock:     clock.System(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	limiter, err := ratelimiter.New(cfg.budgets(),
		ratelimiter.WithClock(s.clock),
		ratelimiter.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	s.limiter = limiter
	s.gate = inflight.New(
		inflight.WithClock(s.clock),
		inflight.WithLogger(s.logger),
	)

	if cfg.bypassActive() {
		s.logger.Warn("admission limits bypassed",
			slog.String("environment", cfg.Environment),
		)
	}

	return s, nil
}

// Stats reports counter state for the health endpoint.
type ServiceStats struct {
	RateLimiter  ratelimiter.Stats
	InflightKeys int
}

// Stats returns a snapshot of the admission counters.
func (s *Service[C]) Stats() ServiceStats {
	return ServiceStats{
		RateLimiter:  s.limiter.Stats(),
		InflightKeys: s.gate.Len(),
	}
}

// ResetClient drops the rate-limit counter for one client and bucket.
// Administrative override for support tooling.
func (s *Service[C]) ResetClient(key, bucket string) {
	s.limiter.Reset(key, bucket)
}

// Standard wraps a plain JSON handler with the full admission chain:
// request id → client key → auth → rate limit ("api" bucket) → handler,
// with a panic boundary around the handler so a crash still produces the
// standard 500 envelope with all pipeline headers attached.
func (s *Service[C]) Standard(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
	return compose(next,
		s.timing(),
		middleware.RequestID[C](),
		middleware.ClientIP[C](),
		s.auth(),
		s.rateLimit(BucketAPI),
		s.recovery(),
	)
}

// Streaming wraps a streaming handler (SSE or WebSocket) with the
// admission chain plus the concurrency gate. The slot is held for the
// whole render, which is where the stream actually runs, and released
// exactly once on every exit path, panics included.
//
// A read-only saturation pre-check runs before authentication: a client
// already at its stream cap is turned away without credential work and
// without touching any counter.
func (s *Service[C]) Streaming(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
	return compose(next,
		s.timing(),
		middleware.RequestID[C](),
		middleware.ClientIP[C](),
		s.saturationCheck(),
		s.auth(),
		s.rateLimit(BucketChat),
		s.concurrency(),
	)
}

// compose wraps next with the middlewares, first listed outermost.
func compose[C handler.Context](next handler.HandlerFunc[C], mws ...handler.Middleware[C]) handler.HandlerFunc[C] {
	h := next
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// timing stamps X-Response-Time on the response, covering the handler
// call and every rejection path below it in the chain.
func (s *Service[C]) timing() handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			start := s.clock.Now()
			resp := next(ctx)
			if resp == nil {
				return nil
			}
			return func(w http.ResponseWriter, r *http.Request) error {
				elapsed := s.clock.Now().Sub(start)
				w.Header().Set(HeaderResponseTime, strconv.FormatInt(elapsed.Milliseconds(), 10)+"ms")
				return resp(w, r)
			}
		}
	}
}

func (s *Service[C]) auth() handler.Middleware[C] {
	return middleware.Auth[C](middleware.AuthConfig{
		Validator: s.validator,
		ErrorHandler: func(ctx handler.Context, err error) handler.Response {
			s.logger.Info("authentication rejected",
				slog.String("reason", err.Error()),
				slog.String("client_key", middleware.ClientKeyFromContext(ctx)),
				slog.String("request_id", middleware.RequestIDFromContext(ctx)),
			)
			return response.Envelope(response.ErrAuthenticationFailed, middleware.RequestIDFromContext(ctx))
		},
	})
}

// rateLimit admits or rejects the request against the bucket budget and
// decorates the response with the X-RateLimit-* headers either way.
func (s *Service[C]) rateLimit(bucket string) handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if s.cfg.bypassActive() {
				return next(ctx)
			}

			key := middleware.ClientKeyFromContext(ctx)
			result, err := s.limiter.Allow(key, bucket)
			if err != nil {
				return response.Error(err)
			}

			if !result.Allowed {
				s.logger.Warn("rate limit exceeded",
					slog.String("client_key", key),
					slog.String("bucket", bucket),
					slog.Int("retry_after_seconds", result.RetryAfterSeconds()),
				)
				httpErr := response.ErrRateLimitExceeded.WithDetails(map[string]any{
					"retryAfterSeconds": result.RetryAfterSeconds(),
				})
				return rateHeaders(response.Envelope(httpErr, middleware.RequestIDFromContext(ctx)), result)
			}

			return rateHeaders(next(ctx), result)
		}
	}
}

// rateHeaders decorates a response with the rate-limit headers, and with
// Retry-After on rejections.
func rateHeaders(resp handler.Response, result ratelimiter.Result) handler.Response {
	if resp == nil {
		return nil
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		h := w.Header()
		h.Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
		h.Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
		h.Set(HeaderRateLimitReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
		if !result.Allowed {
			h.Set(HeaderRetryAfter, strconv.Itoa(result.RetryAfterSeconds()))
		}
		return resp(w, r)
	}
}

// saturationCheck turns away clients already at their stream cap before
// any auth work. Read-only: no counter is touched, so the rejection does
// not consume rate budget either.
func (s *Service[C]) saturationCheck() handler.Middleware[C] {
	max := s.cfg.MaxConcurrentStreams
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if s.cfg.bypassActive() {
				return next(ctx)
			}

			key := middleware.ClientKeyFromContext(ctx)
			if s.gate.AtCapacity(key, max) {
				s.logger.Warn("stream saturation pre-check rejected",
					slog.String("client_key", key),
					slog.Int("max_streams", max),
				)
				return s.concurrencyRejection(ctx)
			}
			return next(ctx)
		}
	}
}

// concurrency claims a stream slot for the duration of the handler call
// and the response render. Release happens exactly once regardless of how
// either phase exits.
func (s *Service[C]) concurrency() handler.Middleware[C] {
	max := s.cfg.MaxConcurrentStreams
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if s.cfg.bypassActive() {
				return next(ctx)
			}

			key := middleware.ClientKeyFromContext(ctx)
			if !s.gate.TryAcquire(key, max) {
				// Lost the race between the pre-check and here.
				s.logger.Warn("concurrency limit exceeded",
					slog.String("client_key", key),
					slog.Int("max_streams", max),
				)
				return s.concurrencyRejection(ctx)
			}

			var once sync.Once
			release := func() {
				once.Do(func() { s.gate.Release(key) })
			}

			resp, panicErr := s.callHandler(next, ctx)
			if panicErr != nil {
				release()
				s.logger.Error("recovered panic in streaming handler",
					slog.Any("value", panicErr.Value),
					slog.String("client_key", key),
					slog.String("stack", string(panicErr.Stack)),
				)
				return response.Envelope(response.ErrInternal, middleware.RequestIDFromContext(ctx))
			}
			if resp == nil {
				release()
				return nil
			}

			// The stream itself runs inside the render; the slot stays held
			// until it returns.
			return func(w http.ResponseWriter, r *http.Request) (err error) {
				defer release()
				defer func() {
					if p := recover(); p != nil {
						err = &router.PanicError{Value: p, Stack: debug.Stack()}
					}
				}()
				return resp(w, r)
			}
		}
	}
}

func (s *Service[C]) concurrencyRejection(ctx C) handler.Response {
	hint := s.cfg.retryHint()
	httpErr := response.ErrConcurrencyExceeded.WithDetails(map[string]any{
		"retryAfterSeconds": int(hint / time.Second),
	})
	resp := response.Envelope(httpErr, middleware.RequestIDFromContext(ctx))
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(int(hint/time.Second)))
		return resp(w, r)
	}
}

// recovery converts a handler panic into the sanitized 500 envelope while
// keeping the decorations added by the outer stages.
func (s *Service[C]) recovery() handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			resp, panicErr := s.callHandler(next, ctx)
			if panicErr != nil {
				s.logger.Error("recovered panic in handler",
					slog.Any("value", panicErr.Value),
					slog.String("request_id", middleware.RequestIDFromContext(ctx)),
					slog.String("stack", string(panicErr.Stack)),
				)
				return response.Envelope(response.ErrInternal, middleware.RequestIDFromContext(ctx))
			}
			return resp
		}
	}
}

// callHandler invokes next with a panic boundary.
func (s *Service[C]) callHandler(next handler.HandlerFunc[C], ctx C) (resp handler.Response, panicErr *router.PanicError) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			panicErr = &router.PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return next(ctx), nil
}
