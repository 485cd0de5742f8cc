package middleware

import (
	"github.com/google/uuid"

	"github.com/mindhaven/gate/core/handler"
)

// RequestIDHeader is the response header carrying the correlation id.
const RequestIDHeader = "X-Request-ID"

// requestIDContextKey keys the request id in the request context.
type requestIDContextKey struct{}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Generator creates new request IDs (default: UUID v4)
	Generator func() string
	// UseExisting accepts an incoming X-Request-ID instead of generating one
	UseExisting bool
}

// RequestID creates a request ID middleware with default configuration.
func RequestID[C handler.Context]() handler.Middleware[C] {
	return RequestIDWithConfig[C](RequestIDConfig{})
}

// RequestIDWithConfig assigns a correlation id to each request, stores it
// in context, and stamps it on the response header. The header is set
// before the inner response renders, so error envelopes built downstream
// can read it back.
func RequestIDWithConfig[C handler.Context](cfg RequestIDConfig) handler.Middleware[C] {
	if cfg.Generator == nil {
		cfg.Generator = func() string {
			return uuid.New().String()
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			var requestID string
			if cfg.UseExisting {
				requestID = ctx.Request().Header.Get(RequestIDHeader)
			}
			if requestID == "" {
				requestID = cfg.Generator()
			}

			ctx.SetValue(requestIDContextKey{}, requestID)
			ctx.ResponseWriter().Header().Set(RequestIDHeader, requestID)

			return next(ctx)
		}
	}
}

// GetRequestID retrieves the request id from the request context.
func GetRequestID(ctx handler.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok
}

// RequestIDFromContext returns the request id or an empty string. For
// call sites building error envelopes.
func RequestIDFromContext(ctx handler.Context) string {
	id, _ := GetRequestID(ctx)
	return id
}
