package middleware

import (
	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/pkg/clientip"
)

// clientIPContextKey keys the client key in the request context.
type clientIPContextKey struct{}

// ClientIP derives the client key from the request and stores it in
// context for the rate-limit and concurrency stages.
func ClientIP[C handler.Context]() handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			ctx.SetValue(clientIPContextKey{}, clientip.GetIP(ctx.Request()))
			return next(ctx)
		}
	}
}

// GetClientIP retrieves the client key from the request context.
func GetClientIP(ctx handler.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPContextKey{}).(string)
	return ip, ok
}

// ClientKeyFromContext returns the stored client key, falling back to
// deriving it directly from the request. The fallback keeps counter keys
// stable even if a wrapper is used outside the standard chain.
func ClientKeyFromContext(ctx handler.Context) string {
	if ip, ok := GetClientIP(ctx); ok {
		return ip
	}
	return clientip.GetIP(ctx.Request())
}
