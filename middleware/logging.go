package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/core/logger"
)

// statusReporter is implemented by the router's response writer.
type statusReporter interface {
	Status() int
}

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Logger is the slog logger to use (default: slog.Default())
	Logger *slog.Logger
	// Component tags every line (default: "http")
	Component string
}

// Logging creates a request logging middleware with default
// configuration.
func Logging[C handler.Context]() handler.Middleware[C] {
	return LoggingWithConfig[C](LoggingConfig{})
}

// LoggingWithConfig logs one line per request after the response has
// rendered, including status, duration, request id, and client key.
func LoggingWithConfig[C handler.Context](cfg LoggingConfig) handler.Middleware[C] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Component == "" {
		cfg.Component = "http"
	}
	log := cfg.Logger.With(logger.Component(cfg.Component))

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			start := time.Now()
			resp := next(ctx)

			if resp == nil {
				return nil
			}

			return func(w http.ResponseWriter, r *http.Request) error {
				err := resp(w, r)

				status := 0
				if sr, ok := w.(statusReporter); ok {
					status = sr.Status()
				}

				attrs := []any{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("user_agent", r.UserAgent()),
					slog.Int("status", status),
					logger.Elapsed(start),
					logger.RequestID(RequestIDFromContext(ctx)),
					logger.ClientKey(ClientKeyFromContext(ctx)),
				}

				if err != nil {
					log.Error("request failed", append(attrs, logger.Error(err))...)
				} else {
					log.Info("request completed", attrs...)
				}

				return err
			}
		}
	}
}
