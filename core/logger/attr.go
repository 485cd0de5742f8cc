package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors, so call sites need no nil checks.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component tags log lines with the emitting subsystem.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID tags log lines with the request correlation id.
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// ClientKey tags log lines with the rate-limit client key.
func ClientKey(key string) slog.Attr {
	return slog.String("client_key", key)
}

// Elapsed logs the duration since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
