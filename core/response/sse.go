package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mindhaven/gate/core/handler"
)

// DefaultSSEKeepAlive is the default keep-alive interval for SSE
// connections.
const DefaultSSEKeepAlive = 30 * time.Second

type sseConfig struct {
	eventName string
	keepAlive time.Duration
	onError   func(error)
}

// SSEOption configures Server-Sent Events behavior.
type SSEOption func(*sseConfig)

// WithSSEEventName sets the event name written with each event.
func WithSSEEventName(name string) SSEOption {
	return func(c *sseConfig) {
		c.eventName = name
	}
}

// WithSSEKeepAlive sets the keep-alive comment interval. Zero disables
// keep-alives.
func WithSSEKeepAlive(interval time.Duration) SSEOption {
	return func(c *sseConfig) {
		c.keepAlive = interval
	}
}

// WithSSEErrorHandler receives streaming write errors for logging.
func WithSSEErrorHandler(fn func(error)) SSEOption {
	return func(c *sseConfig) {
		c.onError = fn
	}
}

// SSE streams events from the channel as Server-Sent Events until the
// channel closes or the client disconnects. Strings and []byte are sent
// as-is; everything else is JSON-encoded.
//
// The render function holds the connection open for the lifetime of the
// stream, so any admission slot acquired for the request stays held until
// this returns. That is the intended behavior for streaming chat
// responses.
func SSE(events <-chan any, opts ...SSEOption) handler.Response {
	cfg := &sseConfig{keepAlive: DefaultSSEKeepAlive}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		flusher, ok := w.(http.Flusher)
		if !ok {
			return ErrInternalServerError.WithMessage("streaming unsupported")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
			return nil
		}
		flusher.Flush()

		var keepAlive <-chan time.Time
		if cfg.keepAlive > 0 {
			ticker := time.NewTicker(cfg.keepAlive)
			defer ticker.Stop()
			keepAlive = ticker.C
		}

		for {
			select {
			case <-r.Context().Done():
				// Client disconnect: stop writing. The deferred release in
				// the admission wrapper still runs.
				return nil

			case <-keepAlive:
				if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
					return nil
				}
				flusher.Flush()

			case data, ok := <-events:
				if !ok {
					return nil
				}
				if err := writeSSEEvent(w, cfg.eventName, data); err != nil {
					if cfg.onError != nil {
						cfg.onError(err)
					}
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSEEvent(w io.Writer, eventName string, data any) error {
	if eventName != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", eventName); err != nil {
			return err
		}
	}

	var payload []byte
	switch v := data.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = encoded
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return nil
}
