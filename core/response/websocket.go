package response

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mindhaven/gate/core/handler"
)

type wsConfig struct {
	upgrader *websocket.Upgrader
	onError  func(context.Context, error)
}

// WebSocketOption configures WebSocket upgrade behavior.
type WebSocketOption func(*wsConfig)

// WithWSOriginCheck sets the origin validation function.
func WithWSOriginCheck(fn func(r *http.Request) bool) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

// WithWSBufferSizes sets the read and write buffer sizes.
func WithWSBufferSizes(read, write int) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.ReadBufferSize = read
		c.upgrader.WriteBufferSize = write
	}
}

// WithWSErrorHandler receives upgrade and session errors for logging.
func WithWSErrorHandler(fn func(context.Context, error)) WebSocketOption {
	return func(c *wsConfig) {
		c.onError = fn
	}
}

// WebSocket upgrades the connection and runs the session function until
// it returns. Like SSE, the render function owns the connection lifetime:
// a concurrency slot acquired for the request is held until the session
// ends, however it ends.
func WebSocket(session func(context.Context, *websocket.Conn) error, opts ...WebSocketOption) handler.Response {
	cfg := &wsConfig{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		conn, err := cfg.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			if cfg.onError != nil {
				cfg.onError(r.Context(), err)
			}
			return nil
		}
		defer conn.Close()

		if err := cfg.session(r.Context(), conn, session); err != nil {
			if cfg.onError != nil {
				cfg.onError(r.Context(), err)
			}
		}
		return nil
	}
}

func (c *wsConfig) session(ctx context.Context, conn *websocket.Conn, fn func(context.Context, *websocket.Conn) error) error {
	err := fn(ctx, conn)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// EchoWebSocket reflects every message back to the client. Used by the
// demo chat channel and in tests.
func EchoWebSocket(opts ...WebSocketOption) handler.Response {
	return WebSocket(func(ctx context.Context, conn *websocket.Conn) error {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					return err
				}
				return nil
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return err
			}
		}
	}, opts...)
}
