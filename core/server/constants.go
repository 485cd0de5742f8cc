package server

import "time"

const (
	// DefaultReadTimeout bounds reading the request.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is zero: streaming responses hold the
	// connection open for the duration of model generation.
	DefaultWriteTimeout = 0 * time.Second

	// DefaultIdleTimeout bounds idle keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes limits request header size.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB
)
