package admission

import (
	"errors"
	"fmt"
	"time"

	"github.com/mindhaven/gate/pkg/ratelimiter"
)

// Rate limit buckets. Plain API calls and streaming chat calls carry
// separate budgets.
const (
	BucketAPI  = "api"
	BucketChat = "chat"
)

// MinCleanupInterval floors the janitor period so a misconfigured
// interval cannot turn cleanup into a busy loop.
const MinCleanupInterval = 5 * time.Second

// minIdleGrace floors the grace period before an idle inflight entry may
// be deleted, so a slot about to be reused is not swept away.
const minIdleGrace = time.Minute

var (
	ErrInvalidLimit     = errors.New("bucket limit must be positive")
	ErrInvalidWindow    = errors.New("bucket window must be positive")
	ErrInvalidMaxStream = errors.New("max concurrent streams must be positive")
)

// Config holds the admission-control configuration surface.
type Config struct {
	// Environment gates the bypass flag; anything but "production"
	// counts as development.
	Environment string `env:"APP_ENV" envDefault:"development"`

	// BypassLimits disables rate and concurrency limiting for local
	// development. Ignored in production.
	BypassLimits bool `env:"ADMISSION_BYPASS_LIMITS" envDefault:"false"`

	APILimit  int           `env:"ADMISSION_API_LIMIT" envDefault:"60"`
	APIWindow time.Duration `env:"ADMISSION_API_WINDOW" envDefault:"1m"`

	ChatLimit  int           `env:"ADMISSION_CHAT_LIMIT" envDefault:"10"`
	ChatWindow time.Duration `env:"ADMISSION_CHAT_WINDOW" envDefault:"1m"`

	// MaxConcurrentStreams caps open streaming responses per client key.
	MaxConcurrentStreams int `env:"ADMISSION_MAX_STREAMS" envDefault:"2"`

	// CleanupInterval is the janitor period, floored at
	// MinCleanupInterval.
	CleanupInterval time.Duration `env:"ADMISSION_CLEANUP_INTERVAL" envDefault:"1m"`

	// ConcurrencyRetryHint is the fixed retry delay advertised on
	// concurrency rejections. Short on purpose: it means "try again
	// shortly", not "wait out a budget".
	ConcurrencyRetryHint time.Duration `env:"ADMISSION_CONCURRENCY_RETRY_HINT" envDefault:"5s"`

	// ShutdownTimeout bounds how long Stop waits for an in-progress
	// sweep.
	ShutdownTimeout time.Duration `env:"ADMISSION_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Validate checks the configured budgets.
func (c Config) Validate() error {
	if c.APILimit <= 0 || c.ChatLimit <= 0 {
		return fmt.Errorf("%w: api=%d chat=%d", ErrInvalidLimit, c.APILimit, c.ChatLimit)
	}
	if c.APIWindow <= 0 || c.ChatWindow <= 0 {
		return fmt.Errorf("%w: api=%s chat=%s", ErrInvalidWindow, c.APIWindow, c.ChatWindow)
	}
	if c.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxStream, c.MaxConcurrentStreams)
	}
	return nil
}

func (c Config) budgets() map[string]ratelimiter.Budget {
	return map[string]ratelimiter.Budget{
		BucketAPI:  {Limit: c.APILimit, Window: c.APIWindow},
		BucketChat: {Limit: c.ChatLimit, Window: c.ChatWindow},
	}
}

func (c Config) cleanupInterval() time.Duration {
	if c.CleanupInterval < MinCleanupInterval {
		return MinCleanupInterval
	}
	return c.CleanupInterval
}

// idleGrace is how long a zero-count inflight entry survives before the
// janitor may delete it: the chat window, floored at one minute.
func (c Config) idleGrace() time.Duration {
	if c.ChatWindow > minIdleGrace {
		return c.ChatWindow
	}
	return minIdleGrace
}

func (c Config) retryHint() time.Duration {
	if c.ConcurrencyRetryHint < time.Second {
		return 5 * time.Second
	}
	return c.ConcurrencyRetryHint
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return c.ShutdownTimeout
}

// bypassActive reports whether limiting is disabled. The flag is only
// honored outside production.
func (c Config) bypassActive() bool {
	return c.BypassLimits && c.Environment != "production"
}
