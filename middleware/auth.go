package middleware

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/core/response"
)

// Credential validation errors. Both map to the same 401 envelope; the
// distinction is for logs only.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Principal is the identity resolved by the credential validator. The
// admission layer treats it as opaque beyond the subject used in logs.
type Principal interface {
	Subject() string
}

// CredentialValidator authenticates a request. Implementations are
// external collaborators; the pipeline only cares about success or
// failure.
type CredentialValidator interface {
	Validate(r *http.Request) (Principal, error)
}

// principalContextKey keys the authenticated principal in the request
// context.
type principalContextKey struct{}

// AuthConfig configures the authentication middleware.
type AuthConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Validator is the external credential validator (required)
	Validator CredentialValidator
	// ErrorHandler builds the rejection response (default: 401 envelope)
	ErrorHandler func(ctx handler.Context, err error) handler.Response
}

// Auth creates an authentication middleware delegating to the validator.
// Panics if no validator is provided.
//
// Authentication runs before any counter is touched: rejected requests
// must not consume rate-limit or concurrency state.
func Auth[C handler.Context](cfg AuthConfig) handler.Middleware[C] {
	if cfg.Validator == nil {
		panic("auth middleware: validator is required")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx handler.Context, _ error) handler.Response {
			return response.Envelope(response.ErrAuthenticationFailed, RequestIDFromContext(ctx))
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			principal, err := cfg.Validator.Validate(ctx.Request())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.SetValue(principalContextKey{}, principal)
			return next(ctx)
		}
	}
}

// GetPrincipal retrieves the authenticated principal from the request
// context.
func GetPrincipal(ctx handler.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// tokenPrincipal is the identity produced by StaticTokenValidator.
type tokenPrincipal struct {
	subject string
}

func (p tokenPrincipal) Subject() string {
	return p.subject
}

// StaticTokenValidator validates bearer tokens against a fixed token →
// subject table. It stands in for the product's real credential service
// in the demo binary and in tests.
type StaticTokenValidator struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewStaticTokenValidator creates a validator from a token → subject map.
func NewStaticTokenValidator(tokens map[string]string) *StaticTokenValidator {
	copied := make(map[string]string, len(tokens))
	for token, subject := range tokens {
		copied[token] = subject
	}
	return &StaticTokenValidator{tokens: copied}
}

// Validate checks the Authorization bearer token.
func (v *StaticTokenValidator) Validate(r *http.Request) (Principal, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return nil, ErrMissingCredentials
	}

	v.mu.RLock()
	subject, ok := v.tokens[token]
	v.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}
	return tokenPrincipal{subject: subject}, nil
}
