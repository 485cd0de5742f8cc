package response

import "net/http"

// HTTPError represents a structured error response that implements the
// error interface. Values are copied by the With* helpers, so the
// predefined errors below are safe to share.
type HTTPError struct {
	Status          int            `json:"-"`
	Code            string         `json:"code"`
	Message         string         `json:"message"`
	Details         map[string]any `json:"details,omitempty"`
	SuggestedAction string         `json:"suggestedAction,omitempty"`
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for the error.
func (e HTTPError) StatusCode() int {
	return e.Status
}

// WithMessage returns a copy of the error with a custom message.
func (e HTTPError) WithMessage(message string) HTTPError {
	e.Message = message
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e HTTPError) WithDetails(details map[string]any) HTTPError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WithSuggestedAction returns a copy of the error with a client-facing
// recovery hint.
func (e HTTPError) WithSuggestedAction(action string) HTTPError {
	e.SuggestedAction = action
	return e
}

// WithError returns a copy of the error with an error cause in details.
func (e HTTPError) WithError(err error) HTTPError {
	return e.WithDetails(map[string]any{"cause": err.Error()})
}

// Admission-stage errors. Messages stay generic on purpose: failure
// specifics go to the logs, correlated by request id.
var (
	ErrAuthenticationFailed = HTTPError{
		Status:          http.StatusUnauthorized,
		Code:            "authentication_failed",
		Message:         "Authentication required",
		SuggestedAction: "Provide valid credentials and retry",
	}

	ErrRateLimitExceeded = HTTPError{
		Status:          http.StatusTooManyRequests,
		Code:            "rate_limit_exceeded",
		Message:         "Too many requests",
		SuggestedAction: "Wait for the indicated retry period before sending more requests",
	}

	ErrConcurrencyExceeded = HTTPError{
		Status:          http.StatusTooManyRequests,
		Code:            "concurrency_limit_exceeded",
		Message:         "Too many concurrent streams",
		SuggestedAction: "Close an open stream or retry shortly",
	}

	ErrInternal = HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Something went wrong",
	}
)

// General-purpose errors for routes behind the gate.
var (
	ErrBadRequest = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: http.StatusText(http.StatusBadRequest),
	}

	ErrUnauthorized = HTTPError{
		Status:  http.StatusUnauthorized,
		Code:    "unauthorized",
		Message: http.StatusText(http.StatusUnauthorized),
	}

	ErrForbidden = HTTPError{
		Status:  http.StatusForbidden,
		Code:    "forbidden",
		Message: http.StatusText(http.StatusForbidden),
	}

	ErrNotFound = HTTPError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: http.StatusText(http.StatusNotFound),
	}

	ErrTooManyRequests = HTTPError{
		Status:  http.StatusTooManyRequests,
		Code:    "too_many_requests",
		Message: http.StatusText(http.StatusTooManyRequests),
	}

	ErrInternalServerError = HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_server_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
)
