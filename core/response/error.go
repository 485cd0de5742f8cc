package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/mindhaven/gate/core/handler"
)

// ErrorBody is the error payload inside the standard envelope.
type ErrorBody struct {
	Message         string         `json:"message"`
	Code            string         `json:"code"`
	Details         map[string]any `json:"details,omitempty"`
	SuggestedAction string         `json:"suggestedAction,omitempty"`
}

// Meta carries response correlation data.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
}

// ErrorEnvelope is the standard error response shape for non-streaming
// routes. Every rejected stage produces one, always carrying the request
// id for support correlation.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
	Meta    Meta      `json:"meta"`
}

// Envelope renders an HTTPError as the standard error envelope with the
// error's status code.
func Envelope(err HTTPError, requestID string) handler.Response {
	return JSONWithStatus(ErrorEnvelope{
		Success: false,
		Error: ErrorBody{
			Message:         err.Message,
			Code:            err.Code,
			Details:         err.Details,
			SuggestedAction: err.SuggestedAction,
		},
		Meta: Meta{
			Timestamp: time.Now().UTC(),
			RequestID: requestID,
		},
	}, err.Status)
}

// Error returns a handler response that propagates the given error to the
// router's error handler.
func Error(err error) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		return err
	}
}

// statusCode is implemented by errors that carry their own HTTP status.
type statusCode interface {
	StatusCode() int
}

// toHTTPError normalizes any error into an HTTPError. Unknown errors map
// to a sanitized 500: their text goes to the logs, not to the client.
func toHTTPError(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	if sc, ok := err.(statusCode); ok {
		if status := sc.StatusCode(); status >= 400 && status < 500 {
			e := ErrBadRequest
			e.Status = status
			e.Message = http.StatusText(status)
			return e
		}
	}

	return ErrInternal
}

// JSONErrorHandler renders errors escaping a handler chain as the
// standard envelope. The request id is taken from the X-Request-ID header
// already stamped on the response by the request-id middleware, if any.
func JSONErrorHandler[C handler.Context](ctx C, err error) {
	httpErr := toHTTPError(err)
	requestID := ctx.ResponseWriter().Header().Get("X-Request-ID")
	_ = Envelope(httpErr, requestID)(ctx.ResponseWriter(), ctx.Request())
}
