package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/gate/core/response"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	err := response.JSON(map[string]string{"status": "ok"})(w, r)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestJSONWithStatusNoContent(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	err := response.JSONWithStatus(nil, 0)(w, r)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestEnvelope(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	httpErr := response.ErrRateLimitExceeded.WithDetails(map[string]any{"retry_after_seconds": 3})
	err := response.Envelope(httpErr, "req-123")(w, r)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var envelope response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))

	assert.False(t, envelope.Success)
	assert.Equal(t, "rate_limit_exceeded", envelope.Error.Code)
	assert.Equal(t, "Too many requests", envelope.Error.Message)
	assert.NotEmpty(t, envelope.Error.SuggestedAction)
	assert.Equal(t, float64(3), envelope.Error.Details["retry_after_seconds"])
	assert.Equal(t, "req-123", envelope.Meta.RequestID)
	assert.False(t, envelope.Meta.Timestamp.IsZero())
}

func TestHTTPErrorHelpers(t *testing.T) {
	t.Parallel()

	base := response.ErrInternal
	cause := errors.New("boom")

	withErr := base.WithError(cause)
	assert.Equal(t, "boom", withErr.Details["cause"])
	assert.Nil(t, base.Details, "With helpers must not mutate the shared value")

	withMsg := base.WithMessage("custom")
	assert.Equal(t, "custom", withMsg.Message)
	assert.Equal(t, "Something went wrong", base.Message)

	withAction := base.WithSuggestedAction("retry later")
	assert.Equal(t, "retry later", withAction.SuggestedAction)

	assert.Equal(t, http.StatusInternalServerError, base.StatusCode())
	assert.Equal(t, base.Message, base.Error())
}

func TestSSEStreamsEvents(t *testing.T) {
	t.Parallel()

	events := make(chan any, 3)
	events <- "first token"
	events <- map[string]string{"delta": "second"}
	events <- []byte("third")
	close(events)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/chat/stream", nil)

	err := response.SSE(events, response.WithSSEKeepAlive(0), response.WithSSEEventName("message"))(w, r)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, ": connected\n\n")
	assert.Contains(t, body, "event: message\ndata: first token\n\n")
	assert.Contains(t, body, `data: {"delta":"second"}`)
	assert.Contains(t, body, "data: third\n\n")
}

func TestWebSocketEcho(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = response.EchoWebSocket()(w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, "hello", string(data))
}
