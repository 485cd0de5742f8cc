package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/core/response"
	"github.com/mindhaven/gate/core/router"
	"github.com/mindhaven/gate/middleware"
)

func TestClientIPStoredInContext(t *testing.T) {
	t.Parallel()

	var seen string

	r := router.New[*router.Context]()
	r.Use(middleware.ClientIP[*router.Context]())
	r.Get("/", func(ctx *router.Context) handler.Response {
		ip, ok := middleware.GetClientIP(ctx)
		require.True(t, ok)
		seen = ip
		return response.JSON(nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", seen)
}

func TestClientKeyFallback(t *testing.T) {
	t.Parallel()

	// Without the middleware the accessor falls back to deriving the key
	// from the request directly.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.50:1234"
	ctx := router.NewContext(httptest.NewRecorder(), req)

	assert.Equal(t, "192.168.1.50", middleware.ClientKeyFromContext(ctx))
}
