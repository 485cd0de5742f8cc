package router

import (
	"context"
	"net/http"
	"time"
)

// Context is the default request context implementation. It satisfies
// handler.Context and carries per-request values set by middlewares.
type Context struct {
	w      http.ResponseWriter
	r      *http.Request
	values map[any]any
}

// NewContext creates a Context for the given request. Exposed for tests
// and custom context factories.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{w: w, r: r}
}

func (c *Context) Request() *http.Request {
	return c.r
}

func (c *Context) ResponseWriter() http.ResponseWriter {
	return c.w
}

// Param returns the named path parameter from the route pattern.
func (c *Context) Param(key string) string {
	return c.r.PathValue(key)
}

// SetValue stores a request-scoped value. Values set here shadow values
// from the underlying request context.
func (c *Context) SetValue(key, val any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = val
}

func (c *Context) Deadline() (time.Time, bool) {
	return c.r.Context().Deadline()
}

func (c *Context) Done() <-chan struct{} {
	return c.r.Context().Done()
}

func (c *Context) Err() error {
	return c.r.Context().Err()
}

func (c *Context) Value(key any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	return c.r.Context().Value(key)
}

var _ context.Context = (*Context)(nil)
