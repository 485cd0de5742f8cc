package router

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mindhaven/gate/core/handler"
	"github.com/mindhaven/gate/core/response"
)

// Router registers typed handlers and serves them over net/http.
// Middlewares added with Use wrap every route, outermost first.
type Router[C handler.Context] struct {
	mux          *http.ServeMux
	middlewares  []handler.Middleware[C]
	errorHandler handler.ErrorHandler[C]
	newContext   func(http.ResponseWriter, *http.Request) C
	logger       *slog.Logger
}

// Option configures a Router.
type Option[C handler.Context] func(*Router[C])

// WithErrorHandler replaces the default JSON envelope error handler.
func WithErrorHandler[C handler.Context](h handler.ErrorHandler[C]) Option[C] {
	return func(rt *Router[C]) {
		if h != nil {
			rt.errorHandler = h
		}
	}
}

// WithContextFactory sets the factory for custom context types. Required
// when C is not *Context.
func WithContextFactory[C handler.Context](fn func(http.ResponseWriter, *http.Request) C) Option[C] {
	return func(rt *Router[C]) {
		rt.newContext = fn
	}
}

// WithLogger sets the logger used for unrecoverable render failures.
func WithLogger[C handler.Context](logger *slog.Logger) Option[C] {
	return func(rt *Router[C]) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// New creates a Router. Without a context factory only *Context is
// supported; other context types panic at startup, not per request.
func New[C handler.Context](opts ...Option[C]) *Router[C] {
	rt := &Router[C]{
		mux:          http.NewServeMux(),
		errorHandler: response.JSONErrorHandler[C],
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(rt)
	}

	if rt.newContext == nil {
		var zero C
		if _, ok := any(zero).(*Context); !ok {
			panic("router: context factory is required for custom context types")
		}
		rt.newContext = func(w http.ResponseWriter, r *http.Request) C {
			return any(NewContext(w, r)).(C)
		}
	}

	return rt
}

// Use appends middlewares applied to every route. Call before serving;
// routes registered earlier also pick them up.
func (rt *Router[C]) Use(middlewares ...handler.Middleware[C]) {
	rt.middlewares = append(rt.middlewares, middlewares...)
}

func (rt *Router[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	rt.Method(http.MethodGet, pattern, h)
}

func (rt *Router[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	rt.Method(http.MethodPost, pattern, h)
}

func (rt *Router[C]) Put(pattern string, h handler.HandlerFunc[C]) {
	rt.Method(http.MethodPut, pattern, h)
}

func (rt *Router[C]) Delete(pattern string, h handler.HandlerFunc[C]) {
	rt.Method(http.MethodDelete, pattern, h)
}

// Method registers a handler for one HTTP method and pattern. Patterns
// follow net/http ServeMux syntax, including path parameters.
func (rt *Router[C]) Method(method, pattern string, h handler.HandlerFunc[C]) {
	rt.mux.Handle(method+" "+pattern, rt.wrap(h))
}

// Handle registers a handler for all methods on the pattern.
func (rt *Router[C]) Handle(pattern string, h handler.HandlerFunc[C]) {
	rt.mux.Handle(pattern, rt.wrap(h))
}

// ServeHTTP implements http.Handler.
func (rt *Router[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router[C]) wrap(h handler.HandlerFunc[C]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := newResponseWriter(w)
		ctx := rt.newContext(ww, r)

		defer func() {
			if p := recover(); p != nil {
				err := &PanicError{Value: p, Stack: debug.Stack()}
				rt.fail(ctx, ww, r, err)
			}
		}()

		// The middleware slice is chained per request so Use calls after
		// route registration still apply.
		fn := h
		for i := len(rt.middlewares) - 1; i >= 0; i-- {
			fn = rt.middlewares[i](fn)
		}

		resp := fn(ctx)
		if resp == nil {
			return
		}

		if err := resp(ww, r); err != nil {
			rt.fail(ctx, ww, r, err)
		}
	}
}

// fail routes an error to the error handler, unless a response already
// went out, in which case it can only be logged.
func (rt *Router[C]) fail(ctx C, ww *responseWriter, r *http.Request, err error) {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		rt.logger.Error("recovered panic in handler",
			slog.Any("value", panicErr.Value),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("stack", string(panicErr.Stack)),
		)
	}

	if ww.Written() {
		rt.logger.Error("error after response written",
			slog.Any("error", err),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
		)
		return
	}
	rt.errorHandler(ctx, err)
}

// PanicError wraps a recovered panic with its stack trace.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
