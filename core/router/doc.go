// Package router turns generic handler chains into an http.Handler.
//
// It is deliberately thin: method routing and path parameters are
// delegated to net/http's ServeMux patterns, while this package adds the
// pieces the admission layer needs — a typed request Context, middleware
// chaining, a panic boundary, and a status-tracking response writer that
// supports flushing and hijacking for the streaming endpoints.
package router
