// Package middleware provides the request-scoped building blocks the
// admission pipeline composes: request correlation ids, client key
// extraction, credential validation, and request logging.
//
// Middlewares follow a common shape: a Config struct with an optional
// Skip predicate, a constructor that fills defaults, and context
// accessors (GetRequestID, GetClientIP, GetPrincipal) for downstream
// stages.
package middleware
