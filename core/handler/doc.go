// Package handler defines the core contracts shared by the router,
// middlewares, and response renderers: a generic request Context, a
// Response render function, and the Middleware shape built on both.
//
// Handlers return a Response instead of writing directly, which lets
// middlewares decorate headers after the handler has run:
//
//	func ping(ctx *router.Context) handler.Response {
//		return response.JSON(map[string]string{"status": "ok"})
//	}
package handler
