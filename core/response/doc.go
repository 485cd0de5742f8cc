// Package response provides handler.Response renderers: JSON bodies, the
// standard error envelope, and streaming transports (Server-Sent Events
// and WebSocket) used by the chat endpoints.
//
// Renderers are values, so middlewares can decorate them with headers
// after the handler has decided what to send:
//
//	resp := response.JSON(payload)
//	return func(w http.ResponseWriter, r *http.Request) error {
//		w.Header().Set("X-Request-ID", id)
//		return resp(w, r)
//	}
package response
