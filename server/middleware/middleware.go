// Package middleware holds the HTTP middleware of the notify server.
//
// Transport-level concerns (recovery, request ids, CORS, body limits and
// request logging) are plain net/http middleware applied around the whole
// handler. Route-level authentication is Gin middleware.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware. The first in the list is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
