// Package httpx holds the HTTP plumbing shared by all handlers: middleware
// chaining, JSON responses, machine-readable error codes, and the
// authentication/authorization middleware.
package httpx

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h so the first listed middleware is the
// outermost, i.e. runs first on the way in.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
