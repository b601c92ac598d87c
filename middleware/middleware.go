// Package middleware provides an onion-model wrapper chain around the
// server's business handler: request in, response out, with cross-cutting
// concerns (logging, rate limiting, timeouts) layered around the call.
package middleware

import (
	"context"

	"github.com/jinguan/jgrpc/message"
)

// HandlerFunc processes one decoded request and produces its response.
type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, applied in the order given:
//
//	Chain(A, B, C)(handler) == A(B(C(handler)))
//	execution order: A.before -> B.before -> C.before -> handler -> C.after -> B.after -> A.after
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
