// Package middleware wraps receiver invocation with cross-cutting concerns
// (logging, timeouts, rate limiting) using the same onion-model Chain the
// donor repo uses for its TCP server, adapted from
// func(ctx, *message.RPCMessage) *message.RPCMessage to the async
// transport.HandleFunc every receiver binding (local, HTTP, broker) invokes.
package middleware

import (
	"github.com/rob-signorelli/boson/transport"
)

// HandlerFunc is transport.HandleFunc under a local name, kept distinct so
// this package reads on its own terms rather than forcing every call site
// to spell out the transport package.
type HandlerFunc = transport.HandleFunc

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, applied in the order given:
// Chain(A, B, C)(handler) == A(B(C(handler))), so execution order is
// A.before, B.before, C.before, handler, C.after, B.after, A.after —
// identical to the donor's Chain.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
