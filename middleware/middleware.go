// Package middleware wraps the server's dispatch step with cross-cutting
// behaviour. Middlewares see the decoded operation name and the still-encoded
// payload; they run outside the state lock.
package middleware

import (
	"context"

	"pirate-rpc/codec"
)

// Call is one resolved request on its way to dispatch.
type Call[N comparable] struct {
	Name    N
	Payload []byte
	Codec   codec.Codec
}

// HandlerFunc produces the encoded response for a call.
type HandlerFunc[N comparable] func(ctx context.Context, call *Call[N]) ([]byte, error)

type Middleware[N comparable] func(next HandlerFunc[N]) HandlerFunc[N]

// Chain combines middlewares into one; the first wraps the rest.
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
func Chain[N comparable](middlewares ...Middleware[N]) Middleware[N] {
	return func(next HandlerFunc[N]) HandlerFunc[N] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
