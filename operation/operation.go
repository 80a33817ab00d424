// Package operation is the dispatch core: it describes typed operations and
// stores operations of unrelated query/response types in one name-keyed table.
//
// An operation is declared once as an Impl, which binds a Name to a Handler of
// shape func(*State, Query) (Response, error). The client half, Rpc, carries
// only the name plus the query/response types. Once registered, an Impl is
// reached only through the Stored interface, which speaks bytes:
//
//	payload bytes → decode Query → handler(state, query) → encode Response
//
// so the Registry never sees the concrete types.
package operation

import (
	"fmt"

	"pirate-rpc/codec"
)

// Name identifies an operation. Values come from a closed, application
// defined set; they are used as map keys, rendered in logs with String, and
// encoded on the wire by the active codec.
type Name interface {
	comparable
	fmt.Stringer
}

// Handler is the business logic of one operation. It runs with exclusive
// access to the shared state and must leave it consistent when it fails.
type Handler[S, Q, R any] func(state *S, query Q) (R, error)

// Rpc is the client half of an operation signature.
type Rpc[N Name, Q, R any] struct {
	Name N
}

// NewRpc declares the client half of an operation.
//
//	getCount := operation.NewRpc[struct{}, int](GetCount)
func NewRpc[Q, R any, N Name](name N) Rpc[N, Q, R] {
	return Rpc[N, Q, R]{Name: name}
}

// Stored is the uniform, type-erased capability the registry holds.
type Stored[N Name, S any] interface {
	Name() N
	// Handle decodes payload as the operation's query, runs the handler
	// against state and returns the encoded response.
	Handle(c codec.Codec, payload []byte, state *S) ([]byte, error)
}

// Impl is the server half of an operation signature.
type Impl[N Name, S, Q, R any] struct {
	name    N
	handler Handler[S, Q, R]
}

// New binds a handler to name.
func New[N Name, S, Q, R any](name N, handler Handler[S, Q, R]) *Impl[N, S, Q, R] {
	return &Impl[N, S, Q, R]{name: name, handler: handler}
}

func (op *Impl[N, S, Q, R]) Name() N {
	return op.name
}

// Rpc returns the client half matching this operation.
func (op *Impl[N, S, Q, R]) Rpc() Rpc[N, Q, R] {
	return Rpc[N, Q, R]{Name: op.name}
}

// Call runs the handler directly with an already-typed query.
func (op *Impl[N, S, Q, R]) Call(state *S, query Q) (R, error) {
	return op.handler(state, query)
}

func (op *Impl[N, S, Q, R]) Handle(c codec.Codec, payload []byte, state *S) ([]byte, error) {
	var query Q
	if err := c.Decode(payload, &query); err != nil {
		return nil, err
	}
	resp, err := op.handler(state, query)
	if err != nil {
		return nil, err
	}
	return c.Encode(resp)
}

// Definition is implemented by types that declare both halves of an
// operation by hand.
type Definition[N Name, S, Q, R any] interface {
	Client() Rpc[N, Q, R]
	Server() *Impl[N, S, Q, R]
}
