// Package rpcerr defines the failure taxonomy shared by the codec, transport,
// dispatch core, server loop and client.
//
// Every failure carries a Kind so callers can tell a payload that did not
// decode apart from a dropped connection or an unregistered operation:
//
//	Decode     bytes did not decode to the expected type
//	Encode     a value could not be encoded
//	Transport  connect / send / receive failed at the I/O level
//	NotFound   dispatch against an unregistered operation name
//	Handler    the operation's own logic failed
//	Parse      client-side codec failure while building or reading a call
package rpcerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDecode
	KindEncode
	KindTransport
	KindNotFound
	KindHandler
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not found"
	case KindHandler:
		return "handler"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// TransportOp names the I/O step a transport failure happened in.
type TransportOp string

const (
	OpConnect TransportOp = "connect"
	OpSend    TransportOp = "send"
	OpReceive TransportOp = "receive"
)

// Error is the concrete failure type returned throughout the module.
type Error struct {
	Kind Kind
	// Op is only set for KindTransport.
	Op TransportOp
	// Name is the rendered operation name for KindNotFound.
	Name string
	// Remote is true when the failure happened on the server and was carried
	// back in a reply package.
	Remote bool
	Err    error
}

func (e *Error) Error() string {
	// a remote failure's message was rendered by the server already
	if e.Remote {
		return "remote: " + e.Err.Error()
	}
	var msg string
	switch {
	case e.Kind == KindNotFound && e.Err == nil:
		msg = "rpc not found: " + e.Name
	case e.Kind == KindTransport:
		msg = fmt.Sprintf("transport %s failure: %v", e.Op, e.Err)
	case e.Kind == KindHandler || e.Kind == KindNotFound:
		msg = e.Err.Error()
	default:
		msg = fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
	}
	return msg
}

// Cause lets errors.Cause reach the underlying error.
func (e *Error) Cause() error { return e.Err }

func (e *Error) Unwrap() error { return e.Err }

func DecodeFailure(err error) error {
	return &Error{Kind: KindDecode, Err: err}
}

func EncodeFailure(err error) error {
	return &Error{Kind: KindEncode, Err: err}
}

func TransportFailure(op TransportOp, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func NotFound(name string) error {
	return &Error{Kind: KindNotFound, Name: name}
}

// HandlerFailure marks err as coming from an operation's own logic. Errors that
// already carry a Kind are returned unchanged.
func HandlerFailure(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{Kind: KindHandler, Err: err}
}

// ParseFailure wraps a codec failure seen by the client. The original codec
// detail stays reachable through errors.Cause.
func ParseFailure(err error) error {
	return &Error{Kind: KindParse, Err: err}
}

// FromRemote rebuilds a failure that a server encoded into a reply.
func FromRemote(kind Kind, msg string) error {
	return &Error{Kind: kind, Remote: true, Err: errors.New(msg)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool  { return KindOf(err) == KindNotFound }
func IsDecode(err error) bool    { return KindOf(err) == KindDecode }
func IsTransport(err error) bool { return KindOf(err) == KindTransport }
func IsParse(err error) bool     { return KindOf(err) == KindParse }
func IsHandler(err error) bool   { return KindOf(err) == KindHandler }

// IsRemote reports whether err was produced on the far side of a call.
func IsRemote(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Remote
}

// OpOf returns the transport step of a transport failure.
func OpOf(err error) TransportOp {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindTransport {
		return e.Op
	}
	return ""
}
