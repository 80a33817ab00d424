package server

import (
	"time"

	"github.com/go-kit/log"

	"pirate-rpc/codec"
	"pirate-rpc/transport"
)

type options struct {
	codec        codec.Codec
	logger       log.Logger
	framing      transport.Framing
	readTimeout  time.Duration
	writeTimeout time.Duration
	sequential   bool
}

// Option configures a Server.
type Option func(*options)

func defaultOptions() options {
	return options{
		codec:   codec.Default,
		framing: transport.FramingLengthPrefix,
	}
}

// WithCodec sets the codec used for wire packages, names and payloads.
// Clients must use the same codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger replaces the default logfmt logger on stderr.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFraming selects the message framing. Clients must use the same framing.
func WithFraming(f transport.Framing) Option {
	return func(o *options) { o.framing = f }
}

// WithReadTimeout bounds how long a connection may take to deliver its
// request. Zero, the default, waits forever, in which case one silent client
// holds its connection open indefinitely (and, with WithSequential, blocks
// the whole server).
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithWriteTimeout bounds how long sending a reply may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithSequential makes the accept loop finish each connection before
// accepting the next. By default every connection gets its own goroutine;
// state access is serialised per dispatch either way.
func WithSequential(sequential bool) Option {
	return func(o *options) { o.sequential = sequential }
}

func (o options) channelOptions() []transport.Option {
	return []transport.Option{
		transport.WithFraming(o.framing),
		transport.WithReadTimeout(o.readTimeout),
		transport.WithWriteTimeout(o.writeTimeout),
	}
}
