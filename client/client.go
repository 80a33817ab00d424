// Package client implements the client call path: encode the query, wrap it
// in a wire package, send it over a channel, wait for the one reply and decode
// the typed response.
//
// Codec failures on this side come back as rpcerr Parse failures, channel
// failures as rpcerr Transport failures, and failures reported by the server
// keep the kind the server gave them (see rpcerr.IsRemote).
package client

import (
	"context"
	"time"

	"pirate-rpc/codec"
	"pirate-rpc/message"
	"pirate-rpc/operation"
	"pirate-rpc/rpcerr"
	"pirate-rpc/transport"
)

// Client holds what is needed to reach one server. It opens a fresh
// connection per call; there is no pooling and no multiplexing.
type Client struct {
	addr         string
	codec        codec.Codec
	framing      transport.Framing
	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCodec sets the codec. It must match the server's.
func WithCodec(c codec.Codec) Option {
	return func(cli *Client) {
		if c != nil {
			cli.codec = c
		}
	}
}

// WithFraming sets the message framing. It must match the server's.
func WithFraming(f transport.Framing) Option {
	return func(cli *Client) { cli.framing = f }
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(cli *Client) { cli.dialTimeout = d }
}

// WithReadTimeout bounds the wait for the reply. Zero waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(cli *Client) { cli.readTimeout = d }
}

// WithWriteTimeout bounds sending the request.
func WithWriteTimeout(d time.Duration) Option {
	return func(cli *Client) { cli.writeTimeout = d }
}

func NewClient(addr string, opts ...Option) *Client {
	cli := &Client{
		addr:        addr,
		codec:       codec.Default,
		framing:     transport.FramingLengthPrefix,
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

func (c *Client) Addr() string {
	return c.addr
}

// Codec returns the codec the client encodes with.
func (c *Client) Codec() codec.Codec {
	return c.codec
}

// Dial opens a channel to the client's server.
func (c *Client) Dial(ctx context.Context) (*transport.TCPChannel, error) {
	if c.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}
	ch, err := transport.Dial(ctx, c.addr,
		transport.WithFraming(c.framing),
		transport.WithReadTimeout(c.readTimeout),
		transport.WithWriteTimeout(c.writeTimeout),
	)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Call opens a connection, performs one call of rpc with query and closes the
// connection again. The ctx deadline bounds the whole call, read and write
// timeouts included, and cancelling ctx aborts it. A call cut short by ctx
// fails with a transport failure whose cause is ctx.Err().
func Call[N operation.Name, Q, R any](ctx context.Context, cli *Client, rpc operation.Rpc[N, Q, R], query Q) (R, error) {
	var zero R
	ch, err := cli.Dial(ctx)
	if err != nil {
		return zero, err
	}
	defer ch.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := ch.SetDeadline(deadline); err != nil {
			return zero, rpcerr.TransportFailure(rpcerr.OpSend, err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		ch.SetDeadline(time.Now())
	})
	defer stop()

	resp, err := CallOn(ch, cli.codec, rpc, query)
	if err != nil && rpcerr.IsTransport(err) && ctx.Err() != nil {
		return zero, rpcerr.TransportFailure(rpcerr.OpOf(err), ctx.Err())
	}
	return resp, err
}

// CallAddr is Call against a default client for addr.
func CallAddr[N operation.Name, Q, R any](ctx context.Context, addr string, rpc operation.Rpc[N, Q, R], query Q) (R, error) {
	return Call(ctx, NewClient(addr), rpc, query)
}

// CallOn performs one call over an existing channel.
func CallOn[N operation.Name, Q, R any](ch transport.Channel, c codec.Codec, rpc operation.Rpc[N, Q, R], query Q) (R, error) {
	var resp R

	payload, err := c.Encode(query)
	if err != nil {
		return resp, rpcerr.ParseFailure(err)
	}
	frame, err := message.EncodeRequest(c, rpc.Name, payload)
	if err != nil {
		return resp, rpcerr.ParseFailure(err)
	}

	replyFrame, err := ch.SendAndWait(frame)
	if err != nil {
		return resp, asTransportFailure(err)
	}

	replyPayload, err := message.DecodeReply(c, replyFrame)
	if err != nil {
		if rpcerr.IsRemote(err) {
			return resp, err
		}
		return resp, rpcerr.ParseFailure(err)
	}
	if err := c.Decode(replyPayload, &resp); err != nil {
		return resp, rpcerr.ParseFailure(err)
	}
	return resp, nil
}

// asTransportFailure keeps channel failures that already name their step and
// tags anything else from a foreign Channel implementation as a receive failure.
func asTransportFailure(err error) error {
	if rpcerr.IsTransport(err) {
		return err
	}
	return rpcerr.TransportFailure(rpcerr.OpReceive, err)
}
