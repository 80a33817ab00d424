package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"pirate-rpc/protocol"
	"pirate-rpc/rpcerr"
)

// DefaultBufferSize is the read buffer used by FramingShortRead.
const DefaultBufferSize = 1024

type options struct {
	framing      Framing
	bufferSize   int
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures a TCPChannel.
type Option func(*options)

// WithFraming selects the message framing. Both peers must agree.
func WithFraming(f Framing) Option {
	return func(o *options) { o.framing = f }
}

// WithBufferSize sets the FramingShortRead read buffer size.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithReadTimeout bounds every Receive. Zero, the default, waits forever.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithWriteTimeout bounds every Send. Zero, the default, waits forever.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

func buildOptions(opts []Option) options {
	o := options{framing: FramingLengthPrefix, bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TCPChannel is a Channel over one stream connection. Despite the name it
// works with any net.Conn, which keeps it usable over net.Pipe in tests.
type TCPChannel struct {
	conn net.Conn
	opts options

	mu       sync.Mutex // guards deadline and the conn deadlines derived from it
	deadline time.Time
}

var _ Channel = (*TCPChannel)(nil)

// NewTCPChannel takes ownership of conn.
func NewTCPChannel(conn net.Conn, opts ...Option) *TCPChannel {
	return &TCPChannel{conn: conn, opts: buildOptions(opts)}
}

// Dial opens a connection to address and wraps it in a TCPChannel.
// Failure to connect is reported as a transport connect failure.
func Dial(ctx context.Context, address string, opts ...Option) (*TCPChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, rpcerr.TransportFailure(rpcerr.OpConnect, err)
	}
	return NewTCPChannel(conn, opts...), nil
}

func (t *TCPChannel) Send(b []byte) error {
	if err := t.arm(t.conn.SetWriteDeadline, t.opts.writeTimeout); err != nil {
		return rpcerr.TransportFailure(rpcerr.OpSend, err)
	}

	var err error
	if t.opts.framing == FramingShortRead {
		_, err = t.conn.Write(b)
	} else {
		err = protocol.Encode(t.conn, b)
	}
	if err != nil {
		return rpcerr.TransportFailure(rpcerr.OpSend, err)
	}
	return nil
}

func (t *TCPChannel) Receive() ([]byte, error) {
	if err := t.arm(t.conn.SetReadDeadline, t.opts.readTimeout); err != nil {
		return nil, rpcerr.TransportFailure(rpcerr.OpReceive, err)
	}

	var (
		b   []byte
		err error
	)
	if t.opts.framing == FramingShortRead {
		b, err = readUntilShort(t.conn, t.opts.bufferSize)
	} else {
		b, err = protocol.Decode(t.conn)
	}
	if err != nil {
		return nil, rpcerr.TransportFailure(rpcerr.OpReceive, err)
	}
	return b, nil
}

func (t *TCPChannel) SendAndWait(b []byte) ([]byte, error) {
	if err := t.Send(b); err != nil {
		return nil, err
	}
	return t.Receive()
}

// SetDeadline applies an absolute deadline to all I/O on the channel. The
// read and write timeouts never extend it. It is safe to call while a Send
// or Receive is blocked, which makes the blocked call fail.
func (t *TCPChannel) SetDeadline(deadline time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = deadline
	return t.conn.SetDeadline(deadline)
}

// arm sets the deadline for the next read or write: the earlier of the
// channel deadline and now+timeout.
func (t *TCPChannel) arm(set func(time.Time) error, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.deadline
	if timeout > 0 {
		if op := time.Now().Add(timeout); d.IsZero() || op.Before(d) {
			d = op
		}
	}
	return set(d)
}

// RemoteAddr returns the peer address.
func (t *TCPChannel) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func (t *TCPChannel) Close() error {
	return t.conn.Close()
}

// readUntilShort reads into a size-byte buffer until a read returns fewer
// bytes than the buffer holds, accumulating everything read. A peer that
// closes without sending anything yields io.EOF.
func readUntilShort(r io.Reader, size int) ([]byte, error) {
	var out []byte
	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if err == io.EOF && len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		if n < size {
			return out, nil
		}
	}
}
