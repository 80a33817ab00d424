// Package transport turns a duplex byte connection into the synchronous
// "send this, wait for exactly one reply" primitive used by client and server.
//
// A Channel owns one live connection, is never shared between goroutines and
// is done once the connection closes or fails. Every I/O failure comes back
// as an rpcerr transport failure tagged with the step that failed.
package transport

// Channel is the internal transport capability set.
type Channel interface {
	// Send writes one message to the connection.
	Send(b []byte) error
	// Receive reads one message from the connection.
	Receive() ([]byte, error)
	// SendAndWait sends b and then receives exactly one reply.
	SendAndWait(b []byte) ([]byte, error)
	Close() error
}

// Framing selects how message boundaries are found on the byte stream.
type Framing int

const (
	// FramingLengthPrefix wraps every message in a protocol header carrying
	// its length. This is the default.
	FramingLengthPrefix Framing = iota
	// FramingShortRead sends raw bytes and treats a read that does not fill
	// the buffer as the end of the message. It exists for wire compatibility
	// with peers that do not prefix lengths and misframes any message whose
	// length is an exact multiple of the buffer size.
	FramingShortRead
)

func (f Framing) String() string {
	switch f {
	case FramingLengthPrefix:
		return "length-prefix"
	case FramingShortRead:
		return "short-read"
	}
	return "unknown"
}
