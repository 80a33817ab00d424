package transport

import (
	"io"
	"sync"

	"pirate-rpc/rpcerr"
)

// CannedChannel is a deterministic Channel for tests. It performs no I/O:
// every SendAndWait answers with the same canned reply, Receive hands out the
// reply a fixed number of times, and every sent message is recorded.
type CannedChannel struct {
	mu           sync.Mutex
	reply        []byte
	receiveTimes int
	sent         [][]byte
	closed       bool
}

var _ Channel = (*CannedChannel)(nil)

// NewCannedChannel returns a channel that always responds with reply and
// allows receiveTimes calls to Receive.
func NewCannedChannel(reply []byte, receiveTimes int) *CannedChannel {
	return &CannedChannel{reply: reply, receiveTimes: receiveTimes}
}

func (c *CannedChannel) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return rpcerr.TransportFailure(rpcerr.OpSend, io.ErrClosedPipe)
	}
	c.sent = append(c.sent, append([]byte(nil), b...))
	return nil
}

func (c *CannedChannel) Receive() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.receiveTimes <= 0 {
		return nil, rpcerr.TransportFailure(rpcerr.OpReceive, io.EOF)
	}
	c.receiveTimes--
	return append([]byte(nil), c.reply...), nil
}

// SendAndWait records b and answers with the canned reply. It does not
// consume the Receive budget.
func (c *CannedChannel) SendAndWait(b []byte) ([]byte, error) {
	if err := c.Send(b); err != nil {
		return nil, err
	}
	return append([]byte(nil), c.reply...), nil
}

// Sent returns copies of every message passed to Send or SendAndWait.
func (c *CannedChannel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *CannedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
