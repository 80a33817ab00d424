package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pirate-rpc/client"
	"pirate-rpc/codec"
	"pirate-rpc/middleware"
	"pirate-rpc/operation"
	"pirate-rpc/protocol"
	"pirate-rpc/rpcerr"
	"pirate-rpc/transport"
)

type helloState struct {
	I int
}

type helloName uint8

const (
	HelloWorld helloName = iota + 1
	GetI
	IncrI
	Reverse
	Fail
	Missing
)

func (n helloName) String() string {
	switch n {
	case HelloWorld:
		return "HelloWorld"
	case GetI:
		return "GetI"
	case IncrI:
		return "IncrI"
	case Reverse:
		return "Reverse"
	case Fail:
		return "Fail"
	}
	return fmt.Sprintf("helloName(%d)", uint8(n))
}

var (
	helloWorld = operation.New(HelloWorld, func(s *helloState, q string) (string, error) {
		return fmt.Sprintf("Hello world: %d:%s", s.I, q), nil
	})
	getI = operation.New(GetI, func(s *helloState, _ struct{}) (int, error) {
		return s.I, nil
	})
	incrI = operation.New(IncrI, func(s *helloState, _ struct{}) (struct{}, error) {
		s.I++
		return struct{}{}, nil
	})
	reverse = operation.New(Reverse, func(_ *helloState, q []int64) ([]int64, error) {
		out := make([]int64, len(q))
		for i, v := range q {
			out[len(q)-1-i] = v
		}
		return out, nil
	})
	fail = operation.New(Fail, func(_ *helloState, _ struct{}) (struct{}, error) {
		return struct{}{}, errors.New("names are full")
	})
)

func newTestServer(state *operation.State[helloState], opts ...Option) *Server[helloName, helloState] {
	svr := NewServer[helloName](state, append([]Option{WithLogger(log.NewNopLogger())}, opts...)...)
	svr.Register(helloWorld)
	svr.Register(getI)
	svr.Register(incrI)
	svr.Register(reverse)
	svr.Register(fail)
	return svr
}

// start serves svr on a loopback port and shuts it down with the test.
func start(t *testing.T, svr *Server[helloName, helloState]) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.ServeListener(l)
	t.Cleanup(func() { svr.Shutdown(3 * time.Second) })
	return l.Addr().String()
}

func call[Q, R any](t *testing.T, addr string, rpc operation.Rpc[helloName, Q, R], q Q, opts ...client.Option) R {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Call(ctx, client.NewClient(addr, opts...), rpc, q)
	require.NoError(t, err)
	return resp
}

func TestServeHelloWorld(t *testing.T) {
	addr := start(t, newTestServer(operation.NewState(helloState{I: 3})))

	assert.Equal(t, 3, call(t, addr, getI.Rpc(), struct{}{}))

	call(t, addr, incrI.Rpc(), struct{}{})
	assert.Equal(t, 4, call(t, addr, getI.Rpc(), struct{}{}))

	assert.Equal(t, "Hello world: 4:foo", call(t, addr, helloWorld.Rpc(), "foo"))
}

func TestServeReadOnlyCallsLeaveStateAlone(t *testing.T) {
	state := operation.NewState(helloState{I: 3})
	addr := start(t, newTestServer(state))

	assert.Equal(t, 3, call(t, addr, getI.Rpc(), struct{}{}))
	assert.Equal(t, "Hello world: 3:foo", call(t, addr, helloWorld.Rpc(), "foo"))
	assert.Equal(t, helloState{I: 3}, state.Snapshot())
}

func TestServeLargePayload(t *testing.T) {
	addr := start(t, newTestServer(operation.NewState(helloState{})))

	q := make([]int64, 2000)
	for i := range q {
		q[i] = int64(i) * 1_000_003
	}
	got := call(t, addr, reverse.Rpc(), q)
	require.Len(t, got, 2000)
	assert.Equal(t, q[0], got[1999])
	assert.Equal(t, q[1999], got[0])
}

func TestServeRemoteFailures(t *testing.T) {
	addr := start(t, newTestServer(operation.NewState(helloState{I: 3})))
	ctx := context.Background()

	_, err := client.CallAddr(ctx, addr, operation.NewRpc[struct{}, int](Missing), struct{}{})
	assert.True(t, rpcerr.IsNotFound(err), "got %v", err)
	assert.True(t, rpcerr.IsRemote(err))
	assert.Contains(t, err.Error(), Missing.String())

	_, err = client.CallAddr(ctx, addr, fail.Rpc(), struct{}{})
	assert.True(t, rpcerr.IsHandler(err), "got %v", err)
	assert.Contains(t, err.Error(), "names are full")

	// the query does not decode as the operation's query type
	_, err = client.CallAddr(ctx, addr, operation.NewRpc[int, string](HelloWorld), 42)
	assert.True(t, rpcerr.IsDecode(err), "got %v", err)
	assert.True(t, rpcerr.IsRemote(err))
}

func TestServeDropsBadConnections(t *testing.T) {
	addr := start(t, newTestServer(operation.NewState(helloState{I: 3})))

	validHeaderGarbageBody := &bytes.Buffer{}
	require.NoError(t, protocol.Encode(validHeaderGarbageBody, []byte{0xc1, 0xc1, 0xc1}))

	wrongNameType := &bytes.Buffer{}
	pkg, err := codec.Default.Encode(map[string]any{"name_bytes": []byte("not a name"), "payload_bytes": []byte{}})
	require.NoError(t, err)
	require.NoError(t, protocol.Encode(wrongNameType, pkg))

	for name, raw := range map[string][]byte{
		"no header":           []byte("GET / HTTP/1.1\r\n\r\n"),
		"garbage body":        validHeaderGarbageBody.Bytes(),
		"undecodable name":    wrongNameType.Bytes(),
		"closed after header": {0x70, 0x72, 0x74, 0x01, 0x00, 0x00, 0x00, 0x10},
	} {
		t.Run(name, func(t *testing.T) {
			conn, err := net.Dial("tcp", addr)
			require.NoError(t, err)
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))

			_, err = conn.Write(raw)
			require.NoError(t, err)
			if tcp, ok := conn.(*net.TCPConn); ok {
				tcp.CloseWrite()
			}

			// the server closes without replying; unread input may turn the
			// close into a reset, so only the absence of a reply is checked
			reply, _ := io.ReadAll(conn)
			assert.Empty(t, reply)

			assert.Equal(t, 3, call(t, addr, getI.Rpc(), struct{}{}))
		})
	}
}

func TestServeConcurrentClients(t *testing.T) {
	state := operation.NewState(helloState{})
	addr := start(t, newTestServer(state))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.CallAddr(context.Background(), addr, incrI.Rpc(), struct{}{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, state.Snapshot().I)
}

func TestServeSequential(t *testing.T) {
	addr := start(t, newTestServer(operation.NewState(helloState{I: 3}),
		WithSequential(true),
		WithReadTimeout(200*time.Millisecond),
	))

	// a silent client holds the loop only until the read timeout fires
	silent, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer silent.Close()

	call(t, addr, incrI.Rpc(), struct{}{})
	assert.Equal(t, 4, call(t, addr, getI.Rpc(), struct{}{}))
}

func TestServeCodecsAndFramings(t *testing.T) {
	cases := []struct {
		codec   codec.Codec
		framing transport.Framing
	}{
		{codec.GetCodec(codec.CodecTypeMsgpack), transport.FramingShortRead},
		{codec.GetCodec(codec.CodecTypeJSON), transport.FramingLengthPrefix},
		{codec.GetCodec(codec.CodecTypeJSON), transport.FramingShortRead},
	}

	for _, tc := range cases {
		t.Run(tc.codec.Type().String()+"/"+tc.framing.String(), func(t *testing.T) {
			addr := start(t, newTestServer(operation.NewState(helloState{I: 3}),
				WithCodec(tc.codec), WithFraming(tc.framing)))
			opts := []client.Option{client.WithCodec(tc.codec), client.WithFraming(tc.framing)}

			assert.Equal(t, "Hello world: 3:foo", call(t, addr, helloWorld.Rpc(), "foo", opts...))
			call(t, addr, incrI.Rpc(), struct{}{}, opts...)
			assert.Equal(t, 4, call(t, addr, getI.Rpc(), struct{}{}, opts...))
		})
	}
}

func TestServeMiddleware(t *testing.T) {
	var buf bytes.Buffer
	svr := newTestServer(operation.NewState(helloState{I: 3}))
	svr.Use(middleware.LoggingMiddleware[helloName](log.NewLogfmtLogger(log.NewSyncWriter(&buf))))
	svr.Use(middleware.RateLimitMiddleware[helloName](0.001, 1))
	addr := start(t, svr)

	assert.Equal(t, 3, call(t, addr, getI.Rpc(), struct{}{}))

	_, err := client.CallAddr(context.Background(), addr, getI.Rpc(), struct{}{})
	assert.True(t, rpcerr.IsHandler(err), "got %v", err)
	assert.Contains(t, err.Error(), middleware.ErrRateLimited.Error())

	svr.Shutdown(time.Second)
	assert.True(t, strings.Contains(buf.String(), "method=GetI"), buf.String())
}

func TestShutdown(t *testing.T) {
	svr := newTestServer(operation.NewState(helloState{}))
	assert.Nil(t, svr.Addr())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- svr.ServeListener(l) }()

	call(t, l.Addr().String(), incrI.Rpc(), struct{}{})
	require.NoError(t, svr.Shutdown(time.Second))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ServeListener did not return after Shutdown")
	}

	_, err = client.CallAddr(context.Background(), l.Addr().String(), getI.Rpc(), struct{}{})
	assert.True(t, rpcerr.IsTransport(err), "got %v", err)
}

func TestShutdownBeforeServe(t *testing.T) {
	svr := newTestServer(operation.NewState(helloState{}))
	require.NoError(t, svr.Shutdown(time.Second))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- svr.ServeListener(l) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		l.Close()
		t.Fatal("ServeListener kept serving after Shutdown")
	}

	// the listener is closed, so nothing answers on its address
	_, err = client.CallAddr(context.Background(), l.Addr().String(), getI.Rpc(), struct{}{})
	assert.True(t, rpcerr.IsTransport(err), "got %v", err)
}

func TestShutdownUnderLoad(t *testing.T) {
	state := operation.NewState(helloState{})
	svr := newTestServer(state)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- svr.ServeListener(l) }()
	addr := l.Addr().String()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := client.CallAddr(context.Background(), addr, incrI.Rpc(), struct{}{}); err != nil {
					return
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, svr.Shutdown(3*time.Second))
	assert.NoError(t, <-done)
	applied := state.Snapshot().I
	wg.Wait()

	// no call is dispatched once Shutdown has returned
	assert.Equal(t, applied, state.Snapshot().I)
	assert.GreaterOrEqual(t, applied, succeeded)
}

func TestServeBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	err = newTestServer(operation.NewState(helloState{})).Serve("tcp", taken.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on "+taken.Addr().String())
	var opErr *net.OpError
	assert.True(t, errors.As(errors.Cause(err), &opErr), "got %T", errors.Cause(err))
}
