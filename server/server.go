// Package server implements the RPC server: operation registration, the
// middleware chain, the accept loop and graceful shutdown.
//
// Request processing pipeline, one request per connection:
//
//	Accept conn → handleConn
//	  → Channel.Receive → message.Decode (name decoded, payload still encoded)
//	  → Middleware Chain → Registry.Dispatch (state locked for this call only)
//	  → message.EncodeReply → Channel.Send → close
//
// Any failure is logged and only costs the connection it happened on.
package server

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"pirate-rpc/message"
	"pirate-rpc/middleware"
	"pirate-rpc/operation"
	"pirate-rpc/transport"
)

// Server serves the operations registered for one shared state value.
type Server[N operation.Name, S any] struct {
	ops         *operation.Registry[N, S]
	state       *operation.State[S]
	opts        options
	logger      log.Logger
	middlewares []middleware.Middleware[N]
	handler     middleware.HandlerFunc[N] // middleware(middleware(...(dispatch)))

	mu       sync.Mutex // guards listener, shutdown and wg.Add
	listener net.Listener
	wg       sync.WaitGroup // Tracks open connections for graceful shutdown
	shutdown bool
}

// NewServer creates a server around state. The caller keeps ownership of
// state; the server only mutates it through registered operations.
func NewServer[N operation.Name, S any](state *operation.State[S], opts ...Option) *Server[N, S] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.With(log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)), "ts", log.DefaultTimestampUTC)
	}
	return &Server[N, S]{
		ops:    operation.NewRegistry[N, S](),
		state:  state,
		opts:   o,
		logger: log.With(logger, "component", "rpc-server"),
	}
}

// Register adds op to the server. Registering a second operation under the
// same name replaces the first. Must be called before Serve.
func (svr *Server[N, S]) Register(op operation.Stored[N, S]) {
	svr.ops.Register(op)
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (svr *Server[N, S]) Use(mw middleware.Middleware[N]) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Registry exposes the operation table, mainly for inspection.
func (svr *Server[N, S]) Registry() *operation.Registry[N, S] {
	return svr.ops
}

// Serve binds address and serves until Shutdown. A bind failure is returned
// immediately; the caller is expected to treat it as fatal.
func (svr *Server[N, S]) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", address)
	}
	return svr.ServeListener(listener)
}

// ServeListener serves connections accepted from listener until Shutdown.
func (svr *Server[N, S]) ServeListener(listener net.Listener) error {
	svr.mu.Lock()
	if svr.shutdown {
		svr.mu.Unlock()
		listener.Close()
		return nil
	}
	svr.listener = listener
	svr.mu.Unlock()

	// Build the middleware chain once at startup (not per-request)
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	level.Info(svr.logger).Log("msg", "listening", "addr", listener.Addr(), "operations", svr.ops.Len(),
		"codec", svr.opts.codec.Type(), "framing", svr.opts.framing, "sequential", svr.opts.sequential)

	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			// listener.Close() during Shutdown makes Accept fail; that is not an error.
			if svr.isShutdown() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else if tempDelay *= 2; tempDelay > time.Second {
				tempDelay = time.Second
			}
			level.Error(svr.logger).Log("msg", "accept failed", "err", err, "retry_in", tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		// Add must not race with the Wait in Shutdown.
		svr.mu.Lock()
		if svr.shutdown {
			svr.mu.Unlock()
			conn.Close()
			return nil
		}
		svr.wg.Add(1)
		svr.mu.Unlock()

		if svr.opts.sequential {
			svr.handleConn(conn)
		} else {
			go svr.handleConn(conn)
		}
	}
}

// Addr returns the address the server is listening on, or nil before Serve.
func (svr *Server[N, S]) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// handleConn serves the single request carried by conn and closes it.
func (svr *Server[N, S]) handleConn(conn net.Conn) {
	defer svr.wg.Done()

	ch := transport.NewTCPChannel(conn, svr.opts.channelOptions()...)
	defer ch.Close()
	logger := log.With(svr.logger, "remote", conn.RemoteAddr())

	frame, err := ch.Receive()
	if err != nil {
		level.Warn(logger).Log("msg", "dropping connection", "err", err)
		return
	}

	c := svr.opts.codec
	req, err := message.Decode(c, frame)
	if err != nil {
		level.Warn(logger).Log("msg", "dropping connection: undecodable wire package", "err", err)
		return
	}
	name, err := message.DecodeName[N](c, req)
	if err != nil {
		level.Warn(logger).Log("msg", "dropping connection: undecodable operation name", "err", err)
		return
	}

	result, callErr := svr.handler(context.Background(), &middleware.Call[N]{
		Name:    name,
		Payload: req.Payload,
		Codec:   c,
	})
	if callErr != nil {
		level.Warn(logger).Log("msg", "call failed", "method", name, "err", callErr)
	}

	reply, err := message.EncodeReply(c, req.Name, result, callErr)
	if err != nil {
		level.Error(logger).Log("msg", "failed to encode reply", "method", name, "err", err)
		return
	}
	if err := ch.Send(reply); err != nil {
		level.Warn(logger).Log("msg", "failed to send reply", "method", name, "err", err)
	}
}

// dispatch is the innermost handler of the middleware chain.
func (svr *Server[N, S]) dispatch(ctx context.Context, call *middleware.Call[N]) ([]byte, error) {
	return svr.ops.Dispatch(call.Codec, call.Name, call.Payload, svr.state)
}

func (svr *Server[N, S]) isShutdown() bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return svr.shutdown
}

// Shutdown performs graceful shutdown:
//  1. Set shutdown flag (so Accept error is recognized as intentional)
//  2. Close the listener (stop accepting new connections)
//  3. Wait for open connections to finish (with timeout)
//
// A server shut down before it starts serving closes its listener and
// returns from ServeListener at once.
func (svr *Server[N, S]) Shutdown(timeout time.Duration) error {
	// Set the flag BEFORE closing the listener, otherwise ServeListener
	// would report the Accept error as a real failure.
	svr.mu.Lock()
	svr.shutdown = true
	if svr.listener != nil {
		svr.listener.Close()
	}
	svr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		level.Info(svr.logger).Log("msg", "shut down")
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for open connections to finish")
	}
}
