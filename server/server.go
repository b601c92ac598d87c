// Package server implements the RPC dispatch engine: it accepts TCP
// connections, decodes frames, looks up a registered implementation by
// interface name, invokes the resolved method, and encodes the reply.
//
// Pipeline per connection:
//
//	Accept -> handleConn (one goroutine reads frames, sequentially)
//	  -> decode -> submit to a bounded worker pool
//	    -> middleware chain -> businessHandler (reflect.Call) -> encode -> write
//
// The worker pool is the Go-idiomatic rendition of spec.md §5's "small fixed
// set of I/O workers": Go's scheduler already multiplexes goroutines onto
// OS threads, so one goroutine per connection for reading is the natural
// "many connections, few OS threads" shape; the bounded pool exists so that
// a burst of concurrent requests (or a slow async handler blocking a
// worker) cannot spawn unbounded goroutines.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/codec"
	"github.com/jinguan/jgrpc/message"
	"github.com/jinguan/jgrpc/middleware"
	"github.com/jinguan/jgrpc/protocol"
)

// DefaultIdleTimeout is the read-idle deadline armed on every connection;
// writes do not reset it. Configurable via WithIdleTimeout.
const DefaultIdleTimeout = 30 * time.Second

// Server is the RPC dispatch engine: service registry, worker pool, and
// accept loop.
type Server struct {
	mu       sync.RWMutex
	services map[string]*service

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	listener    net.Listener
	idleTimeout time.Duration
	workerCount int
	workQueue   chan workItem

	wg           sync.WaitGroup // in-flight requests, for graceful shutdown
	shuttingDown atomic.Bool

	log *zap.SugaredLogger
}

type workItem struct {
	req     message.Request
	tag     byte
	codec   codec.Codec
	conn    net.Conn
	writeMu *sync.Mutex
}

// Option configures a Server at construction.
type Option func(*Server)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithWorkerCount overrides the default (runtime.GOMAXPROCS(0)) worker pool size.
func WithWorkerCount(n int) Option {
	return func(s *Server) { s.workerCount = n }
}

// WithLogger attaches a zap logger; defaults to a no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer builds a Server with an empty service map.
func NewServer(opts ...Option) *Server {
	s := &Server{
		services:    make(map[string]*service),
		idleTimeout: DefaultIdleTimeout,
		workerCount: runtime.GOMAXPROCS(0),
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register records impl, a pointer to a struct, under every name in
// ifaceNames. Go has no runtime reflection over "interfaces satisfied" the
// way the source language does (see SPEC_FULL.md §4.7/§9), so the caller
// names the interfaces explicitly; Register fails if impl is nil or no
// names are given. The service map is append-only for the server's
// lifetime: writes only happen here, before Serve is called.
func (s *Server) Register(impl any, ifaceNames ...string) error {
	if impl == nil {
		return fmt.Errorf("jgrpc: cannot register a nil implementation")
	}
	if len(ifaceNames) == 0 {
		return fmt.Errorf("jgrpc: implementation satisfies no interfaces")
	}

	svc, err := newService(impl)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range ifaceNames {
		s.services[name] = svc
	}
	return nil
}

// Use appends a middleware to the dispatch chain, applied in the order added.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Serve binds address and blocks accepting connections until Shutdown
// closes the listener.
func (s *Server) Serve(address string) error {
	listener, err := listenTCP(address)
	if err != nil {
		return err
	}
	s.listener = listener

	s.handler = middleware.Chain(s.middlewares...)(s.businessHandler)

	s.workQueue = make(chan workItem, s.workerCount*4)
	for i := 0; i < s.workerCount; i++ {
		go s.runWorker()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shuttingDown.Load() {
				return nil
			}
			return err
		}
		tuneConn(conn)
		go s.handleConn(conn)
	}
}

// Addr returns the bound listener address; valid only after Serve has
// started listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) runWorker() {
	for item := range s.workQueue {
		s.processRequest(item)
	}
}

// handleConn owns the connection's single reader. Reads are sequential —
// that is the only way to correctly parse frame boundaries on a byte
// stream — but each decoded request is handed off to the worker pool so a
// slow handler does not block this goroutine from reading the next frame.
// When the work queue is full, the request is processed inline on this
// goroutine, and the next frame is read only after it completes.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{}
	reader := protocol.NewFrameReader(bufio.NewReader(conn))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		header, body, err := reader.Next()
		if err != nil {
			return
		}

		if header.MsgType == protocol.MsgHeartbeatRequest {
			s.replyHeartbeat(conn, writeMu, header.Serializer)
			continue
		}
		if header.MsgType != protocol.MsgRequest {
			continue
		}

		c, err := codec.Get(header.Serializer)
		if err != nil {
			// UnknownSerializer is fatal to the connection.
			s.log.Warnw("unknown serializer, closing connection", "tag", header.Serializer, "error", err)
			return
		}

		var req message.Request
		if err := c.Decode(body, &req); err != nil {
			s.log.Warnw("failed to decode request body, dropping frame", "error", err)
			continue
		}

		select {
		case s.workQueue <- workItem{req: req, tag: header.Serializer, codec: c, conn: conn, writeMu: writeMu}:
		default:
			// Pool saturated: process inline rather than drop the call.
			s.processRequest(workItem{req: req, tag: header.Serializer, codec: c, conn: conn, writeMu: writeMu})
		}
	}
}

func (s *Server) replyHeartbeat(conn net.Conn, writeMu *sync.Mutex, tag byte) {
	writeMu.Lock()
	defer writeMu.Unlock()
	body := []byte("pong")
	header := &protocol.Header{Serializer: tag, MsgType: protocol.MsgHeartbeatResponse, BodyLen: uint32(len(body))}
	if err := protocol.Encode(conn, header, body); err != nil {
		s.log.Debugw("failed to write heartbeat response", "error", err)
	}
}

func (s *Server) processRequest(item workItem) {
	s.wg.Add(1)
	defer s.wg.Done()

	resp := s.handler(context.Background(), &item.req)
	resp.CorrelationID = item.req.CorrelationID

	body, err := item.codec.Encode(resp)
	if err != nil {
		s.log.Errorw("failed to encode response", "error", err)
		return
	}

	item.writeMu.Lock()
	defer item.writeMu.Unlock()
	header := &protocol.Header{Serializer: item.tag, MsgType: protocol.MsgResponse, BodyLen: uint32(len(body))}
	if err := protocol.Encode(item.conn, header, body); err != nil {
		s.log.Debugw("failed to write response", "error", err)
	}
}

// businessHandler is the innermost handler wrapped by the middleware chain:
// service lookup, method resolution, invocation, and future awaiting.
func (s *Server) businessHandler(_ context.Context, req *message.Request) *message.Response {
	s.mu.RLock()
	svc, ok := s.services[req.InterfaceName]
	s.mu.RUnlock()
	if !ok {
		return message.Fail(req.CorrelationID, fmt.Sprintf("Service not found: %s", req.InterfaceName))
	}

	entry, ok := svc.resolve(req.MethodName, req.ArgTypes)
	if !ok {
		return message.Fail(req.CorrelationID, fmt.Sprintf("Method not found: %s.%s", req.InterfaceName, req.MethodName))
	}

	result, err := svc.invoke(entry, req.Args)
	if err != nil {
		return message.Fail(req.CorrelationID, err.Error())
	}

	if entry.isAsync {
		future, ok := result.(*FutureResult)
		if !ok || future == nil {
			return message.Fail(req.CorrelationID, "async method returned no future")
		}
		// Blocks this worker goroutine only; the connection's frame
		// reader keeps running independently (see handleConn).
		value, ferr := future.Wait()
		if ferr != nil {
			return message.Fail(req.CorrelationID, ferr.Error())
		}
		return message.Ok(req.CorrelationID, value)
	}

	return message.Ok(req.CorrelationID, result)
}

// Shutdown stops accepting new connections and waits (bounded by ctx) for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jgrpc: timed out waiting for in-flight requests: %w", ctx.Err())
	}
}
