// Package client implements the call engine: discovery, load balancing,
// connection caching, correlation id allocation, and per-call timeout. A
// stub (see the stub package) is the only caller of Engine.
package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/codec"
	"github.com/jinguan/jgrpc/jgerrors"
	"github.com/jinguan/jgrpc/loadbalance"
	"github.com/jinguan/jgrpc/message"
	"github.com/jinguan/jgrpc/registry"
	"github.com/jinguan/jgrpc/transport"
)

// ConnectTimeout is the hard dial deadline spec.md §5 requires.
const ConnectTimeout = 5 * time.Second

// DefaultCallTimeout and MaxCallTimeout bound the per-call wait.
const (
	DefaultCallTimeout = 10 * time.Second
	MaxCallTimeout     = 30 * time.Second
)

// Engine is the client call engine: one per process (or per logical client),
// shared by every stub built against it.
type Engine struct {
	registry       registry.Registry
	balancer       loadbalance.Balancer
	codec          codec.Codec
	connectTimeout time.Duration
	log            *zap.SugaredLogger

	mu      sync.Mutex
	conns   map[string]*transport.ClientTransport // "host:port" -> connection
	counter atomic.Int64
}

// NewEngine builds an Engine that discovers providers via reg and picks
// among them via bal, encoding calls with c. connectTimeout bounds dialing a
// new backend connection; a value <= 0 falls back to ConnectTimeout. A nil
// log is replaced with a no-op logger.
func NewEngine(reg registry.Registry, bal loadbalance.Balancer, c codec.Codec, connectTimeout time.Duration, log *zap.SugaredLogger) *Engine {
	if connectTimeout <= 0 {
		connectTimeout = ConnectTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		registry:       reg,
		balancer:       bal,
		codec:          c,
		connectTimeout: connectTimeout,
		log:            log,
		conns:          make(map[string]*transport.ClientTransport),
	}
}

// nextCorrelationID builds "<counter>-<nanotime>", globally unique within
// the process for the lifetime of any in-flight call.
func (e *Engine) nextCorrelationID() string {
	return fmt.Sprintf("%d-%d", e.counter.Add(1), time.Now().UnixNano())
}

// getOrOpen returns the cached connection for addr, dialing one if absent or
// if the cached one has already failed. Safe under concurrent first use: the
// whole check-then-dial sequence runs under e.mu, so two callers racing to
// open the same addr never both dial.
func (e *Engine) getOrOpen(addr string) (*transport.ClientTransport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.conns[addr]; ok && !t.Closed() {
		return t, nil
	}

	conn, err := net.DialTimeout("tcp", addr, e.connectTimeout)
	if err != nil {
		e.log.Warnw("failed to connect to backend", "addr", addr, "error", err)
		return nil, jgerrors.Wrap(jgerrors.KindConnect, err)
	}
	t := transport.NewClientTransport(conn, e.codec, e.log)
	e.conns[addr] = t
	return t, nil
}

// pick runs discovery then the configured balancer, turning an empty
// provider set into NoProvider before any network I/O happens (S3).
func (e *Engine) pick(interfaceName string) (registry.ServiceInstance, error) {
	instances, err := e.registry.DiscoverAll(interfaceName)
	if err != nil {
		return registry.ServiceInstance{}, jgerrors.Wrap(jgerrors.KindDirectory, err)
	}
	instance, ok := e.balancer.Pick(instances, interfaceName)
	if !ok {
		return registry.ServiceInstance{}, jgerrors.New(jgerrors.KindNoProvider, fmt.Sprintf("no provider for %s", interfaceName))
	}
	return instance, nil
}

// CallAsync performs discovery, balancing, connection setup, and dispatch,
// then returns immediately with a Future the caller (or the stub on its
// behalf) awaits. This is the engine half of the spec's "the stub returns
// the handle immediately after step 4" contract.
func (e *Engine) CallAsync(interfaceName, methodName string, args []any, argTypes []string) (*Future, error) {
	instance, err := e.pick(interfaceName)
	if err != nil {
		return nil, err
	}

	t, err := e.getOrOpen(instance.Addr())
	if err != nil {
		return nil, err
	}

	req := &message.Request{
		InterfaceName: interfaceName,
		MethodName:    methodName,
		Args:          args,
		ArgTypes:      argTypes,
		CorrelationID: e.nextCorrelationID(),
	}

	respCh, err := t.Send(req)
	if err != nil {
		return nil, jgerrors.Wrap(jgerrors.KindConnectionLost, err)
	}

	return &Future{transport: t, correlationID: req.CorrelationID, respCh: respCh}, nil
}

// Call is the synchronous form: CallAsync followed by a bounded Wait.
func (e *Engine) Call(interfaceName, methodName string, args []any, argTypes []string, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if timeout > MaxCallTimeout {
		timeout = MaxCallTimeout
	}

	future, err := e.CallAsync(interfaceName, methodName, args, argTypes)
	if err != nil {
		return nil, err
	}
	return future.Wait(timeout)
}

// CloseAll tears down every cached connection. In-flight calls on those
// connections observe ConnectionLost via their transport's recvLoop.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for addr, t := range e.conns {
		_ = t.Close()
		delete(e.conns, addr)
	}
}
