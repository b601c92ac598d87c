// Package lifecycle composes the dispatch server with the directory: a
// PublishServer registers locally and with the directory together, and
// reverses that on shutdown in the order spec.md §4.8 requires —
// unregister, drain, then close.
package lifecycle

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/jgerrors"
	"github.com/jinguan/jgrpc/registry"
	"github.com/jinguan/jgrpc/server"
)

// DefaultDrainInterval is the bounded wait between unpublishing and closing
// sockets, letting active handlers finish.
const DefaultDrainInterval = 5 * time.Second

type publishedInterface struct {
	interfaceName string
}

// PublishServer is a server.Server plus directory registration.
type PublishServer struct {
	srv *server.Server
	reg registry.Registry
	log *zap.SugaredLogger

	ownHost string
	ownPort int

	mu        sync.Mutex
	published []publishedInterface
}

// NewPublishServer pairs advertiseHost with port for every future Publish
// call. If advertiseHost is empty, the machine's own address (first
// non-loopback IPv4) is detected automatically.
func NewPublishServer(srv *server.Server, reg registry.Registry, advertiseHost string, port int, log *zap.SugaredLogger) (*PublishServer, error) {
	host := advertiseHost
	if host == "" {
		detected, err := detectOwnHost()
		if err != nil {
			return nil, err
		}
		host = detected
	}
	return &PublishServer{srv: srv, reg: reg, log: log, ownHost: host, ownPort: port}, nil
}

func detectOwnHost() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("lifecycle: enumerate interfaces: %w", err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("lifecycle: no non-loopback IPv4 address found")
}

func (p *PublishServer) ownInstance() registry.ServiceInstance {
	return registry.ServiceInstance{Host: p.ownHost, Port: p.ownPort}
}

// Publish registers impl locally under ifaceNames and publishes
// (interfaceName, own endpoint) at the directory for each. A directory
// registration failure aborts — per spec.md §7, DirectoryError at startup
// propagates rather than being swallowed.
func (p *PublishServer) Publish(impl any, ifaceNames ...string) error {
	if err := p.srv.Register(impl, ifaceNames...); err != nil {
		return err
	}

	instance := p.ownInstance()
	for _, name := range ifaceNames {
		if err := p.reg.Register(name, instance); err != nil {
			return jgerrors.Wrap(jgerrors.KindDirectory, err)
		}
		p.mu.Lock()
		p.published = append(p.published, publishedInterface{interfaceName: name})
		p.mu.Unlock()
	}
	return nil
}

// Serve binds address and blocks, delegating to the underlying server.
func (p *PublishServer) Serve(address string) error {
	return p.srv.Serve(address)
}

// Shutdown unregisters from the directory, sleeps drainInterval to let
// in-flight requests finish, then stops the dispatcher. Directory failures
// here are logged, not fatal — a stuck directory must not block a shutdown.
func (p *PublishServer) Shutdown(ctx context.Context, drainInterval time.Duration) error {
	if drainInterval <= 0 {
		drainInterval = DefaultDrainInterval
	}

	if err := p.reg.UnregisterAll(p.ownInstance()); err != nil {
		p.log.Warnw("failed to unregister from directory at shutdown", "error", err)
	}

	time.Sleep(drainInterval)

	return p.srv.Shutdown(ctx)
}
