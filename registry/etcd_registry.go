package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/jgerrors"
)

// DefaultNamespace is the root path segment used when none is configured.
const DefaultNamespace = "/jg-rpc"

// DefaultLeaseTTL is the session TTL granted to each registration; etcd
// expires and removes the leaf if KeepAlive stops (the directory's session
// loss cleanup, as required by spec.md §4.3).
const DefaultLeaseTTL = int64(10)

// EtcdRegistry implements Registry over an etcd v3 cluster. A leaf's etcd
// lease is the directory's "session": granting a lease and keeping it alive
// is this adapter opening a session at construction and holding it open.
type EtcdRegistry struct {
	client    *clientv3.Client
	namespace string
	log       *zap.SugaredLogger

	mu        sync.Mutex
	leases    map[string]clientv3.LeaseID          // "<iface>/<addr>" -> lease
	cancelers map[string]context.CancelFunc         // KeepAlive cancellation per leaf
	byAddr    map[string]map[string]ServiceInstance // addr -> interfaceName -> instance, for UnregisterAll
}

// NewEtcdRegistry opens a session against endpoints with a bounded
// exponential-backoff retry policy, satisfying spec.md §4.3's "configured
// retry policy (exponential backoff with bounded retries)" requirement,
// which the underlying clientv3.New call does not provide on its own.
func NewEtcdRegistry(endpoints []string, namespace string, log *zap.SugaredLogger) (*EtcdRegistry, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var client *clientv3.Client
	dial := func() error {
		c, err := clientv3.New(clientv3.Config{
			Endpoints:   endpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	retryPolicy := backoff.WithMaxRetries(bo, 5)
	if err := backoff.Retry(dial, retryPolicy); err != nil {
		return nil, jgerrors.Wrap(jgerrors.KindDirectory, err)
	}

	return &EtcdRegistry{
		client:    client,
		namespace: namespace,
		log:       log,
		leases:    make(map[string]clientv3.LeaseID),
		cancelers: make(map[string]context.CancelFunc),
		byAddr:    make(map[string]map[string]ServiceInstance),
	}, nil
}

func (r *EtcdRegistry) providersPath(interfaceName string) string {
	return fmt.Sprintf("%s/%s/providers/", r.namespace, interfaceName)
}

func (r *EtcdRegistry) leafKey(interfaceName string, instance ServiceInstance) string {
	return r.providersPath(interfaceName) + instance.Addr()
}

// Register creates the session-scoped leaf under the interface's providers
// path. Parent nodes are implicit in etcd's flat keyspace, so "creating"
// them is a no-op — they exist the moment any leaf under them exists, and
// spec.md only requires that they survive session loss, which a flat
// keyspace does trivially since they are not separate keys at all.
func (r *EtcdRegistry) Register(interfaceName string, instance ServiceInstance) error {
	ctx := context.Background()
	key := r.leafKey(interfaceName, instance)

	lease, err := r.client.Grant(ctx, DefaultLeaseTTL)
	if err != nil {
		return jgerrors.Wrap(jgerrors.KindDirectory, err)
	}

	if _, err := r.client.Put(ctx, key, instance.Host, clientv3.WithLease(lease.ID)); err != nil {
		return jgerrors.Wrap(jgerrors.KindDirectory, err)
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(keepCtx, lease.ID)
	if err != nil {
		cancel()
		return jgerrors.Wrap(jgerrors.KindDirectory, err)
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.cancelers[key] = cancel
	if r.byAddr[instance.Addr()] == nil {
		r.byAddr[instance.Addr()] = make(map[string]ServiceInstance)
	}
	r.byAddr[instance.Addr()][interfaceName] = instance
	r.mu.Unlock()

	return nil
}

// Unregister deletes the leaf for instance under interfaceName. Absent
// leaves are not an error.
func (r *EtcdRegistry) Unregister(interfaceName string, instance ServiceInstance) error {
	key := r.leafKey(interfaceName, instance)

	r.mu.Lock()
	if cancel, ok := r.cancelers[key]; ok {
		cancel()
		delete(r.cancelers, key)
	}
	delete(r.leases, key)
	if ifaces, ok := r.byAddr[instance.Addr()]; ok {
		delete(ifaces, interfaceName)
		if len(ifaces) == 0 {
			delete(r.byAddr, instance.Addr())
		}
	}
	r.mu.Unlock()

	if _, err := r.client.Delete(context.Background(), key); err != nil {
		return jgerrors.Wrap(jgerrors.KindDirectory, err)
	}
	return nil
}

// UnregisterAll deletes every leaf this adapter previously registered for
// instance. Individual failures are logged, not fatal, per spec.md §4.3.
func (r *EtcdRegistry) UnregisterAll(instance ServiceInstance) error {
	r.mu.Lock()
	ifaces := make([]string, 0, len(r.byAddr[instance.Addr()]))
	for iface := range r.byAddr[instance.Addr()] {
		ifaces = append(ifaces, iface)
	}
	r.mu.Unlock()

	for _, iface := range ifaces {
		if err := r.Unregister(iface, instance); err != nil {
			r.log.Warnw("failed to deregister provider", "interface", iface, "addr", instance.Addr(), "error", err)
		}
	}
	return nil
}

// DiscoverAll enumerates leaves under the interface's providers path,
// parsing each as host:port and skipping malformed entries. A missing path
// yields an empty, non-nil slice, never an error.
func (r *EtcdRegistry) DiscoverAll(interfaceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(context.Background(), r.providersPath(interfaceName), clientv3.WithPrefix())
	if err != nil {
		return nil, jgerrors.Wrap(jgerrors.KindDirectory, err)
	}

	prefix := r.providersPath(interfaceName)
	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		leaf := strings.TrimPrefix(string(kv.Key), prefix)
		instance, ok := parseAddr(leaf)
		if !ok {
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func (r *EtcdRegistry) Discover(interfaceName string) (ServiceInstance, bool, error) {
	return DiscoverFirst(r, interfaceName)
}

// Watch monitors the interface's providers prefix and re-fetches the full
// instance list on any change, matching the teacher's watch semantics.
func (r *EtcdRegistry) Watch(interfaceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	prefix := r.providersPath(interfaceName)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.DiscoverAll(interfaceName)
			if err != nil {
				r.log.Warnw("watch re-fetch failed", "interface", interfaceName, "error", err)
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

// Close releases the adapter's etcd client connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

func parseAddr(leaf string) (ServiceInstance, bool) {
	idx := strings.LastIndex(leaf, ":")
	if idx < 0 || idx == len(leaf)-1 {
		return ServiceInstance{}, false
	}
	port, err := strconv.Atoi(leaf[idx+1:])
	if err != nil {
		return ServiceInstance{}, false
	}
	host := leaf[:idx]
	if host == "" {
		return ServiceInstance{}, false
	}
	return ServiceInstance{Host: host, Port: port}, true
}
