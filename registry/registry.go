// Package registry adapts the RPC runtime to the external service directory
// (an etcd cluster standing in for the strongly-consistent hierarchical
// coordinator the spec describes at its interface). It owns the schema
//
//	/<namespace>/<interface-name>/providers/<host>:<port>
//
// and the operations issued against it: register, unregister, unregister
// all, and discovery.
package registry

import "fmt"

// ServiceInstance is one provider endpoint: a running server offering one or
// more interfaces at host:port.
type ServiceInstance struct {
	Host string
	Port int
}

// Addr renders the instance the way it is stored as a directory leaf name.
func (s ServiceInstance) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Registry is the adapter contract every discovery backend implements.
type Registry interface {
	// Register creates any missing parent nodes, then the session-scoped
	// leaf for instance under interfaceName. Idempotent if already present.
	Register(interfaceName string, instance ServiceInstance) error

	// Unregister deletes the leaf for instance under interfaceName. Silently
	// succeeds if the leaf is already absent; never deletes parent nodes.
	Unregister(interfaceName string, instance ServiceInstance) error

	// UnregisterAll deletes every leaf this adapter instance previously
	// registered under instance, across every interface. Individual
	// deletion failures are logged, not fatal.
	UnregisterAll(instance ServiceInstance) error

	// DiscoverAll enumerates every provider currently registered for
	// interfaceName. A missing path yields an empty, non-nil slice.
	DiscoverAll(interfaceName string) ([]ServiceInstance, error)

	// Discover returns the first entry of DiscoverAll, or ok=false if the
	// provider set is empty.
	Discover(interfaceName string) (ServiceInstance, bool, error)

	// Watch emits an updated provider list for interfaceName whenever the
	// directory observes a change under its providers path.
	Watch(interfaceName string) <-chan []ServiceInstance

	// Close releases the adapter's session with the directory.
	Close() error
}

// DiscoverFirst is the shared implementation of Registry.Discover in terms
// of DiscoverAll, usable by any backend.
func DiscoverFirst(r Registry, interfaceName string) (ServiceInstance, bool, error) {
	all, err := r.DiscoverAll(interfaceName)
	if err != nil {
		return ServiceInstance{}, false, err
	}
	if len(all) == 0 {
		return ServiceInstance{}, false, nil
	}
	return all[0], true, nil
}
