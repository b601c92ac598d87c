// Package loadbalance implements pure functions from a provider set and a
// call key to a single chosen provider.
//
// Three strategies are implemented:
//   - RoundRobin:     stateless services, equal-capacity instances
//   - Random:         no affinity requirement
//   - ConsistentHash: cache affinity — the same key keeps landing on the
//     same instance as long as the instance set is stable
package loadbalance

import "github.com/jinguan/jgrpc/registry"

// Balancer picks one instance from the available set. Pick is called on
// every RPC call and must be goroutine-safe. An empty set yields ok=false,
// never an error — the caller (client.Engine) turns that into NoProvider.
type Balancer interface {
	Pick(instances []registry.ServiceInstance, key string) (registry.ServiceInstance, bool)
	Name() string
}
