package loadbalance

import (
	"sync"
	"sync/atomic"

	"github.com/jinguan/jgrpc/registry"
)

// RoundRobinBalancer distributes calls evenly across a provider set,
// rotating independently per interface name (the call key) so that a burst
// of calls to one service does not perturb another service's rotation.
type RoundRobinBalancer struct {
	counters sync.Map // key -> *int64
}

// NewRoundRobinBalancer returns a ready-to-use round-robin balancer.
func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{}
}

func (b *RoundRobinBalancer) Pick(instances []registry.ServiceInstance, key string) (registry.ServiceInstance, bool) {
	if len(instances) == 0 {
		return registry.ServiceInstance{}, false
	}
	if len(instances) == 1 {
		return instances[0], true
	}

	counterVal, _ := b.counters.LoadOrStore(key, new(int64))
	counter := counterVal.(*int64)
	// fetch-then-add: the value used is the pre-increment counter, so the
	// first Pick() for a fresh key lands on index 0.
	index := (atomic.AddInt64(counter, 1) - 1) % int64(len(instances))
	return instances[index], true
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
