package loadbalance

import (
	"math/rand/v2"

	"github.com/jinguan/jgrpc/registry"
)

// RandomBalancer picks a uniformly random instance on every call.
// math/rand/v2's global functions are safe for concurrent use without any
// additional locking on our part.
type RandomBalancer struct{}

func NewRandomBalancer() *RandomBalancer {
	return &RandomBalancer{}
}

func (b *RandomBalancer) Pick(instances []registry.ServiceInstance, key string) (registry.ServiceInstance, bool) {
	if len(instances) == 0 {
		return registry.ServiceInstance{}, false
	}
	if len(instances) == 1 {
		return instances[0], true
	}
	return instances[rand.IntN(len(instances))], true
}

func (b *RandomBalancer) Name() string {
	return "Random"
}
