package loadbalance

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/jinguan/jgrpc/registry"
)

// virtualNodes is the number of ring positions each real instance occupies.
// Without virtual nodes a handful of instances can cluster unevenly on the
// ring; 160 per instance keeps the distribution close to uniform.
const virtualNodes = 160

// ConsistentHashBalancer maps a call key to the same instance as long as the
// instance set is unchanged, giving cache affinity to stateful services.
// The ring is rebuilt from the instances passed to each Pick call; no ring
// is kept between calls, even when the same set is passed again.
type ConsistentHashBalancer struct{}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{}
}

type ringEntry struct {
	pos      uint64
	instance registry.ServiceInstance
}

func (b *ConsistentHashBalancer) Pick(instances []registry.ServiceInstance, key string) (registry.ServiceInstance, bool) {
	if len(instances) == 0 {
		return registry.ServiceInstance{}, false
	}
	if len(instances) == 1 {
		return instances[0], true
	}

	ring := buildRing(instances)
	target := hashPosition(key)

	idx := sort.Search(len(ring), func(i int) bool { return ring[i].pos >= target })
	if idx == len(ring) {
		idx = 0
	}
	return ring[idx].instance, true
}

func buildRing(instances []registry.ServiceInstance) []ringEntry {
	ring := make([]ringEntry, 0, len(instances)*virtualNodes)
	for _, instance := range instances {
		addr := instance.Addr()
		for i := 0; i < virtualNodes; i++ {
			key := fmt.Sprintf("%s#%d", addr, i)
			ring = append(ring, ringEntry{pos: hashPosition(key), instance: instance})
		}
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i].pos < ring[j].pos })
	return ring
}

// hashPosition places key on the 64-bit ring using the first 8 bytes of its
// MD5 digest, read big-endian, per the wire-compatible hashing scheme this
// runtime shares with its reference implementation.
func hashPosition(key string) uint64 {
	sum := md5.Sum([]byte(key))
	return binary.BigEndian.Uint64(sum[:8])
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
