package registry

import (
	"sync"
	"time"
)

// staleness is the maximum time a cached provider set may be served before
// being refreshed, bounding the staleness spec.md §9 allows when caching
// discovery results instead of querying the directory on every call.
const staleness = 1 * time.Second

// WatchingDiscoverer layers a bounded-staleness cache over a Registry,
// refreshed both by the directory's push-based Watch and by a synchronous
// re-fetch on any lookup that finds the entry older than staleness. If that
// re-fetch fails, the older entry is served.
type WatchingDiscoverer struct {
	backend Registry

	mu      sync.RWMutex
	cache   map[string][]ServiceInstance
	fetched map[string]time.Time
	started map[string]bool
}

// NewWatchingDiscoverer wraps backend with the discovery cache.
func NewWatchingDiscoverer(backend Registry) *WatchingDiscoverer {
	return &WatchingDiscoverer{
		backend: backend,
		cache:   make(map[string][]ServiceInstance),
		fetched: make(map[string]time.Time),
		started: make(map[string]bool),
	}
}

// DiscoverAll returns the cached provider set for interfaceName, refreshing
// it synchronously if this is the first lookup or the cache has gone stale,
// and starting a background watch to keep it fresh afterwards.
func (w *WatchingDiscoverer) DiscoverAll(interfaceName string) ([]ServiceInstance, error) {
	w.mu.RLock()
	instances, fetchedAt, ok := w.cache[interfaceName], w.fetched[interfaceName], w.started[interfaceName]
	w.mu.RUnlock()

	if ok && time.Since(fetchedAt) < staleness {
		return instances, nil
	}

	fresh, err := w.backend.DiscoverAll(interfaceName)
	if err != nil {
		if ok {
			// Serve the stale value rather than fail a call outright when
			// the directory is briefly unreachable but we have prior data.
			return instances, nil
		}
		return nil, err
	}

	w.mu.Lock()
	w.cache[interfaceName] = fresh
	w.fetched[interfaceName] = time.Now()
	alreadyWatching := w.started[interfaceName]
	w.started[interfaceName] = true
	w.mu.Unlock()

	if !alreadyWatching {
		go w.watch(interfaceName)
	}

	return fresh, nil
}

// Discover returns the first entry of DiscoverAll.
func (w *WatchingDiscoverer) Discover(interfaceName string) (ServiceInstance, bool, error) {
	return DiscoverFirst(w, interfaceName)
}

// Register, Unregister, UnregisterAll, Watch, and Close pass straight
// through to the backend: caching only applies to the read path a client
// engine drives through DiscoverAll.
func (w *WatchingDiscoverer) Register(interfaceName string, instance ServiceInstance) error {
	return w.backend.Register(interfaceName, instance)
}

func (w *WatchingDiscoverer) Unregister(interfaceName string, instance ServiceInstance) error {
	return w.backend.Unregister(interfaceName, instance)
}

func (w *WatchingDiscoverer) UnregisterAll(instance ServiceInstance) error {
	return w.backend.UnregisterAll(instance)
}

func (w *WatchingDiscoverer) Watch(interfaceName string) <-chan []ServiceInstance {
	return w.backend.Watch(interfaceName)
}

func (w *WatchingDiscoverer) Close() error {
	return w.backend.Close()
}

func (w *WatchingDiscoverer) watch(interfaceName string) {
	for updated := range w.backend.Watch(interfaceName) {
		w.mu.Lock()
		w.cache[interfaceName] = updated
		w.fetched[interfaceName] = time.Now()
		w.mu.Unlock()
	}
}
