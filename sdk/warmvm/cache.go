// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package warmvm

import (
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"
)

// DefaultCapacity bounds the number of distinct configurations kept warm.
const DefaultCapacity = 8

// Cache keeps warmed-up VMs for the life of the process, keyed by the
// fingerprint of the configuration they were built from. Fingerprints change
// rarely, so when the cache is full it is cleared instead of evicting a
// single entry.
type Cache[V any] struct {
	lock     sync.RWMutex
	vms      map[ids.ID]V
	capacity int

	hits     prometheus.Counter
	misses   prometheus.Counter
	builds   prometheus.Counter
	flushes  prometheus.Counter
	overflow prometheus.Counter
}

// New returns an empty cache holding at most [capacity] VMs. Metrics are
// registered on [registerer] under [namespace].
func New[V any](capacity int, namespace string, registerer prometheus.Registerer) (*Cache[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache[V]{
		vms:      make(map[ids.ID]V, capacity),
		capacity: capacity,
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_vm_hits",
			Help:      "Number of warm VM cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_vm_misses",
			Help:      "Number of warm VM cache misses",
		}),
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_vm_builds",
			Help:      "Number of VMs built and inserted into the warm VM cache",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_vm_flushes",
			Help:      "Number of explicit warm VM cache flushes",
		}),
		overflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warm_vm_overflow_clears",
			Help:      "Number of times the warm VM cache was cleared for being full",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(c.hits),
		registerer.Register(c.misses),
		registerer.Register(c.builds),
		registerer.Register(c.flushes),
		registerer.Register(c.overflow),
	)
	return c, errs.Err
}

// GetOrCreate returns the VM cached for [id]. On a miss it calls [create]
// under the write lock, unless another goroutine inserted [id] in the
// meantime, in which case that VM is returned. Errors from [create] are
// returned and nothing is cached.
func (c *Cache[V]) GetOrCreate(id ids.ID, create func() (V, error)) (V, error) {
	c.lock.RLock()
	vm, ok := c.vms[id]
	c.lock.RUnlock()
	if ok {
		c.hits.Inc()
		return vm, nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	// Another caller built it while we waited for the lock.
	if vm, ok := c.vms[id]; ok {
		c.hits.Inc()
		return vm, nil
	}
	c.misses.Inc()

	vm, err := create()
	if err != nil {
		return vm, err
	}

	if len(c.vms) >= c.capacity {
		log.Info("warm VM cache full, clearing", "size", len(c.vms))
		c.vms = make(map[ids.ID]V, c.capacity)
		c.overflow.Inc()
	}
	c.vms[id] = vm
	c.builds.Inc()
	return vm, nil
}

// Contains reports whether a VM is cached for [id].
func (c *Cache[V]) Contains(id ids.ID) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.vms[id]
	return ok
}

// Flush drops every cached VM. Used when VM-affecting configuration may have
// changed in a way fingerprints can't see. Returns the number dropped.
func (c *Cache[V]) Flush() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	n := len(c.vms)
	c.vms = make(map[ids.ID]V, c.capacity)
	c.flushes.Inc()
	log.Info("flushed warm VM cache", "dropped", n)
	return n
}

// Len returns the number of cached VMs.
func (c *Cache[V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.vms)
}

// Capacity returns the maximum number of cached VMs.
func (c *Cache[V]) Capacity() int { return c.capacity }
