// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockcache

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache traffic. Per-block caches are created for every block,
// so one Metrics value is registered once and shared by all of them. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	scriptHits    prometheus.Counter
	scriptMisses  prometheus.Counter
	moduleHits    prometheus.Counter
	moduleMisses  prometheus.Counter
	moduleFetches prometheus.Counter
	globalLocks   prometheus.Counter
}

func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scriptHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_cache_hits",
			Help:      "Number of script cache hits",
		}),
		scriptMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_cache_misses",
			Help:      "Number of script cache misses",
		}),
		moduleHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_cache_hits",
			Help:      "Number of module cache hits",
		}),
		moduleMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_cache_misses",
			Help:      "Number of module cache misses",
		}),
		moduleFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_cache_fetches",
			Help:      "Number of module cache fallback invocations",
		}),
		globalLocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_cache_global_locks",
			Help:      "Number of times the whole module cache was locked",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.scriptHits),
		registerer.Register(m.scriptMisses),
		registerer.Register(m.moduleHits),
		registerer.Register(m.moduleMisses),
		registerer.Register(m.moduleFetches),
		registerer.Register(m.globalLocks),
	)
	return m, errs.Err
}

func (m *Metrics) scriptHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.scriptHits.Inc()
	} else {
		m.scriptMisses.Inc()
	}
}

func (m *Metrics) moduleHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.moduleHits.Inc()
	} else {
		m.moduleMisses.Inc()
	}
}

func (m *Metrics) moduleFetch() {
	if m != nil {
		m.moduleFetches.Inc()
	}
}

func (m *Metrics) globalLock() {
	if m != nil {
		m.globalLocks.Inc()
	}
}
