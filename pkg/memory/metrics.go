package memory

import (
	"cipherdb/pkg/concurrency/lock"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cipherdb"

type poolMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	flushes   prometheus.Counter
	commits   prometheus.Counter
	aborts    prometheus.Counter
}

// newPoolMetrics registers the buffer pool's collectors on reg. A nil reg
// yields working but unregistered collectors.
func newPoolMetrics(reg prometheus.Registerer, cachedPages func() int, locks *lock.LockManager) *poolMetrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "buffer_pool",
			Name:      name,
			Help:      help,
		})
	}

	m := &poolMetrics{
		hits:      counter("hits_total", "Page requests served from the cache."),
		misses:    counter("misses_total", "Page requests that read from disk."),
		evictions: counter("evictions_total", "Clean pages evicted to make room."),
		flushes:   counter("flushed_pages_total", "Dirty pages written back to disk."),
		commits:   counter("commits_total", "Transactions committed."),
		aborts:    counter("aborts_total", "Transactions aborted."),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "buffer_pool",
		Name:      "cached_pages",
		Help:      "Pages currently held in memory.",
	}, func() float64 { return float64(cachedPages()) })

	lockCounter := func(name, help string, read func(lock.Stats) uint64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "lock",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(locks.Stats())) })
	}
	lockCounter("waits_total", "Lock requests that had to wait.", func(s lock.Stats) uint64 { return s.Waits })
	lockCounter("deadlocks_total", "Lock requests aborted to break a cycle.", func(s lock.Stats) uint64 { return s.Deadlocks })
	lockCounter("timeouts_total", "Lock requests aborted after waiting too long.", func(s lock.Stats) uint64 { return s.Timeouts })

	return m
}
