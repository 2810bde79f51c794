package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/barberbradleyt/Cache/metric"
)

// cacheMetrics holds Prometheus metrics for cache operations.
type cacheMetrics struct {
	// Counter metrics - directly incremented without stats duplication
	hits        prometheus.Counter
	misses      prometheus.Counter
	sets        prometheus.Counter
	deletes     prometheus.Counter
	evictions   prometheus.Counter
	expirations prometheus.Counter

	// Gauge metrics - updated on operations
	size prometheus.Gauge

	// sweepDuration observes how long each sweeper tick holds the lock
	sweepDuration prometheus.Histogram
}

func counter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "cache",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newCacheMetrics creates and registers cache metrics with the provided registry.
func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		hits:        counter(prefix, "hits_total", "Total number of cache hits"),
		misses:      counter(prefix, "misses_total", "Total number of cache misses"),
		sets:        counter(prefix, "sets_total", "Total number of cache set operations"),
		deletes:     counter(prefix, "deletes_total", "Total number of cache delete operations"),
		evictions:   counter(prefix, "evictions_total", "Total number of capacity evictions"),
		expirations: counter(prefix, "expirations_total", "Total number of expired entries removed"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of entries in cache",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "cache",
			Name:        "sweep_duration_seconds",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Duration of background expiry sweep ticks",
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	counters := map[string]prometheus.Counter{
		"cache_hits":        m.hits,
		"cache_misses":      m.misses,
		"cache_sets":        m.sets,
		"cache_deletes":     m.deletes,
		"cache_evictions":   m.evictions,
		"cache_expirations": m.expirations,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(prefix, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(prefix, "cache_sweep_duration", m.sweepDuration); err != nil {
		return nil, err
	}

	return m, nil
}

// recordHit increments the hit counter.
func (m *cacheMetrics) recordHit() {
	m.hits.Inc()
}

// recordMiss increments the miss counter.
func (m *cacheMetrics) recordMiss() {
	m.misses.Inc()
}

// recordSet increments the set counter.
func (m *cacheMetrics) recordSet() {
	m.sets.Inc()
}

// recordDelete increments the delete counter.
func (m *cacheMetrics) recordDelete() {
	m.deletes.Inc()
}

// recordEviction increments the capacity eviction counter.
func (m *cacheMetrics) recordEviction() {
	m.evictions.Inc()
}

// recordExpiration increments the expiration counter.
func (m *cacheMetrics) recordExpiration() {
	m.expirations.Inc()
}

// updateSize sets the current cache size.
func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}

// observeSweep records the duration of one sweep tick.
func (m *cacheMetrics) observeSweep(elapsed time.Duration) {
	m.sweepDuration.Observe(elapsed.Seconds())
}
