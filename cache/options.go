package cache

import (
	"github.com/barberbradleyt/Cache/health"
	"github.com/barberbradleyt/Cache/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// cacheOptions holds internal configuration for cache instances.
// Stats are ALWAYS collected - they are not optional.
// Metrics are optional and exposed via WithMetrics().
type cacheOptions[V any] struct {
	// metricsReg is optional - if provided, cache stats are also exposed as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string

	// evictCallback is called when items leave the cache involuntarily
	evictCallback EvictCallback[V]

	// healthMonitor receives sweeper heartbeats when set
	healthMonitor *health.Monitor
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked whenever an entry leaves the
// cache other than by Get returning it: capacity eviction, expiry, Delete,
// and Clear. The callback runs outside the cache lock.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithHealthMonitor wires the background sweeper to report liveness through
// the given monitor after every tick.
func WithHealthMonitor[V any](monitor *health.Monitor) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.healthMonitor = monitor
	}
}

// applyOptions applies functional options to create final cache configuration.
func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
