// Package metric provides Prometheus metrics infrastructure for the cache
// service.
//
// MetricsRegistry wraps a dedicated prometheus.Registry and tracks every
// collector under a "service.metric" key so duplicate registrations are
// caught before Prometheus sees them. Core service metrics (gateway request
// counters and durations, error counters, health gauges) are registered at
// construction; components such as the cache register their own collectors
// through the MetricsRegistrar interface.
//
// Server exposes the registry over HTTP at /metrics (OpenMetrics enabled)
// together with a trivial /health endpoint, typically on a separate port
// from the data-plane gateway.
package metric
