package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus namespace shared by all metrics of the service.
const Namespace = "freqcache"

// Metrics contains all service-level metrics (not cache-specific; per-cache
// metrics are registered by the cache package itself).
type Metrics struct {
	ServiceStatus     *prometheus.GaugeVec
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all service metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of gateway requests",
			},
			[]string{"operation", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Gateway request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "service",
				Name:      "errors_total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Health check status (1=healthy, 0.5=degraded, 0=unhealthy)",
			},
			[]string{"component"},
		),
	}
}

// ObserveRequest records a completed gateway request with its duration.
func (m *Metrics) ObserveRequest(operation, status string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordError increments the error counter for a component and error class.
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// SetHealth records a health check result for a component.
func (m *Metrics) SetHealth(component string, value float64) {
	m.HealthCheckStatus.WithLabelValues(component).Set(value)
}
