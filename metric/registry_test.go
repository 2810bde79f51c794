package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	err := registry.RegisterCounter("test-service", "test_counter", counter)
	require.NoError(t, err)

	counter.Inc()

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_counter" {
			found = true
			break
		}
	}
	assert.True(t, found, "counter should be registered in Prometheus registry")
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("svc", "dup_counter", counter))

	err := registry.RegisterCounter("svc", "dup_counter", counter)
	assert.Error(t, err, "duplicate registration should fail")
}

func TestMetricsRegistry_RegisterGaugeAndHistogram(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})
	require.NoError(t, registry.RegisterGauge("svc", "test_gauge", gauge))
	gauge.Set(42)

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_histogram",
		Help: "A test histogram",
	})
	require.NoError(t, registry.RegisterHistogram("svc", "test_histogram", histogram))
	histogram.Observe(0.5)

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range metricFamilies {
		names[mf.GetName()] = true
	}
	assert.True(t, names["test_gauge"])
	assert.True(t, names["test_histogram"])
}

func TestMetricsRegistry_RegisterVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_counter_vec",
		Help: "A test counter vec",
	}, []string{"label"})
	require.NoError(t, registry.RegisterCounterVec("svc", "test_counter_vec", counterVec))
	counterVec.WithLabelValues("a").Inc()

	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "test_gauge_vec",
		Help: "A test gauge vec",
	}, []string{"label"})
	require.NoError(t, registry.RegisterGaugeVec("svc", "test_gauge_vec", gaugeVec))
	gaugeVec.WithLabelValues("b").Set(1)
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "removable_counter",
		Help: "A test counter",
	})
	require.NoError(t, registry.RegisterCounter("svc", "removable_counter", counter))

	assert.True(t, registry.Unregister("svc", "removable_counter"))
	assert.False(t, registry.Unregister("svc", "removable_counter"), "second unregister should fail")

	// Re-registration after unregister should succeed
	require.NoError(t, registry.RegisterCounter("svc", "removable_counter", counter))
}

func TestCoreMetrics_Helpers(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	// Helpers should not panic and should surface in a gather
	core.ObserveRequest("get", "hit", 0)
	core.RecordError("cache", "invalid")
	core.SetHealth("sweeper", 1)

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, metricFamilies)
}
