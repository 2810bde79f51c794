package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()

	m.UpdateHealthy("sweeper", "tick completed")

	status, exists := m.Get("sweeper")
	require.True(t, exists)
	assert.Equal(t, "sweeper", status.Component)
	assert.True(t, status.IsHealthy())
	assert.False(t, status.Timestamp.IsZero())

	_, exists = m.Get("unknown")
	assert.False(t, exists)
}

func TestMonitor_GetAllReturnsCopy(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("cache", "ok")
	m.UpdateDegraded("sweeper", "slow tick")

	all := m.GetAll()
	assert.Len(t, all, 2)

	delete(all, "cache")
	_, exists := m.Get("cache")
	assert.True(t, exists, "mutating the returned map must not affect the monitor")
}

func TestMonitor_AggregateHealth(t *testing.T) {
	m := NewMonitor()

	// Empty monitor aggregates healthy
	agg := m.AggregateHealth("service")
	assert.True(t, agg.IsHealthy())

	m.UpdateHealthy("cache", "ok")
	m.UpdateHealthy("sweeper", "ok")
	agg = m.AggregateHealth("service")
	assert.True(t, agg.IsHealthy())
	assert.Len(t, agg.SubStatuses, 2)

	m.UpdateDegraded("sweeper", "slow tick")
	agg = m.AggregateHealth("service")
	assert.True(t, agg.IsDegraded())

	m.UpdateUnhealthy("sweeper", "loop exited")
	agg = m.AggregateHealth("service")
	assert.True(t, agg.IsUnhealthy())
}

func TestMonitor_MarkStale(t *testing.T) {
	m := NewMonitor()

	fresh := NewHealthy("gateway", "ok")
	m.Update("gateway", fresh)

	old := NewHealthy("sweeper", "ok")
	old.Timestamp = time.Now().Add(-10 * time.Second)
	m.Update("sweeper", old)

	m.MarkStale(2 * time.Second)

	status, _ := m.Get("sweeper")
	assert.True(t, status.IsDegraded(), "stale component should degrade")

	status, _ = m.Get("gateway")
	assert.True(t, status.IsHealthy(), "fresh component should stay healthy")
}

func TestMonitor_RemoveAndClear(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("a", "ok")
	m.UpdateHealthy("b", "ok")
	require.Equal(t, 2, m.Count())

	m.Remove("a")
	assert.Equal(t, 1, m.Count())

	m.Clear()
	assert.Equal(t, 0, m.Count())
}

func TestAggregate_Rules(t *testing.T) {
	healthy := NewHealthy("a", "ok")
	degraded := NewDegraded("b", "meh")
	unhealthy := NewUnhealthy("c", "bad")

	assert.True(t, Aggregate("s", []Status{healthy, healthy}).IsHealthy())
	assert.True(t, Aggregate("s", []Status{healthy, degraded}).IsDegraded())
	assert.True(t, Aggregate("s", []Status{degraded, unhealthy}).IsUnhealthy())
	assert.True(t, Aggregate("s", nil).IsHealthy())
}

func TestStatus_WithMetrics(t *testing.T) {
	s := NewHealthy("sweeper", "ok").WithMetrics(&Metrics{
		Uptime:       time.Minute,
		EntriesSwept: 42,
	})
	require.NotNil(t, s.Metrics)
	assert.Equal(t, int64(42), s.Metrics.EntriesSwept)
}
