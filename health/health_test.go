package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotAggregation(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, StateHealthy, m.Snapshot().State, "no reports means healthy")

	m.Report("cache", StateHealthy, "")
	m.Report("resolver", StateHealthy, "")
	assert.Equal(t, StateHealthy, m.Snapshot().State)

	m.Report("cache", StateDegraded, "lock contention")
	assert.Equal(t, StateDegraded, m.Snapshot().State)

	m.Report("resolver", StateUnhealthy, "unreachable")
	s := m.Snapshot()
	assert.Equal(t, StateUnhealthy, s.State)
	assert.Len(t, s.Components, 2)
	assert.Equal(t, "lock contention", s.Components["cache"].Message)
	assert.GreaterOrEqual(t, s.UptimeSeconds, 0.0)
}

func TestReportOverwrites(t *testing.T) {
	m := NewMonitor()
	m.Report("cache", StateUnhealthy, "down")
	m.Report("cache", StateHealthy, "")
	assert.Equal(t, StateHealthy, m.Snapshot().State)
}
