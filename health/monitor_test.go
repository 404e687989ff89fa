package health

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("config", "loaded")
	m.UpdateDegraded("version-check", "unknown")

	status, ok := m.Get("config")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "config", status.Step)
	assert.False(t, status.Timestamp.IsZero())

	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"config", "version-check"}, m.Steps())
}

func TestMonitor_UpdateKeepsOrder(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("a", "")
	m.UpdateHealthy("b", "")
	m.UpdateUnhealthy("a", "failed")

	assert.Equal(t, []string{"a", "b"}, m.Steps())
	status, _ := m.Get("a")
	assert.True(t, status.IsUnhealthy())
}

func TestMonitor_AggregateHealth(t *testing.T) {
	tests := []struct {
		name   string
		update func(m *Monitor)
		want   string
	}{
		{"empty", func(*Monitor) {}, StateHealthy},
		{"all healthy", func(m *Monitor) {
			m.UpdateHealthy("a", "")
			m.UpdateHealthy("b", "")
		}, StateHealthy},
		{"one degraded", func(m *Monitor) {
			m.UpdateHealthy("a", "")
			m.UpdateDegraded("b", "")
		}, StateDegraded},
		{"unhealthy wins", func(m *Monitor) {
			m.UpdateDegraded("a", "")
			m.UpdateUnhealthy("b", "")
		}, StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor()
			tt.update(m)
			assert.Equal(t, tt.want, m.AggregateHealth("bootstrap").Status)
		})
	}
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.UpdateHealthy(fmt.Sprintf("step-%d", i%5), "ok")
			_ = m.AggregateHealth("bootstrap")
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Steps(), 5)
}

func TestFromError(t *testing.T) {
	ok := FromError("data-dir", nil, "created")
	assert.True(t, ok.IsHealthy())
	assert.Equal(t, "created", ok.Message)

	err := errors.New("GET https://api.github.com/repos/x/y failed reading /srv/valheim_plus.cfg")
	degraded := FromError("version-check", err, "")
	assert.True(t, degraded.IsDegraded())
	assert.NotContains(t, degraded.Message, "api.github.com")
	assert.NotContains(t, degraded.Message, "valheim_plus.cfg")
	assert.Contains(t, degraded.Message, "[URL]")
	assert.Contains(t, degraded.Message, "[PATH]")
}
