package health

import (
	"slices"
	"sync"
	"time"
)

// Monitor tracks step statuses in a thread-safe manner. Steps keep their
// first-recorded order.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	order    []string
}

// NewMonitor creates a new monitor
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status for a step
func (m *Monitor) Update(step string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Step = step
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	if _, exists := m.statuses[step]; !exists {
		m.order = append(m.order, step)
	}
	m.statuses[step] = status
}

// UpdateHealthy marks a step healthy
func (m *Monitor) UpdateHealthy(step, message string) {
	m.Update(step, NewHealthy(step, message))
}

// UpdateUnhealthy marks a step unhealthy
func (m *Monitor) UpdateUnhealthy(step, message string) {
	m.Update(step, NewUnhealthy(step, message))
}

// UpdateDegraded marks a step degraded
func (m *Monitor) UpdateDegraded(step, message string) {
	m.Update(step, NewDegraded(step, message))
}

// Get retrieves the status for a step
func (m *Monitor) Get(step string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[step]
	return status, exists
}

// Steps returns the recorded step names in order
func (m *Monitor) Steps() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// AggregateHealth returns the combined status of all steps
func (m *Monitor) AggregateHealth(name string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := make([]Status, 0, len(m.order))
	for _, step := range m.order {
		steps = append(steps, m.statuses[step])
	}
	return Aggregate(name, steps)
}
