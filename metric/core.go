// Package metric provides the Prometheus metrics for the override core, the
// compatibility enforcer, the version checker and the map sync task.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vplus"

// Metrics contains all core metrics
type Metrics struct {
	// Override lifecycle
	OverridesBound   prometheus.Gauge
	OverrideFailures *prometheus.CounterVec
	OverridesSkipped *prometheus.CounterVec
	Reverts          prometheus.Counter

	// Compatibility and version
	EnforcementActive prometheus.Gauge
	UpdateAvailable   prometheus.Gauge

	// Map sync
	SyncSaves   *prometheus.CounterVec
	SyncSkipped prometheus.Counter

	// Bootstrap
	BootstrapSteps *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		OverridesBound: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "overrides",
				Name:      "bound",
				Help:      "Number of overrides currently bound to host functions",
			},
		),

		OverrideFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "overrides",
				Name:      "bind_failures_total",
				Help:      "Total number of override bind failures",
			},
			[]string{"phase", "kind"},
		),

		OverridesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "overrides",
				Name:      "skipped_total",
				Help:      "Total number of overrides skipped because their subsystem was absent",
			},
			[]string{"subsystem"},
		),

		Reverts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "overrides",
				Name:      "reverts_total",
				Help:      "Total number of full revert cycles",
			},
		),

		EnforcementActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "compat",
				Name:      "enforced",
				Help:      "Mod version enforcement status (0=relaxed, 1=enforced)",
			},
		),

		UpdateAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "version",
				Name:      "update_available",
				Help:      "Whether a newer release was found (0=no or unknown, 1=yes)",
			},
		),

		SyncSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapsync",
				Name:      "saves_total",
				Help:      "Total number of map data saves",
			},
			[]string{"status"},
		),

		SyncSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapsync",
				Name:      "skipped_total",
				Help:      "Total number of ticks skipped because a save was still running",
			},
		),

		BootstrapSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bootstrap",
				Name:      "steps_total",
				Help:      "Bootstrap steps by outcome",
			},
			[]string{"step", "status"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OverridesBound,
		m.OverrideFailures,
		m.OverridesSkipped,
		m.Reverts,
		m.EnforcementActive,
		m.UpdateAvailable,
		m.SyncSaves,
		m.SyncSkipped,
		m.BootstrapSteps,
	}
}
