package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initBoardMetrics initializes coordination board metrics.
func (m *Manager) initBoardMetrics(cfg Config) {
	m.signalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_signals_emitted_total",
			Help: "Total number of signals emitted",
		},
		[]string{"type"},
	)

	m.signalsAmplified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_signals_amplified_total",
			Help: "Total number of signal amplifications",
		},
		[]string{"type"},
	)

	m.signalsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_signals_resolved_total",
			Help: "Total number of signals explicitly resolved",
		},
		[]string{"type"},
	)

	m.signalsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_signals_archived_total",
			Help: "Total number of signals archived by evaporation sweeps",
		},
	)

	m.evaporationSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_evaporation_sweeps_total",
			Help: "Total number of evaporation sweeps run",
		},
	)

	m.evaporationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "board_evaporation_duration_seconds",
			Help:    "Evaporation sweep duration in seconds",
			Buckets: cfg.EvaporationBuckets,
		},
	)

	m.visibleSignals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "board_visible_signals",
			Help: "Number of visible signals as of the last evaporation sweep",
		},
	)

	m.lockTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_lock_timeouts_total",
			Help: "Total number of store lock acquisition timeouts",
		},
		[]string{"operation"},
	)

	m.registry.MustRegister(m.signalsEmitted)
	m.registry.MustRegister(m.signalsAmplified)
	m.registry.MustRegister(m.signalsResolved)
	m.registry.MustRegister(m.signalsArchived)
	m.registry.MustRegister(m.evaporationSweeps)
	m.registry.MustRegister(m.evaporationDuration)
	m.registry.MustRegister(m.visibleSignals)
	m.registry.MustRegister(m.lockTimeouts)
}

// RecordSignalEmitted records a signal emission.
func (m *Manager) RecordSignalEmitted(signalType string) {
	if !m.enabled {
		return
	}
	m.signalsEmitted.WithLabelValues(signalType).Inc()
}

// RecordSignalAmplified records a signal amplification.
func (m *Manager) RecordSignalAmplified(signalType string) {
	if !m.enabled {
		return
	}
	m.signalsAmplified.WithLabelValues(signalType).Inc()
}

// RecordSignalResolved records an explicit resolution.
func (m *Manager) RecordSignalResolved(signalType string) {
	if !m.enabled {
		return
	}
	m.signalsResolved.WithLabelValues(signalType).Inc()
}

// RecordEvaporation records one evaporation sweep: how many signals it
// archived, how many remain visible, and how long it took.
func (m *Manager) RecordEvaporation(archived int, visible int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.evaporationSweeps.Inc()
	m.evaporationDuration.Observe(duration.Seconds())
	m.signalsArchived.Add(float64(archived))
	m.visibleSignals.Set(float64(visible))
}

// RecordLockTimeout records a store lock acquisition timeout.
func (m *Manager) RecordLockTimeout(operation string) {
	if !m.enabled {
		return
	}
	m.lockTimeouts.WithLabelValues(operation).Inc()
}
