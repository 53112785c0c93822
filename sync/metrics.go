package sync

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks per-phase duration and outcome counts (SPEC_FULL §2,
// "Counters/histograms for ... sync phase duration").
type Metrics struct {
	PhaseDuration *prometheus.HistogramVec
	PhaseErrors   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meshclient",
			Subsystem: "sync",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each sync phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		PhaseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshclient",
			Subsystem: "sync",
			Name:      "phase_errors_total",
			Help:      "Per-item failures recorded during a sync phase.",
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.PhaseDuration, m.PhaseErrors)
	}
	return m
}
