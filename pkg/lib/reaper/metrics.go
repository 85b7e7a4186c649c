package reaper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records the outcome of reaps. A nil *Metrics records nothing.
type Metrics struct {
	// Found is the number of stale instances seen by the last reap.
	Found prometheus.Gauge
	// Eliminated is the number of those that were gone after the last reap.
	Eliminated prometheus.Gauge
	// Remaining is the number still present after the last reap.
	Remaining prometheus.Gauge
	// Requests counts termination requests by phase.
	// Labels: phase
	Requests *prometheus.CounterVec
}

// NewMetrics registers the reaper metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Found: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rustsible",
			Subsystem: "reaper",
			Name:      "found",
			Help:      "Stale instances found by the last startup reap",
		}),
		Eliminated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rustsible",
			Subsystem: "reaper",
			Name:      "eliminated",
			Help:      "Stale instances eliminated by the last startup reap",
		}),
		Remaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rustsible",
			Subsystem: "reaper",
			Name:      "remaining",
			Help:      "Stale instances still present after the last startup reap",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rustsible",
			Subsystem: "reaper",
			Name:      "termination_requests_total",
			Help:      "Termination requests issued by the startup reaper",
		}, []string{"phase"}),
	}
}

func (m *Metrics) recordReport(r Report) {
	if m == nil {
		return
	}
	m.Found.Set(float64(r.Found))
	m.Eliminated.Set(float64(r.Eliminated))
	m.Remaining.Set(float64(len(r.Remaining)))
}

func (m *Metrics) recordRequests(phase Phase, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Requests.WithLabelValues(phase.String()).Add(float64(n))
}
