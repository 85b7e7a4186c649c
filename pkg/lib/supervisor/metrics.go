package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultCancelled = "cancelled"
	resultError     = "error"
)

// Metrics instruments provisioning runs. A nil *Metrics records nothing.
type Metrics struct {
	// RunsStarted counts spawned runs.
	RunsStarted prometheus.Counter
	// RunsFinished counts runs by result.
	// Labels: result (success, failure, cancelled, error)
	RunsFinished *prometheus.CounterVec
	// RunDuration measures spawn to terminal event.
	// Labels: result
	RunDuration *prometheus.HistogramVec
	// Lines counts forwarded output lines.
	// Labels: stream (stdout, stderr)
	Lines *prometheus.CounterVec
	// SpawnFailures counts runs that never started.
	SpawnFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rustsible",
			Subsystem: "supervisor",
			Name:      "runs_started_total",
			Help:      "Provisioning runs spawned",
		}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rustsible",
			Subsystem: "supervisor",
			Name:      "runs_finished_total",
			Help:      "Provisioning runs finished by result",
		}, []string{"result"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rustsible",
			Subsystem: "supervisor",
			Name:      "run_duration_seconds",
			Help:      "Provisioning run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"result"}),
		Lines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rustsible",
			Subsystem: "supervisor",
			Name:      "lines_total",
			Help:      "Output lines forwarded by stream",
		}, []string{"stream"}),
		SpawnFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rustsible",
			Subsystem: "supervisor",
			Name:      "spawn_failures_total",
			Help:      "Provisioning runs that failed to spawn",
		}),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
}

func (m *Metrics) spawnFailed() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
}

func (m *Metrics) runFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(result).Inc()
	m.RunDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) line(stream string) {
	if m == nil {
		return
	}
	m.Lines.WithLabelValues(stream).Inc()
}
