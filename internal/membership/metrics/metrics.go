package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the membership module.
// Tracks applied transitions per branch and transition durations.
type Metrics struct {
	TransitionsApplied  *prometheus.CounterVec
	TransitionConflicts prometheus.Counter
	TransitionDuration  prometheus.Histogram
}

// New creates a Metrics instance with all membership module metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cairn_membership_transitions_total",
			Help: "Total membership transitions applied, by branch",
		}, []string{"branch"}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cairn_membership_transition_conflicts_total",
			Help: "Transitions aborted because the household was locked or the store detected a conflict",
		}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cairn_membership_transition_duration_seconds",
			Help:    "Duration of one atomic membership transition including household fan-out",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementTransition records one applied transition branch.
func (m *Metrics) IncrementTransition(branch string) {
	m.TransitionsApplied.WithLabelValues(branch).Inc()
}

// IncrementConflict records a retryable transition conflict.
func (m *Metrics) IncrementConflict() {
	m.TransitionConflicts.Inc()
}

// ObserveTransition records the duration of a transition.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
