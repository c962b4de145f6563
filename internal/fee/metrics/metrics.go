package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the fee module.
type Metrics struct {
	QuotesGenerated      prometheus.Counter
	ConfigurationMissing prometheus.Counter
	GenerateDuration     prometheus.Histogram
}

// New creates a Metrics instance with all fee module metrics registered.
func New() *Metrics {
	return &Metrics{
		QuotesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cairn_fee_quotes_generated_total",
			Help: "Total fee quotes generated",
		}),
		ConfigurationMissing: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cairn_fee_configuration_missing_total",
			Help: "Fee computations aborted because a fee table was not provisioned",
		}),
		GenerateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cairn_fee_generate_duration_seconds",
			Help:    "Duration of fee position generation for one member-year",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

// IncrementQuoteGenerated records one completed fee computation.
func (m *Metrics) IncrementQuoteGenerated() {
	m.QuotesGenerated.Inc()
}

// IncrementConfigurationMissing records an aborted computation.
func (m *Metrics) IncrementConfigurationMissing() {
	m.ConfigurationMissing.Inc()
}

// ObserveGenerate records the duration of one generation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveGenerate(start time.Time) {
	m.GenerateDuration.Observe(time.Since(start).Seconds())
}
