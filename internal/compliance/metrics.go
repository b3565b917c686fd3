package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks decision outcomes per check so a sudden spike in one
// check's failures (say, every dnc lookup failing closed) is visible.
type Metrics struct {
	CheckOutcomes   *prometheus.CounterVec
	DecisionLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		CheckOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_check_outcomes_total",
			Help: "Compliance decision outcomes by deciding check and result",
		}, []string{"check", "result"}),
		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_decision_duration_seconds",
			Help:    "End-to-end canContact evaluation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (m *Metrics) observeOutcome(check, result string) {
	if m == nil {
		return
	}
	m.CheckOutcomes.WithLabelValues(check, result).Inc()
}

func (m *Metrics) observeLatency(seconds float64) {
	if m == nil {
		return
	}
	m.DecisionLatency.Observe(seconds)
}
