package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks compliance checks and summary generation.
type Metrics struct {
	ComplianceChecks *prometheus.CounterVec
	ComplianceScores prometheus.Histogram
	SummaryDuration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ComplianceChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_compliance_checks_total",
			Help: "Compliance checks by subject kind and verdict",
		}, []string{"kind", "compliant"}),

		ComplianceScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seedtrace_compliance_score",
			Help:    "Distribution of compliance scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		SummaryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seedtrace_summary_report_duration_seconds",
			Help:    "Time to build the summary report",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveCompliance(kind string, score int, compliant bool) {
	if m == nil {
		return
	}
	m.ComplianceChecks.WithLabelValues(kind, strconv.FormatBool(compliant)).Inc()
	m.ComplianceScores.Observe(float64(score))
}

func (m *Metrics) ObserveSummary(seconds float64) {
	if m != nil {
		m.SummaryDuration.Observe(seconds)
	}
}
