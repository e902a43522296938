package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks event ledger writes.
type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_ledger_events_recorded_total",
			Help: "Events appended to the ledger by subject kind and event type",
		}, []string{"subject_kind", "event_type"}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_ledger_events_rejected_total",
			Help: "Events rejected before write by reason",
		}, []string{"reason"}), // reason: "validation", "unknown_subject"
	}
}

func (m *Metrics) IncrementRecorded(subjectKind, eventType string) {
	if m != nil {
		m.EventsRecorded.WithLabelValues(subjectKind, eventType).Inc()
	}
}

func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.EventsRejected.WithLabelValues(reason).Inc()
	}
}
