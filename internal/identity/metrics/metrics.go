package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks QR issuance and verification.
type Metrics struct {
	QRIssued     *prometheus.CounterVec
	QRVerified   *prometheus.CounterVec
	QRRenderSize prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		QRIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_qr_issued_total",
			Help: "QR identities issued by entity type",
		}, []string{"entity_type"}),

		QRVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_qr_verifications_total",
			Help: "QR verification outcomes",
		}, []string{"outcome"}), // outcome: "valid", "unknown", "tampered"

		QRRenderSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seedtrace_qr_png_bytes",
			Help:    "Size of rendered QR PNG images",
			Buckets: prometheus.ExponentialBuckets(256, 2, 8),
		}),
	}
}

func (m *Metrics) IncrementIssued(entityType string) {
	if m != nil {
		m.QRIssued.WithLabelValues(entityType).Inc()
	}
}

func (m *Metrics) IncrementVerified(outcome string) {
	if m != nil {
		m.QRVerified.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveRenderSize(n int) {
	if m != nil {
		m.QRRenderSize.Observe(float64(n))
	}
}
