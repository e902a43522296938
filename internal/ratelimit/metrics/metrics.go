package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected      *prometheus.CounterVec
	StoreFailures prometheus.Counter
	Degraded      prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"class"}),
		StoreFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seedtrace_ratelimit_store_failures_total",
			Help: "Errors from the primary rate limit store",
		}),
		Degraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "seedtrace_ratelimit_degraded",
			Help: "1 while the limiter runs on its in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	if m != nil {
		m.Rejected.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) IncrementStoreFailures() {
	if m != nil {
		m.StoreFailures.Inc()
	}
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
