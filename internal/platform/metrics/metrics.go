package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the HTTP-level Prometheus metrics shared by every route.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseTime    prometheus.Histogram
	InFlight        prometheus.Gauge
}

// New creates and registers the HTTP metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seedtrace_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		ResponseTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "seedtrace_http_response_time_seconds",
			Help:    "Latency of every HTTP response",
			Buckets: prometheus.DefBuckets,
		}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "seedtrace_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	m.ResponseTime.Observe(elapsed.Seconds())
}

// AverageResponseTime is the mean latency of all responses served since start.
func (m *Metrics) AverageResponseTime() time.Duration {
	if m == nil {
		return 0
	}
	var out dto.Metric
	if err := m.ResponseTime.Write(&out); err != nil {
		return 0
	}
	h := out.GetHistogram()
	if h.GetSampleCount() == 0 {
		return 0
	}
	mean := h.GetSampleSum() / float64(h.GetSampleCount())
	return time.Duration(mean * float64(time.Second))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
