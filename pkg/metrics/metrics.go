package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "retailpos"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Checkouts *prometheus.CounterVec
	UnitsSold prometheus.Counter
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route", "method"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	unitsSold := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "units_sold_total",
		Help:      "Units sold through committed checkouts.",
	})

	reg.MustRegister(requests, latency, checkouts, unitsSold)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, Checkouts: checkouts, UnitsSold: unitsSold}
}

// ObserveCheckout is safe on a nil receiver so callers can run without metrics.
func (m *ServerMetrics) ObserveCheckout(outcome string, units int) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
	if units > 0 {
		m.UnitsSold.Add(float64(units))
	}
}
