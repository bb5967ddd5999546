package linkpreview

import "github.com/prometheus/client_golang/prometheus"

// MetricRequests counts preview lookups by result (hit, fetched, fallback).
const MetricRequests = "viewfinder_link_preview_requests_total"

// Metrics holds link preview collectors.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics creates unregistered link preview metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRequests,
				Help: "Total number of link preview lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.requests)
}
