package vitals

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricTimingSeconds = "viewfinder_web_vitals_seconds"
	MetricLayoutShift   = "viewfinder_web_vitals_cls"
	MetricRejectedTotal = "viewfinder_web_vitals_rejected_total"
	MetricDroppedTotal  = "viewfinder_web_vitals_dropped_total"
)

// Metrics holds web-vitals collectors.
type Metrics struct {
	timing   *prometheus.HistogramVec
	cls      *prometheus.HistogramVec
	rejected prometheus.Counter
	dropped  prometheus.Counter
}

// NewMetrics creates unregistered web-vitals metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		timing: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricTimingSeconds,
				Help:    "Timing web vitals (FCP, FID, INP, LCP, TTFB) in seconds by metric and rating",
				Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1, 1.8, 2.5, 3, 4, 6, 10},
			},
			[]string{"metric", "rating"},
		),
		cls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricLayoutShift,
				Help:    "Cumulative layout shift scores by rating",
				Buckets: []float64{0.01, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
			},
			[]string{"rating"},
		),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRejectedTotal,
			Help: "Total number of web-vitals reports rejected by validation",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDroppedTotal,
			Help: "Total number of web-vitals samples dropped because the persistence queue was full",
		}),
	}
}

// Observe records one validated report.
func (m *Metrics) Observe(r Report) {
	if r.Name == CLS {
		m.cls.WithLabelValues(r.Rating).Observe(r.Value)
		return
	}
	m.timing.WithLabelValues(r.Name, r.Rating).Observe(r.Value / 1000)
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.timing, m.cls, m.rejected, m.dropped}
}
