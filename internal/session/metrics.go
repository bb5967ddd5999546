package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricSessionsActive  = "viewfinder_sessions_active"
	MetricSessionsCreated = "viewfinder_sessions_created_total"
	MetricSessionsClosed  = "viewfinder_sessions_closed_total"
	MetricCommandsTotal   = "viewfinder_session_commands_total"
)

// Metrics holds session lifecycle and command collectors.
type Metrics struct {
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// NewMetrics creates unregistered session metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSessionsActive,
			Help: "Number of live page sessions",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSessionsCreated,
			Help: "Total number of page sessions created",
		}),
		sessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSessionsClosed,
				Help: "Total number of page sessions closed by reason",
			},
			[]string{"reason"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCommandsTotal,
				Help: "Total number of session commands by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
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

// ObserveCommand counts a command. outcome is "changed", "unchanged" or
// "error".
func (m *Metrics) ObserveCommand(kind string, changed bool, err error) {
	outcome := "unchanged"
	switch {
	case err != nil:
		outcome = "error"
	case changed:
		outcome = "changed"
	}
	m.commands.WithLabelValues(kind, outcome).Inc()
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsActive,
		m.sessionsCreated,
		m.sessionsClosed,
		m.commands,
	}
}
