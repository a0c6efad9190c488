package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session transitions and identity confirmations.
type Metrics struct {
	transitions    *prometheus.CounterVec
	identityChecks *prometheus.CounterVec
}

// NewMetrics creates and registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundkit",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by event.",
		}, []string{"event", "to"}),
		identityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundkit",
			Subsystem: "session",
			Name:      "identity_checks_total",
			Help:      "Identity confirmations by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.identityChecks)
	}
	return m
}

func (m *Metrics) transition(ev Event, to Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(ev.String(), to.String()).Inc()
}

func (m *Metrics) identityCheck(result string) {
	if m == nil {
		return
	}
	m.identityChecks.WithLabelValues(result).Inc()
}
