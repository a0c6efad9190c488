package donation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics counts donation attempts and reconciliations.
type Metrics struct {
	initiated  prometheus.Counter
	reconciled *prometheus.CounterVec
	credited   prometheus.Counter
}

// NewMetrics creates and registers the donation collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		initiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fundkit",
			Subsystem: "donation",
			Name:      "initiated_total",
			Help:      "Checkout sessions handed off to the payment processor.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundkit",
			Subsystem: "donation",
			Name:      "reconciled_total",
			Help:      "Checkout return trips by outcome.",
		}, []string{"outcome"}),
		credited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fundkit",
			Subsystem: "donation",
			Name:      "credited_amount_total",
			Help:      "Sum of verified amounts credited to the local read model.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.initiated, m.reconciled, m.credited)
	}
	return m
}

func (m *Metrics) initiate() {
	if m == nil {
		return
	}
	m.initiated.Inc()
}

func (m *Metrics) reconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) credit(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.credited.Add(amount.InexactFloat64())
}
