package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts audit events by kind and outcome, and coins moved by kind.
type Metrics struct {
	events *prometheus.CounterVec
	minted prometheus.Counter
	burned prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "andycoin",
			Name:      "audit_events_total",
			Help:      "Audit events recorded, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		minted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "andycoin",
			Name:      "coins_credited_total",
			Help:      "Sum of positive balance changes outside transfers.",
		}),
		burned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "andycoin",
			Name:      "coins_debited_total",
			Help:      "Sum of negative balance changes outside transfers, resets included.",
		}),
	}
}

func (m *Metrics) Record(e Event) {
	m.events.WithLabelValues(string(e.Kind), e.Outcome).Inc()
	if e.Kind == KindTransfer || e.New == nil {
		return
	}
	if e.Change > 0 {
		m.minted.Add(float64(e.Change))
	} else if e.Change < 0 {
		m.burned.Add(-float64(e.Change))
	}
}
