package clientsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gate decisions and discarded tokens. A nil *Metrics
// records nothing.
type Metrics struct {
	decisions *prometheus.CounterVec
	stale     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthkit",
			Name:      "navigation_decisions_total",
			Help:      "Navigation gate decisions by kind",
		}, []string{"decision"}),
		stale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "healthkit",
			Name:      "stale_tokens_total",
			Help:      "Cached session tokens discarded after a failed resume",
		}),
	}
}

func (m *Metrics) decision(kind DecisionKind) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) staleToken() {
	if m == nil {
		return
	}
	m.stale.Inc()
}
