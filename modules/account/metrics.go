package account

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts login outcomes and logouts. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	logouts  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthkit",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "healthkit",
			Name:      "logouts_total",
			Help:      "Completed logouts",
		}),
	}
}

func (m *Metrics) login(result Result) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}
