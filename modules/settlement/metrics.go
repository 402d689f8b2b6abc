package settlement

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	submissions *prometheus.CounterVec
	claims      *prometheus.CounterVec
	paidOut     prometheus.Counter
}

// NewMetrics registers the settlement counters with registerer. A nil
// registerer keeps them unregistered.
func NewMetrics(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := newMetrics(namespace)
	if registerer == nil {
		return m, nil
	}
	return m, errors.Join(
		registerer.Register(m.submissions),
		registerer.Register(m.claims),
		registerer.Register(m.paidOut),
	)
}

func newMetrics(namespace string) *Metrics {
	return &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions",
			Help:      "Answer submissions by final state",
		}, []string{"state"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims",
			Help:      "Claim attempts by outcome",
		}, []string{"outcome"}),
		paidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_paid",
			Help:      "Reward units transferred to participants",
		}),
	}
}

func (m *Metrics) submitted(state State) {
	m.submissions.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) claimed(outcome string, amount uint64) {
	m.claims.WithLabelValues(outcome).Inc()
	if amount > 0 {
		m.paidOut.Add(float64(amount))
	}
}

// Submissions is the counter of submissions that stopped in state.
func (m *Metrics) Submissions(state State) prometheus.Counter {
	return m.submissions.WithLabelValues(string(state))
}
