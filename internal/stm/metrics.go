package stm

import "github.com/prometheus/client_golang/prometheus"

// Commit outcome labels.
const (
	outcomeCommitted   = "committed"
	outcomeFailed      = "failed"
	outcomeDied        = "died"
	outcomeInterrupted = "interrupted"
)

// metrics holds the engine's collectors. Collectors are always created;
// registration is optional (WithRegisterer).
type metrics struct {
	attempts    prometheus.Counter
	conflicts   prometheus.Counter
	suspensions prometheus.Counter
	wakeups     prometheus.Counter
	commits     *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Name:      "attempts_total",
			Help:      "Transaction attempts run against a fresh journal.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Name:      "conflicts_total",
			Help:      "Attempts restarted because another commit made their snapshot stale.",
		}),
		suspensions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Name:      "suspensions_total",
			Help:      "Times a retrying transaction parked waiting for a wake-up.",
		}),
		wakeups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Name:      "wakeups_total",
			Help:      "Wake-up callbacks that re-ran a suspended transaction.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stm",
			Name:      "transactions_total",
			Help:      "Finished transactions by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.attempts, m.conflicts, m.suspensions, m.wakeups, m.commits} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observe counts one finished transaction.
func (m *metrics) observe(c *Cause) {
	outcome := outcomeCommitted
	if c != nil {
		switch c.Kind {
		case CauseFail:
			outcome = outcomeFailed
		case CauseDie:
			outcome = outcomeDied
		case CauseInterrupt:
			outcome = outcomeInterrupted
		}
	}
	m.commits.WithLabelValues(outcome).Inc()
}
