package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	attemptsStarted   prometheus.Counter
	attemptsCompleted prometheus.Counter
	answers           *prometheus.CounterVec
	escalations       *prometheus.CounterVec
	poolExhausted     prometheus.Counter
	mastered          prometheus.Counter
	unlocked          prometheus.Counter
	conflictRetries   prometheus.Counter
	duration          *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	// promauto panics on duplicate registration.
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	f := promauto.With(reg)
	return &metrics{
		attemptsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "attempts_started_total",
			Help:      "Practice attempts started.",
		}),
		attemptsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "attempts_completed_total",
			Help:      "Practice attempts completed.",
		}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "answers_total",
			Help:      "Submitted answers by correctness.",
		}, []string{"correct"}),
		escalations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "escalations_total",
			Help:      "Missed answers by escalation outcome.",
		}, []string{"outcome"}),
		poolExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "pool_exhausted_total",
			Help:      "Attempts ended early because no unserved question was left.",
		}),
		mastered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "concepts_mastered_total",
			Help:      "Concepts that crossed the mastery threshold.",
		}),
		unlocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "concepts_unlocked_total",
			Help:      "Concepts unlocked after their prerequisites were mastered.",
		}),
		conflictRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mathprogress",
			Name:      "tx_conflict_retries_total",
			Help:      "Transactions re-run after an optimistic concurrency conflict.",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mathprogress",
			Name:      "action_duration_seconds",
			Help:      "Engine action latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"action"}),
	}, nil
}
