// AngelaMos | 2026
// metrics.go

package deletion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	transitionRequested = "requested"
	transitionCancelled = "cancelled"
	transitionPurged    = "purged"
	transitionFailed    = "failed"
)

const (
	outcomeCompleted    = "completed"
	outcomeRescheduled  = "rescheduled"
	outcomeInactive     = "inactive"
	outcomeAlreadyArmed = "already_armed"
	outcomeClaimLost    = "claim_lost"
	outcomeFailed       = "failed"
	outcomeError        = "error"
)

type Metrics struct {
	transitions   *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	purgeDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_transitions_total",
			Help: "Account lifecycle transitions.",
		}, []string{"transition"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_callbacks_total",
			Help: "Deferred callbacks handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		purgeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "erasure_purge_duration_seconds",
			Help:    "Time spent in the purge executor.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

func (m *Metrics) transition(name string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) callback(kind, outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observePurge(d time.Duration) {
	if m == nil {
		return
	}
	m.purgeDuration.Observe(d.Seconds())
}
