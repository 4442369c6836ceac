// AngelaMos | 2026
// metrics.go

package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBacklogGauge exposes the number of armed jobs as
// erasure_scheduler_backlog.
func RegisterBacklogGauge(reg prometheus.Registerer, s *RedisScheduler) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "erasure_scheduler_backlog",
			Help: "Deferred erasure callbacks currently armed.",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			n, err := s.Backlog(ctx)
			if err != nil {
				return -1
			}
			return float64(n)
		},
	))
}
