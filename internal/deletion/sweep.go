// AngelaMos | 2026
// sweep.go

package deletion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
)

type SweepResult struct {
	Due         int `json:"due"`
	Failed      int `json:"failed"`
	Interrupted int `json:"interrupted"`
}

// ProcessDue runs ExecuteDeletion for every account whose grace period has
// elapsed, after failing any purge claim gone stale. It is the batch
// trigger behind the sweeper and the operator "process due" command.
func (m *Manager) ProcessDue(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := m.clock.Now()

	interrupted, err := m.interruptStale(ctx, now.UTC())
	result.Interrupted = interrupted
	if err != nil {
		return result, fmt.Errorf("process due: %w", err)
	}

	ids, err := m.ListDueForDeletion(ctx, now)
	if err != nil {
		return result, err
	}

	result.Due = len(ids)
	for _, id := range ids {
		outcome, err := m.execute(ctx, id)
		m.metrics.callback("sweep", outcome)
		if err != nil {
			result.Failed++
			m.logger.Error("sweep execute deletion",
				"account_id", id,
				"error", err,
			)
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	return result, nil
}

// Sweeper periodically calls ProcessDue. It catches accounts whose
// callback was lost, for example when arming failed after the request
// committed.
type Sweeper struct {
	manager  *Manager
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(
	manager *Manager,
	clk clock.Clock,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		manager:  manager,
		clock:    clk,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Run blocks until ctx is cancelled. A non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("deletion sweeper disabled")
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.interval):
		}

		result, err := s.manager.ProcessDue(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Error("deletion sweep failed", "error", err)
			continue
		}
		if result.Due > 0 || result.Interrupted > 0 {
			s.logger.Info("deletion sweep finished",
				"due", result.Due,
				"failed", result.Failed,
				"interrupted", result.Interrupted,
			)
		}
	}
}
