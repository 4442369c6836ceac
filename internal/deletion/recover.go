// AngelaMos | 2026
// recover.go

package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/erasure/internal/scheduler"
)

const interruptedReason = "purge interrupted"

type RecoverResult struct {
	Rearmed     int `json:"rearmed"`
	Interrupted int `json:"interrupted"`
}

// Recover rebuilds scheduler state from the database. Every pending
// account gets its grace period callback re-armed from its stored schedule.
// Purges claimed longer than StalePurgeAfter ago without finishing are
// marked FAILED for manual review, never restarted.
func (m *Manager) Recover(ctx context.Context) (RecoverResult, error) {
	var result RecoverResult
	now := m.clock.Now().UTC()

	interrupted, err := m.interruptStale(ctx, now)
	result.Interrupted = interrupted
	if err != nil {
		return result, fmt.Errorf("recover: %w", err)
	}

	for offset := 0; ; offset += m.cfg.SweepBatchSize {
		page, _, err := m.store.ListPending(ctx, m.cfg.SweepBatchSize, offset)
		if err != nil {
			return result, fmt.Errorf("recover: %w", err)
		}

		for i := range page {
			acct := &page[i]
			dueAt, ok := acct.DueAt()
			if !ok || acct.PurgeStarted() {
				continue
			}
			if err := m.scheduler.Schedule(ctx, scheduler.Job{
				Kind:      scheduler.KindExecute,
				AccountID: acct.ID,
				RunAt:     dueAt,
			}); err != nil {
				return result, fmt.Errorf("recover: %w", err)
			}
			result.Rearmed++
		}

		if len(page) < m.cfg.SweepBatchSize {
			break
		}
	}

	m.logger.Info("deletion state recovered",
		"rearmed", result.Rearmed,
		"interrupted", result.Interrupted,
	)

	return result, nil
}

// interruptStale fails every purge claimed before now minus
// StalePurgeAfter. A claim that old outlived PurgeTimeout, so the process
// that took it is gone. It runs at startup and on every sweep, so a crash
// shortly before a restart is still caught once the claim ages out.
func (m *Manager) interruptStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := m.store.ListStaleClaims(ctx, now.Add(-m.cfg.StalePurgeAfter))
	if err != nil {
		return 0, err
	}

	for _, id := range stale {
		m.fail(ctx, id, &FatalPurgeError{
			AccountID: id,
			Err:       errors.New(interruptedReason),
		})
	}

	return len(stale), nil
}
