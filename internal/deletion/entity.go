// AngelaMos | 2026
// entity.go

package deletion

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateActive  State = "active"
	StatePending State = "pending"
	StateFailed  State = "failed"
	StatePurged  State = "purged"
)

// Account is the lifecycle view of a users row. A purged account has no
// row, so StatePurged is never derived from an Account value.
type Account struct {
	ID             uuid.UUID  `db:"id"`
	Email          string     `db:"email"`
	IsActive       bool       `db:"is_active"`
	RequestedAt    *time.Time `db:"deletion_requested_at"`
	ScheduledAt    *time.Time `db:"deletion_scheduled_at"`
	Reason         *string    `db:"deletion_reason"`
	PurgeStartedAt *time.Time `db:"deletion_purge_started_at"`
	FailedAt       *time.Time `db:"deletion_failed_at"`
	FailureReason  *string    `db:"deletion_failure_reason"`
}

func (a *Account) State() State {
	switch {
	case a.RequestedAt == nil:
		return StateActive
	case a.FailedAt != nil:
		return StateFailed
	default:
		return StatePending
	}
}

// DueAt returns the purge eligibility time. The schedule is ignored unless
// a request is outstanding.
func (a *Account) DueAt() (time.Time, bool) {
	if a.RequestedAt == nil || a.ScheduledAt == nil {
		return time.Time{}, false
	}
	return *a.ScheduledAt, true
}

func (a *Account) PurgeStarted() bool {
	return a.PurgeStartedAt != nil
}

const accountColumns = `id, email, is_active, deletion_requested_at,
	deletion_scheduled_at, deletion_reason, deletion_purge_started_at,
	deletion_failed_at, deletion_failure_reason`
