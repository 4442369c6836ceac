// AngelaMos | 2026
// errors.go

package deletion

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/erasure/internal/core"
)

// ErrStateConflict is returned when an operation does not apply to the
// account's current lifecycle state.
var ErrStateConflict = fmt.Errorf("deletion state conflict: %w", core.ErrConflict)

// ErrManualReview is returned to an account owner whose deletion failed.
// Only an operator can clear it.
var ErrManualReview = fmt.Errorf("deletion failed and needs manual review: %w", ErrStateConflict)

// errStaleSchedule marks a callback that fired before the account was due.
// It is absorbed by rescheduling and never returned to callers.
var errStaleSchedule = errors.New("callback fired before schedule")

// FatalPurgeError means the purge step was started and did not finish. The
// account is left FAILED for an operator; it is never retried.
type FatalPurgeError struct {
	AccountID uuid.UUID
	TimedOut  bool
	Err       error
}

func (e *FatalPurgeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("purge account %s timed out: %v", e.AccountID, e.Err)
	}
	return fmt.Sprintf("purge account %s: %v", e.AccountID, e.Err)
}

func (e *FatalPurgeError) Unwrap() error {
	return e.Err
}
