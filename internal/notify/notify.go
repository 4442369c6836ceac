// AngelaMos | 2026
// notify.go

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindRequested    Kind = "requested"
	KindCancelled    Kind = "cancelled"
	KindFinalWarning Kind = "final_warning"
	KindCompleted    Kind = "completed"
)

// Notification is one lifecycle message. Email is empty for completed
// notifications since the address no longer exists by then.
type Notification struct {
	AccountID   uuid.UUID
	Kind        Kind
	Email       string
	ScheduledAt time.Time
	OccurredAt  time.Time
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TransientDeliveryError reports a notification that could not be queued
// after the retry budget was spent.
type TransientDeliveryError struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf(
		"deliver %s notification after %d attempts: %v",
		e.Kind, e.Attempts, e.Err,
	)
}

func (e *TransientDeliveryError) Unwrap() error {
	return e.Err
}
