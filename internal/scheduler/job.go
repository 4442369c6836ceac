// AngelaMos | 2026
// job.go

package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	// KindExecute fires when an account's grace period elapses.
	KindExecute Kind = "execute"
	// KindPurge fires after the final warning window.
	KindPurge Kind = "purge"
)

type Job struct {
	Kind      Kind
	AccountID uuid.UUID
	RunAt     time.Time
}

func (j Job) member() string {
	return string(j.Kind) + ":" + j.AccountID.String()
}

func parseMember(member string, score float64) (Job, error) {
	kind, id, ok := strings.Cut(member, ":")
	if !ok {
		return Job{}, fmt.Errorf("malformed job member %q", member)
	}

	switch Kind(kind) {
	case KindExecute, KindPurge:
	default:
		return Job{}, fmt.Errorf("unknown job kind %q", kind)
	}

	accountID, err := uuid.Parse(id)
	if err != nil {
		return Job{}, fmt.Errorf("parse job account id: %w", err)
	}

	return Job{
		Kind:      Kind(kind),
		AccountID: accountID,
		RunAt:     time.UnixMilli(int64(score)).UTC(),
	}, nil
}

// Scheduler arms and disarms deferred callbacks. Arming a job that is
// already armed moves it to the new time.
type Scheduler interface {
	Schedule(ctx context.Context, job Job) error
	Cancel(ctx context.Context, accountID uuid.UUID) error
	Pending(ctx context.Context, kind Kind, accountID uuid.UUID) (time.Time, bool, error)
}

// Handler runs a job once it is due.
type Handler interface {
	HandleJob(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) HandleJob(ctx context.Context, job Job) error {
	return f(ctx, job)
}
