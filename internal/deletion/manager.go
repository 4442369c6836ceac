// AngelaMos | 2026
// manager.go

package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/erasure/internal/alert"
	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/notify"
	"github.com/carterperez-dev/erasure/internal/purge"
	"github.com/carterperez-dev/erasure/internal/scheduler"
)

// Purger deletes the data an account owns. It is called at most once per
// deletion request.
type Purger interface {
	Purge(ctx context.Context, accountID uuid.UUID) (purge.Summary, error)
}

// SessionRevoker signs an account out everywhere.
type SessionRevoker interface {
	RevokeSessions(ctx context.Context, accountID uuid.UUID) error
}

type Config struct {
	GracePeriod       time.Duration
	FinalWarningDelay time.Duration
	PurgeTimeout      time.Duration
	SweepBatchSize    int
	StalePurgeAfter   time.Duration
}

type Deps struct {
	Store     Store
	Scheduler scheduler.Scheduler
	Purger    Purger
	Notifier  notify.Notifier
	Alerter   alert.Alerter
	Sessions  SessionRevoker
	Clock     clock.Clock
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Manager owns every lifecycle transition of an account:
//
//	ACTIVE  -> PENDING  RequestDeletion
//	PENDING -> ACTIVE   CancelPending or CancelDeletion, before the claim
//	FAILED  -> ACTIVE   CancelDeletion, after operator review
//	PENDING -> PURGED   ExecuteDeletion then PurgeDeletion, on success
//	PENDING -> FAILED   PurgeDeletion on failure or timeout, or a stale claim
//
// Grace period and final warning window are both deferred callbacks on the
// scheduler. Nothing waits in-process.
type Manager struct {
	store     Store
	scheduler scheduler.Scheduler
	purger    Purger
	notifier  notify.Notifier
	alerter   alert.Alerter
	sessions  SessionRevoker
	clock     clock.Clock
	metrics   *Metrics
	logger    *slog.Logger
	cfg       Config
}

func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * 24 * time.Hour
	}
	if cfg.FinalWarningDelay <= 0 {
		cfg.FinalWarningDelay = 5 * time.Minute
	}
	if cfg.PurgeTimeout <= 0 {
		cfg.PurgeTimeout = 2 * time.Minute
	}
	if cfg.SweepBatchSize < 1 {
		cfg.SweepBatchSize = 500
	}
	if floor := cfg.PurgeTimeout + time.Minute; cfg.StalePurgeAfter < floor {
		if cfg.StalePurgeAfter <= 0 {
			cfg.StalePurgeAfter = 30 * time.Minute
		}
		cfg.StalePurgeAfter = max(cfg.StalePurgeAfter, floor)
	}

	return &Manager{
		store:     deps.Store,
		scheduler: deps.Scheduler,
		purger:    deps.Purger,
		notifier:  deps.Notifier,
		alerter:   deps.Alerter,
		sessions:  deps.Sessions,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "deletion"),
		cfg:       cfg,
	}
}

// SetSessions attaches the revoker used when a deletion is requested. It is
// not safe to call once the manager is serving.
func (m *Manager) SetSessions(sessions SessionRevoker) {
	m.sessions = sessions
}

// RequestDeletion moves an ACTIVE account to PENDING and arms the grace
// period callback. A zero gracePeriod uses the configured default. It
// returns the time after which the purge may run.
func (m *Manager) RequestDeletion(
	ctx context.Context,
	accountID uuid.UUID,
	reason string,
	gracePeriod time.Duration,
) (time.Time, error) {
	ctx, span := core.StartSpan(ctx, "deletion.request",
		attribute.String("account.id", accountID.String()),
	)
	defer span.End()

	if gracePeriod < 0 {
		return time.Time{}, fmt.Errorf("request deletion: negative grace period: %w", core.ErrInvalidInput)
	}
	if gracePeriod == 0 {
		gracePeriod = m.cfg.GracePeriod
	}

	now := m.clock.Now().UTC()
	scheduledAt := now.Add(gracePeriod)

	acct, err := m.store.MarkRequested(ctx, accountID, now, scheduledAt, reason)
	if err != nil {
		return time.Time{}, fmt.Errorf("request deletion: %w", err)
	}

	m.metrics.transition(transitionRequested)
	m.logger.Info("account deletion requested",
		"account_id", accountID,
		"scheduled_at", scheduledAt,
		"reason", reason,
	)

	m.arm(ctx, scheduler.KindExecute, accountID, scheduledAt)

	if m.sessions != nil {
		if err := m.sessions.RevokeSessions(ctx, accountID); err != nil {
			m.logger.Warn("revoke sessions after deletion request",
				"account_id", accountID,
				"error", err,
			)
		}
	}

	m.notify(ctx, notify.Notification{
		AccountID:   accountID,
		Kind:        notify.KindRequested,
		Email:       acct.Email,
		ScheduledAt: scheduledAt,
		OccurredAt:  now,
	})

	return scheduledAt, nil
}

// CancelDeletion returns a PENDING or FAILED account to ACTIVE. Once a
// purge has been claimed it can no longer be cancelled unless it failed.
// Clearing a FAILED deletion is an operator decision.
func (m *Manager) CancelDeletion(ctx context.Context, accountID uuid.UUID) error {
	return m.cancel(ctx, accountID, true)
}

// CancelPending is the account owner's cancel. It only applies while the
// deletion is still pending; a FAILED deletion yields ErrManualReview.
func (m *Manager) CancelPending(ctx context.Context, accountID uuid.UUID) error {
	return m.cancel(ctx, accountID, false)
}

func (m *Manager) cancel(ctx context.Context, accountID uuid.UUID, includeFailed bool) error {
	ctx, span := core.StartSpan(ctx, "deletion.cancel",
		attribute.String("account.id", accountID.String()),
		attribute.Bool("include_failed", includeFailed),
	)
	defer span.End()

	acct, err := m.store.ClearDeletion(ctx, accountID, includeFailed)
	if errors.Is(err, ErrStateConflict) && !includeFailed {
		if cur, getErr := m.store.Get(ctx, accountID); getErr == nil && cur.State() == StateFailed {
			return fmt.Errorf("cancel deletion: %w", ErrManualReview)
		}
	}
	if err != nil {
		return fmt.Errorf("cancel deletion: %w", err)
	}

	m.metrics.transition(transitionCancelled)
	m.logger.Info("account deletion cancelled",
		"account_id", accountID,
		"by_operator", includeFailed,
	)

	// A callback that survives this is harmless: it finds no request.
	if err := m.scheduler.Cancel(ctx, accountID); err != nil {
		m.logger.Warn("disarm deletion callbacks",
			"account_id", accountID,
			"error", err,
		)
	}

	m.notify(ctx, notify.Notification{
		AccountID:  accountID,
		Kind:       notify.KindCancelled,
		Email:      acct.Email,
		OccurredAt: m.clock.Now().UTC(),
	})

	return nil
}

// ExecuteDeletion is the grace period callback. It sends the final warning
// and arms the purge callback FinalWarningDelay later. Calling it for an
// account that is not due, not pending, or already warned does nothing
// harmful, so sweeps and redelivery may overlap freely.
func (m *Manager) ExecuteDeletion(ctx context.Context, accountID uuid.UUID) error {
	_, err := m.execute(ctx, accountID)
	return err
}

func (m *Manager) execute(ctx context.Context, accountID uuid.UUID) (string, error) {
	ctx, span := core.StartSpan(ctx, "deletion.execute",
		attribute.String("account.id", accountID.String()),
	)
	defer span.End()

	now := m.clock.Now().UTC()

	acct, err := m.liveAccount(ctx, accountID)
	if err != nil || acct == nil {
		return outcomeInactive, err
	}

	if err := m.checkDue(ctx, acct, now); err != nil {
		if errors.Is(err, errStaleSchedule) {
			return outcomeRescheduled, nil
		}
		return outcomeError, err
	}

	_, armed, err := m.scheduler.Pending(ctx, scheduler.KindPurge, accountID)
	if err != nil {
		return outcomeError, fmt.Errorf("execute deletion: %w", err)
	}
	if armed {
		return outcomeAlreadyArmed, nil
	}

	purgeAt := now.Add(m.cfg.FinalWarningDelay)
	if err := m.scheduler.Schedule(ctx, scheduler.Job{
		Kind:      scheduler.KindPurge,
		AccountID: accountID,
		RunAt:     purgeAt,
	}); err != nil {
		return outcomeError, fmt.Errorf("execute deletion: %w", err)
	}

	m.logger.Info("final deletion warning sent",
		"account_id", accountID,
		"purge_at", purgeAt,
	)

	m.notify(ctx, notify.Notification{
		AccountID:   accountID,
		Kind:        notify.KindFinalWarning,
		Email:       acct.Email,
		ScheduledAt: purgeAt,
		OccurredAt:  now,
	})

	return outcomeCompleted, nil
}

// PurgeDeletion is the final callback. It claims the purge, runs the Purger
// once, and either removes the account or leaves it FAILED and raises an
// alert. A FatalPurgeError is returned when the purge ran and failed.
func (m *Manager) PurgeDeletion(ctx context.Context, accountID uuid.UUID) error {
	_, err := m.purge(ctx, accountID)
	return err
}

func (m *Manager) purge(ctx context.Context, accountID uuid.UUID) (string, error) {
	ctx, span := core.StartSpan(ctx, "deletion.purge",
		attribute.String("account.id", accountID.String()),
	)
	defer span.End()

	now := m.clock.Now().UTC()

	acct, err := m.liveAccount(ctx, accountID)
	if err != nil || acct == nil {
		return outcomeInactive, err
	}

	if err := m.checkDue(ctx, acct, now); err != nil {
		if errors.Is(err, errStaleSchedule) {
			return outcomeRescheduled, nil
		}
		return outcomeError, err
	}

	claimed, err := m.store.ClaimPurge(ctx, accountID, now)
	if err != nil {
		return outcomeError, fmt.Errorf("purge deletion: %w", err)
	}
	if !claimed {
		m.logger.Info("purge claim lost", "account_id", accountID)
		return outcomeClaimLost, nil
	}

	core.AddSpanEvent(ctx, "purge.claimed")

	// Past this point the purge is ours and runs exactly once. Nothing
	// below may return an error that leads to a retry.
	finishCtx := context.WithoutCancel(ctx)

	// Shutdown does not interrupt a claimed purge; only the timeout does.
	purgeCtx, cancel := context.WithTimeout(finishCtx, m.cfg.PurgeTimeout)
	started := m.clock.Now()
	summary, err := m.purger.Purge(purgeCtx, accountID)
	timedOut := errors.Is(purgeCtx.Err(), context.DeadlineExceeded)
	cancel()
	m.metrics.observePurge(m.clock.Now().Sub(started))

	if err != nil {
		fatal := &FatalPurgeError{AccountID: accountID, TimedOut: timedOut, Err: err}
		m.fail(finishCtx, accountID, fatal)
		return outcomeFailed, fatal
	}

	if err := m.store.DeleteAccount(finishCtx, accountID); err != nil {
		fatal := &FatalPurgeError{
			AccountID: accountID,
			Err:       fmt.Errorf("owned data purged but account record remains: %w", err),
		}
		m.fail(finishCtx, accountID, fatal)
		return outcomeFailed, fatal
	}

	m.metrics.transition(transitionPurged)
	core.AddSpanEvent(ctx, "purge.completed",
		attribute.Int64("rows_deleted", summary.Total()),
	)
	m.logger.Info("account purged",
		"account_id", accountID,
		"rows_deleted", summary.Total(),
		"tables", summary,
	)

	if err := m.scheduler.Cancel(finishCtx, accountID); err != nil {
		m.logger.Debug("clear callbacks after purge", "account_id", accountID, "error", err)
	}

	m.notify(finishCtx, notify.Notification{
		AccountID:  accountID,
		Kind:       notify.KindCompleted,
		OccurredAt: m.clock.Now().UTC(),
	})

	return outcomeCompleted, nil
}

// ListDueForDeletion returns pending, unfailed accounts whose grace period
// has elapsed by now.
func (m *Manager) ListDueForDeletion(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := m.store.ListDue(ctx, now.UTC(), m.cfg.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list due for deletion: %w", err)
	}
	return ids, nil
}

// Status returns the lifecycle view of one account.
func (m *Manager) Status(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	acct, err := m.store.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("deletion status: %w", err)
	}
	return acct, nil
}

func (m *Manager) ListPending(ctx context.Context, limit, offset int) ([]Account, int, error) {
	return m.store.ListPending(ctx, limit, offset)
}

func (m *Manager) ListFailed(ctx context.Context, limit, offset int) ([]Account, int, error) {
	return m.store.ListFailed(ctx, limit, offset)
}

// HandleJob dispatches a scheduler callback. Fatal purge failures are
// already recorded and alerted, so they are not handed back to the
// scheduler for another attempt.
func (m *Manager) HandleJob(ctx context.Context, job scheduler.Job) error {
	var (
		outcome string
		err     error
	)

	switch job.Kind {
	case scheduler.KindExecute:
		outcome, err = m.execute(ctx, job.AccountID)
	case scheduler.KindPurge:
		outcome, err = m.purge(ctx, job.AccountID)
	default:
		m.logger.Warn("unknown job kind", "kind", job.Kind, "account_id", job.AccountID)
		return nil
	}

	m.metrics.callback(string(job.Kind), outcome)

	var fatal *FatalPurgeError
	if errors.As(err, &fatal) {
		return nil
	}
	return err
}

// liveAccount loads the account and reports nil when there is nothing to
// do: the row is gone, the request was cancelled, the purge failed, or the
// purge is already claimed.
func (m *Manager) liveAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	acct, err := m.store.Get(ctx, accountID)
	if errors.Is(err, core.ErrNotFound) {
		m.logger.Debug("callback for missing account", "account_id", accountID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if acct.State() != StatePending || acct.PurgeStarted() {
		m.logger.Debug("callback for inactive deletion",
			"account_id", accountID,
			"state", acct.State(),
			"purge_started", acct.PurgeStarted(),
		)
		return nil, nil
	}

	return acct, nil
}

// checkDue re-arms the grace period callback when it fired early and
// reports errStaleSchedule.
func (m *Manager) checkDue(ctx context.Context, acct *Account, now time.Time) error {
	dueAt, ok := acct.DueAt()
	if !ok {
		return fmt.Errorf("account %s has a request without a schedule", acct.ID)
	}
	if !now.Before(dueAt) {
		return nil
	}

	m.logger.Debug("callback fired early",
		"account_id", acct.ID,
		"scheduled_at", dueAt,
		"now", now,
	)

	if err := m.scheduler.Schedule(ctx, scheduler.Job{
		Kind:      scheduler.KindExecute,
		AccountID: acct.ID,
		RunAt:     dueAt,
	}); err != nil {
		return fmt.Errorf("reschedule early callback: %w", err)
	}

	return errStaleSchedule
}

func (m *Manager) fail(ctx context.Context, accountID uuid.UUID, fatal *FatalPurgeError) {
	now := m.clock.Now().UTC()
	core.SetSpanError(ctx, fatal)

	if err := m.store.MarkFailed(ctx, accountID, now, fatal.Err.Error()); err != nil {
		m.logger.Error("record purge failure",
			"account_id", accountID,
			"error", err,
		)
	}

	m.metrics.transition(transitionFailed)

	if m.sessions != nil {
		if err := m.sessions.RevokeSessions(ctx, accountID); err != nil {
			m.logger.Warn("revoke sessions after purge failure",
				"account_id", accountID,
				"error", err,
			)
		}
	}

	if err := m.alerter.Raise(ctx, alert.Alert{
		AccountID: accountID,
		Severity:  alert.SeverityCritical,
		Summary:   "account purge failed; manual review required",
		Reason:    fatal.Error(),
		RaisedAt:  now,
	}); err != nil {
		m.logger.Error("raise purge failure alert",
			"account_id", accountID,
			"error", err,
		)
	}
}

func (m *Manager) arm(ctx context.Context, kind scheduler.Kind, accountID uuid.UUID, at time.Time) {
	err := m.scheduler.Schedule(ctx, scheduler.Job{Kind: kind, AccountID: accountID, RunAt: at})
	if err != nil {
		// Recover and the sweeper pick this account up from its schedule.
		m.logger.Error("arm deletion callback",
			"account_id", accountID,
			"kind", kind,
			"error", err,
		)
	}
}

func (m *Manager) notify(ctx context.Context, n notify.Notification) {
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Warn("lifecycle notification failed",
			"account_id", n.AccountID,
			"kind", n.Kind,
			"error", err,
		)
	}
}
