// AngelaMos | 2026
// store.go

package deletion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/erasure/internal/core"
)

// Store persists the lifecycle columns of the users table. Every write is a
// single conditional UPDATE, so two transitions on the same account cannot
// both succeed.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	MarkRequested(
		ctx context.Context,
		id uuid.UUID,
		requestedAt, scheduledAt time.Time,
		reason string,
	) (*Account, error)
	ClearDeletion(ctx context.Context, id uuid.UUID, includeFailed bool) (*Account, error)
	ClaimPurge(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, now time.Time, reason string) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListPending(ctx context.Context, limit, offset int) ([]Account, int, error)
	ListFailed(ctx context.Context, limit, offset int) ([]Account, int, error)
	ListStaleClaims(ctx context.Context, startedBefore time.Time) ([]uuid.UUID, error)
}

type store struct {
	db core.DBTX
}

func NewStore(db core.DBTX) Store {
	return &store{db: db}
}

func (s *store) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`

	var acct Account
	err := s.db.GetContext(ctx, &acct, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &acct, nil
}

func (s *store) MarkRequested(
	ctx context.Context,
	id uuid.UUID,
	requestedAt, scheduledAt time.Time,
	reason string,
) (*Account, error) {
	query := `
		UPDATE users
		SET deletion_requested_at = $2,
		    deletion_scheduled_at = $3,
		    deletion_reason = NULLIF($4, ''),
		    is_active = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND deletion_requested_at IS NULL
		RETURNING ` + accountColumns

	var acct Account
	err := s.db.GetContext(ctx, &acct, query, id, requestedAt, scheduledAt, reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainMiss(ctx, id, "mark requested")
	}
	if err != nil {
		return nil, fmt.Errorf("mark requested: %w", err)
	}

	return &acct, nil
}

// ClearDeletion returns a pending, unclaimed account to ACTIVE. With
// includeFailed it also clears a deletion whose purge ended FAILED.
func (s *store) ClearDeletion(
	ctx context.Context,
	id uuid.UUID,
	includeFailed bool,
) (*Account, error) {
	query := `
		UPDATE users
		SET deletion_requested_at = NULL,
		    deletion_scheduled_at = NULL,
		    deletion_reason = NULL,
		    deletion_purge_started_at = NULL,
		    deletion_failed_at = NULL,
		    deletion_failure_reason = NULL,
		    is_active = TRUE,
		    updated_at = NOW()
		WHERE id = $1
		  AND deletion_requested_at IS NOT NULL
		  AND (deletion_purge_started_at IS NULL
		       OR ($2::boolean AND deletion_failed_at IS NOT NULL))
		RETURNING ` + accountColumns

	var acct Account
	err := s.db.GetContext(ctx, &acct, query, id, includeFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainMiss(ctx, id, "clear deletion")
	}
	if err != nil {
		return nil, fmt.Errorf("clear deletion: %w", err)
	}

	return &acct, nil
}

// ClaimPurge is the last liveness check before the purge. It succeeds only
// for a pending, due, unclaimed and unfailed account.
func (s *store) ClaimPurge(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET deletion_purge_started_at = $2, updated_at = NOW()
		WHERE id = $1
		  AND deletion_requested_at IS NOT NULL
		  AND deletion_scheduled_at <= $2
		  AND deletion_purge_started_at IS NULL
		  AND deletion_failed_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("claim purge: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim purge: %w", err)
	}

	return rows == 1, nil
}

func (s *store) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
	reason string,
) error {
	query := `
		UPDATE users
		SET deletion_failed_at = $2,
		    deletion_failure_reason = $3,
		    is_active = FALSE,
		    updated_at = NOW()
		WHERE id = $1
		  AND deletion_purge_started_at IS NOT NULL
		  AND deletion_failed_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, id, now, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	if rows == 0 {
		return s.explainMiss(ctx, id, "mark failed")
	}

	return nil
}

// DeleteAccount removes the users row of a claimed purge.
func (s *store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM users
		WHERE id = $1
		  AND deletion_purge_started_at IS NOT NULL
		  AND deletion_failed_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if rows == 0 {
		return s.explainMiss(ctx, id, "delete account")
	}

	return nil
}

func (s *store) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE deletion_requested_at IS NOT NULL
		  AND deletion_scheduled_at <= $1
		  AND deletion_failed_at IS NULL
		ORDER BY deletion_scheduled_at
		LIMIT $2`

	var ids []uuid.UUID
	if err := s.db.SelectContext(ctx, &ids, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}

	return ids, nil
}

func (s *store) ListPending(ctx context.Context, limit, offset int) ([]Account, int, error) {
	return s.list(ctx, "pending",
		`deletion_requested_at IS NOT NULL AND deletion_failed_at IS NULL`,
		`deletion_scheduled_at, id`,
		limit, offset,
	)
}

func (s *store) ListFailed(ctx context.Context, limit, offset int) ([]Account, int, error) {
	return s.list(ctx, "failed",
		`deletion_failed_at IS NOT NULL`,
		`deletion_failed_at DESC, id`,
		limit, offset,
	)
}

func (s *store) ListStaleClaims(
	ctx context.Context,
	startedBefore time.Time,
) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE deletion_purge_started_at IS NOT NULL
		  AND deletion_purge_started_at < $1
		  AND deletion_failed_at IS NULL`

	var ids []uuid.UUID
	if err := s.db.SelectContext(ctx, &ids, query, startedBefore); err != nil {
		return nil, fmt.Errorf("list stale claims: %w", err)
	}

	return ids, nil
}

func (s *store) list(
	ctx context.Context,
	name, where, orderBy string,
	limit, offset int,
) ([]Account, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM users WHERE ` + where
	if err := s.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", name, err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM users WHERE %s ORDER BY %s LIMIT $1 OFFSET $2`,
		accountColumns, where, orderBy,
	)

	accounts := []Account{}
	if err := s.db.SelectContext(ctx, &accounts, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", name, err)
	}

	return accounts, total, nil
}

// explainMiss tells a missing account apart from one in the wrong state
// after a conditional write touched no rows.
func (s *store) explainMiss(ctx context.Context, id uuid.UUID, op string) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrStateConflict)
}
