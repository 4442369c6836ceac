// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/testutil"
)

func TestRepository(t *testing.T) {
	db := testutil.Postgres(t)
	repo := NewRepository(db)
	svc := NewService(repo)
	accts := svc.Accounts()
	ctx := context.Background()

	info, err := accts.Create(ctx, "Grace@Example.com", "hash", "Grace")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", info.Email)
	assert.Equal(t, LifecycleActive, info.Lifecycle)

	_, err = accts.Create(ctx, "grace@example.com", "hash", "Again")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	t.Run("lookup", func(t *testing.T) {
		byEmail, err := accts.GetByEmail(ctx, "GRACE@example.com")
		require.NoError(t, err)
		assert.Equal(t, info.ID, byEmail.ID)

		_, err = repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("token version", func(t *testing.T) {
		require.NoError(t, accts.IncrementTokenVersion(ctx, info.ID))
		u, err := repo.GetByID(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, u.TokenVersion)

		err = repo.IncrementTokenVersion(ctx, uuid.NewString())
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("lifecycle filter", func(t *testing.T) {
		pending, err := accts.Create(ctx, "pending@example.com", "hash", "Pending")
		require.NoError(t, err)

		now := time.Now().UTC()
		_, err = db.Exec(`
			UPDATE users
			SET deletion_requested_at = $2, deletion_scheduled_at = $3, is_active = FALSE
			WHERE id = $1`,
			pending.ID, now, now.Add(time.Hour),
		)
		require.NoError(t, err)

		active, err := svc.IsActive(ctx, pending.ID)
		require.NoError(t, err)
		assert.False(t, active)

		users, total, err := repo.List(ctx, ListUsersParams{Lifecycle: LifecyclePending})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, users, 1)
		assert.Equal(t, pending.ID, users[0].ID)
		assert.Equal(t, LifecyclePending, users[0].Lifecycle())

		users, _, err = svc.List(ctx, ListUsersParams{Lifecycle: LifecycleActive, Search: "grace"})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, info.ID, users[0].ID)
	})

	t.Run("edit", func(t *testing.T) {
		name := "  Grace H.  "
		u, err := svc.Edit(ctx, info.ID, Patch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Grace H.", u.Name)

		bad := "root"
		_, err = svc.Edit(ctx, info.ID, Patch{Role: &bad})
		assert.ErrorIs(t, err, core.ErrInvalidInput)

		pending, err := accts.GetByEmail(ctx, "pending@example.com")
		require.NoError(t, err)
		_, err = svc.Edit(ctx, pending.ID, Patch{Name: &name})
		assert.ErrorIs(t, err, core.ErrConflict)

		_, err = svc.Get(ctx, "")
		assert.ErrorIs(t, err, core.ErrUnauthorized)
	})
}
