// AngelaMos | 2026
// executor_test.go

package purge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/testutil"
)

func TestExecutorPurgesOwnedRows(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()

	_, err := db.Exec(`CREATE TABLE posts (
		id SERIAL PRIMARY KEY,
		author_id UUID NOT NULL,
		body TEXT NOT NULL
	)`)
	require.NoError(t, err)

	victim := uuid.New()
	bystander := uuid.New()
	for _, id := range []uuid.UUID{victim, bystander} {
		_, err := db.Exec(
			`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, 'x')`,
			id, id.String()+"@example.com",
		)
		require.NoError(t, err)
		_, err = db.Exec(
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
			uuid.New(), id, uuid.NewString(), time.Now().Add(time.Hour),
		)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO posts (author_id, body) VALUES ($1, 'a'), ($1, 'b')`, id)
		require.NoError(t, err)
	}

	exec := NewExecutor(db, []config.PurgeTable{{Table: "public.posts", Column: "author_id"}})

	summary, err := exec.Purge(ctx, victim)
	require.NoError(t, err)
	assert.Equal(t, Summary{"refresh_tokens": 1, "public.posts": 2}, summary)
	assert.Equal(t, int64(3), summary.Total())

	var left int
	require.NoError(t, db.Get(&left, `SELECT COUNT(*) FROM posts WHERE author_id = $1`, bystander))
	assert.Equal(t, 2, left)
}

func TestExecutorRollsBackOnError(t *testing.T) {
	db := testutil.Postgres(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO users (id, email, password_hash) VALUES ($1, 'r@example.com', 'x')`, id,
	)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, 'h', NOW())`,
		uuid.New(), id,
	)
	require.NoError(t, err)

	exec := NewExecutor(db, []config.PurgeTable{{Table: "no_such_table", Column: "user_id"}})

	_, err = exec.Purge(ctx, id)
	require.Error(t, err)

	var tokens int
	require.NoError(t, db.Get(&tokens, `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1`, id))
	assert.Equal(t, 1, tokens)
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"posts"`, quoteTable("posts"))
	assert.Equal(t, `"public"."posts"`, quoteTable("public.posts"))
	assert.Equal(t, `"we""ird"`, quoteTable(`we"ird`))
}
