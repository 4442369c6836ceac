// AngelaMos | 2026
// executor.go

package purge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/core"
)

// Summary counts deleted rows per table.
type Summary map[string]int64

func (s Summary) Total() int64 {
	var n int64
	for _, rows := range s {
		n += rows
	}
	return n
}

// Executor deletes everything an account owns apart from the users row
// itself. All tables are cleared in one transaction, so a failure leaves
// nothing half deleted.
type Executor struct {
	db     *sqlx.DB
	tables []config.PurgeTable
}

func NewExecutor(db *sqlx.DB, tables []config.PurgeTable) *Executor {
	owned := []config.PurgeTable{{Table: "refresh_tokens", Column: "user_id"}}
	for _, t := range tables {
		if t.Table == "refresh_tokens" {
			continue
		}
		owned = append(owned, t)
	}
	return &Executor{db: db, tables: owned}
}

func (e *Executor) Purge(ctx context.Context, accountID uuid.UUID) (Summary, error) {
	summary := make(Summary, len(e.tables))

	err := core.InTx(ctx, e.db, func(tx *sqlx.Tx) error {
		for _, t := range e.tables {
			query := fmt.Sprintf(
				"DELETE FROM %s WHERE %s = $1",
				quoteTable(t.Table),
				pgx.Identifier{t.Column}.Sanitize(),
			)

			result, err := tx.ExecContext(ctx, query, accountID)
			if err != nil {
				return fmt.Errorf("purge %s: %w", t.Table, err)
			}

			rows, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("purge %s: %w", t.Table, err)
			}
			summary[t.Table] = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// quoteTable accepts "table" or "schema.table".
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
