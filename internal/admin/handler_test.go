// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/deletion"
)

type fakeDeletions struct {
	accounts  map[uuid.UUID]*deletion.Account
	due       []uuid.UUID
	dueAsOf   time.Time
	cancelled []uuid.UUID
	executed  []uuid.UUID
	cancelErr error
}

func (f *fakeDeletions) Status(_ context.Context, id uuid.UUID) (*deletion.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("status: %w", core.ErrNotFound)
	}
	return a, nil
}

func (f *fakeDeletions) list(state deletion.State, limit, offset int) ([]deletion.Account, int, error) {
	var out []deletion.Account
	for _, a := range f.accounts {
		if a.State() == state {
			out = append(out, *a)
		}
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	return out[offset:min(total, offset+limit)], total, nil
}

func (f *fakeDeletions) ListPending(_ context.Context, limit, offset int) ([]deletion.Account, int, error) {
	return f.list(deletion.StatePending, limit, offset)
}

func (f *fakeDeletions) ListFailed(_ context.Context, limit, offset int) ([]deletion.Account, int, error) {
	return f.list(deletion.StateFailed, limit, offset)
}

func (f *fakeDeletions) ListDueForDeletion(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.dueAsOf = now
	return f.due, nil
}

func (f *fakeDeletions) ProcessDue(context.Context) (deletion.SweepResult, error) {
	return deletion.SweepResult{Due: len(f.due)}, nil
}

func (f *fakeDeletions) Recover(context.Context) (deletion.RecoverResult, error) {
	return deletion.RecoverResult{Rearmed: len(f.accounts)}, nil
}

func (f *fakeDeletions) CancelDeletion(_ context.Context, id uuid.UUID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeDeletions) ExecuteDeletion(_ context.Context, id uuid.UUID) error {
	f.executed = append(f.executed, id)
	return nil
}

func passthrough(next http.Handler) http.Handler { return next }

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *core.Meta      `json:"meta"`
}

func call(t *testing.T, h *Handler, method, path string) (int, envelope) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r, passthrough, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func fixture() (*fakeDeletions, uuid.UUID, uuid.UUID) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pendingID, failedID := uuid.New(), uuid.New()
	reason := "timeout"

	return &fakeDeletions{
		accounts: map[uuid.UUID]*deletion.Account{
			pendingID: {
				ID:          pendingID,
				Email:       "p@example.com",
				RequestedAt: &now,
				ScheduledAt: &now,
			},
			failedID: {
				ID:            failedID,
				Email:         "f@example.com",
				RequestedAt:   &now,
				ScheduledAt:   &now,
				FailedAt:      &now,
				FailureReason: &reason,
			},
		},
		due: []uuid.UUID{pendingID},
	}, pendingID, failedID
}

func TestListFailedShowsOperatorDetail(t *testing.T) {
	fake, _, failedID := fixture()
	h := NewHandler(HandlerConfig{Deletions: fake})

	code, env := call(t, h, http.MethodGet, "/admin/deletions/failed")
	require.Equal(t, http.StatusOK, code)

	var views []deletion.OperatorView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, failedID.String(), views[0].ID)
	require.NotNil(t, views[0].FailureReason)
	assert.Equal(t, "timeout", *views[0].FailureReason)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)
}

func TestListDueUsesClock(t *testing.T) {
	fake, pendingID, _ := fixture()
	clk := testclock.NewClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	h := NewHandler(HandlerConfig{Deletions: fake, Clock: clk})

	code, env := call(t, h, http.MethodGet, "/admin/deletions/due")
	require.Equal(t, http.StatusOK, code)

	var due DueResponse
	require.NoError(t, json.Unmarshal(env.Data, &due))
	assert.Equal(t, []string{pendingID.String()}, due.AccountIDs)
	assert.True(t, fake.dueAsOf.Equal(clk.Now()))
}

func TestCancelAndExecute(t *testing.T) {
	fake, pendingID, failedID := fixture()
	h := NewHandler(HandlerConfig{Deletions: fake})

	code, _ := call(t, h, http.MethodPost, "/admin/deletions/"+failedID.String()+"/cancel")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, []uuid.UUID{failedID}, fake.cancelled)

	code, _ = call(t, h, http.MethodPost, "/admin/deletions/"+pendingID.String()+"/execute")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []uuid.UUID{pendingID}, fake.executed)

	code, _ = call(t, h, http.MethodPost, "/admin/deletions/not-a-uuid/cancel")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCancelConflict(t *testing.T) {
	fake, pendingID, _ := fixture()
	fake.cancelErr = fmt.Errorf("cancel: %w", deletion.ErrStateConflict)
	h := NewHandler(HandlerConfig{Deletions: fake})

	code, _ := call(t, h, http.MethodPost, "/admin/deletions/"+pendingID.String()+"/cancel")
	assert.Equal(t, http.StatusConflict, code)
}

func TestGetDeletionNotFound(t *testing.T) {
	fake, _, _ := fixture()
	h := NewHandler(HandlerConfig{Deletions: fake})

	code, _ := call(t, h, http.MethodGet, "/admin/deletions/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSystemStatsIncludesBacklog(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Backlog: func(context.Context) (int64, error) { return 7, nil },
	})

	code, env := call(t, h, http.MethodGet, "/admin/stats")
	require.Equal(t, http.StatusOK, code)

	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.NotNil(t, stats.Scheduler)
	assert.Equal(t, int64(7), stats.Scheduler.Backlog)
	assert.True(t, stats.Database.Healthy)
}
