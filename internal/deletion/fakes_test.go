// AngelaMos | 2026
// fakes_test.go

package deletion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/erasure/internal/alert"
	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/notify"
	"github.com/carterperez-dev/erasure/internal/purge"
	"github.com/carterperez-dev/erasure/internal/scheduler"
)

type memStore struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*Account
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{accounts: map[uuid.UUID]*Account{}}
}

func (s *memStore) add(email string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.accounts[id] = &Account{ID: id, Email: email, IsActive: true}
	return id
}

func (s *memStore) snapshot(id uuid.UUID) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

func (s *memStore) miss(id uuid.UUID, op string) error {
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrStateConflict)
}

func ptr[T any](v T) *T { return &v }

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) MarkRequested(
	_ context.Context,
	id uuid.UUID,
	requestedAt, scheduledAt time.Time,
	reason string,
) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.RequestedAt != nil {
		return nil, s.miss(id, "mark requested")
	}
	a.RequestedAt = ptr(requestedAt)
	a.ScheduledAt = ptr(scheduledAt)
	if reason != "" {
		a.Reason = ptr(reason)
	}
	a.IsActive = false
	cp := *a
	return &cp, nil
}

func (s *memStore) ClearDeletion(_ context.Context, id uuid.UUID, includeFailed bool) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	clearable := a != nil && (a.PurgeStartedAt == nil || (includeFailed && a.FailedAt != nil))
	if !ok || a.RequestedAt == nil || !clearable {
		return nil, s.miss(id, "clear deletion")
	}
	*a = Account{ID: a.ID, Email: a.Email, IsActive: true}
	cp := *a
	return &cp, nil
}

func (s *memStore) ClaimPurge(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.RequestedAt == nil || a.ScheduledAt.After(now) ||
		a.PurgeStartedAt != nil || a.FailedAt != nil {
		return false, nil
	}
	a.PurgeStartedAt = ptr(now)
	return true, nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, now time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.PurgeStartedAt == nil || a.FailedAt != nil {
		return s.miss(id, "mark failed")
	}
	a.FailedAt = ptr(now)
	a.FailureReason = ptr(reason)
	a.IsActive = false
	return nil
}

func (s *memStore) DeleteAccount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	a, ok := s.accounts[id]
	if !ok || a.PurgeStartedAt == nil || a.FailedAt != nil {
		return s.miss(id, "delete account")
	}
	delete(s.accounts, id)
	return nil
}

func (s *memStore) ListDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range s.accounts {
		if a.RequestedAt != nil && !a.ScheduledAt.After(now) && a.FailedAt == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) filter(keep func(*Account) bool, limit, offset int) ([]Account, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Account
	for _, a := range s.accounts {
		if keep(a) {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	total := len(all)
	if offset >= total {
		return []Account{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *memStore) ListPending(_ context.Context, limit, offset int) ([]Account, int, error) {
	return s.filter(func(a *Account) bool {
		return a.RequestedAt != nil && a.FailedAt == nil
	}, limit, offset)
}

func (s *memStore) ListFailed(_ context.Context, limit, offset int) ([]Account, int, error) {
	return s.filter(func(a *Account) bool { return a.FailedAt != nil }, limit, offset)
}

func (s *memStore) ListStaleClaims(_ context.Context, before time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range s.accounts {
		if a.PurgeStartedAt != nil && a.PurgeStartedAt.Before(before) && a.FailedAt == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memScheduler struct {
	mu         sync.Mutex
	jobs       map[string]scheduler.Job
	cancelErr  error
	pendingErr error
}

func newMemScheduler() *memScheduler {
	return &memScheduler{jobs: map[string]scheduler.Job{}}
}

func jobKey(kind scheduler.Kind, id uuid.UUID) string {
	return string(kind) + ":" + id.String()
}

func (s *memScheduler) Schedule(_ context.Context, job scheduler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobKey(job.Kind, job.AccountID)] = job
	return nil
}

func (s *memScheduler) Cancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return s.cancelErr
	}
	delete(s.jobs, jobKey(scheduler.KindExecute, id))
	delete(s.jobs, jobKey(scheduler.KindPurge, id))
	return nil
}

func (s *memScheduler) Pending(
	_ context.Context,
	kind scheduler.Kind,
	id uuid.UUID,
) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingErr != nil {
		return time.Time{}, false, s.pendingErr
	}
	job, ok := s.jobs[jobKey(kind, id)]
	return job.RunAt, ok, nil
}

func (s *memScheduler) job(kind scheduler.Kind, id uuid.UUID) (scheduler.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobKey(kind, id)]
	return job, ok
}

// take removes an armed job the way the worker's claim does.
func (s *memScheduler) take(kind scheduler.Kind, id uuid.UUID) (scheduler.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey(kind, id)
	job, ok := s.jobs[key]
	delete(s.jobs, key)
	return job, ok
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notify.Kind, len(n.sent))
	for i, msg := range n.sent {
		kinds[i] = msg.Kind
	}
	return kinds
}

func (n *recordingNotifier) last() notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type recordingAlerter struct {
	mu     sync.Mutex
	raised []alert.Alert
}

func (a *recordingAlerter) Raise(_ context.Context, al alert.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raised = append(a.raised, al)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.raised)
}

type fakePurger struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	fn    func(ctx context.Context, id uuid.UUID) error
}

func newFakePurger() *fakePurger {
	return &fakePurger{calls: map[uuid.UUID]int{}}
}

func (p *fakePurger) Purge(ctx context.Context, id uuid.UUID) (purge.Summary, error) {
	p.mu.Lock()
	p.calls[id]++
	fn := p.fn
	p.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, id); err != nil {
			return nil, err
		}
	}
	return purge.Summary{"refresh_tokens": 2}, nil
}

func (p *fakePurger) count(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

type revoker struct {
	mu      sync.Mutex
	revoked []uuid.UUID
}

func (r *revoker) RevokeSessions(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, id)
	return nil
}

func failingPurge(msg string) func(context.Context, uuid.UUID) error {
	return func(context.Context, uuid.UUID) error {
		return errors.New(msg)
	}
}
