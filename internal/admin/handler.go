// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/deletion"
)

// Deletions is the operator surface of the erasure lifecycle.
type Deletions interface {
	Status(ctx context.Context, accountID uuid.UUID) (*deletion.Account, error)
	ListPending(ctx context.Context, limit, offset int) ([]deletion.Account, int, error)
	ListFailed(ctx context.Context, limit, offset int) ([]deletion.Account, int, error)
	ListDueForDeletion(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ProcessDue(ctx context.Context) (deletion.SweepResult, error)
	Recover(ctx context.Context) (deletion.RecoverResult, error)
	CancelDeletion(ctx context.Context, accountID uuid.UUID) error
	ExecuteDeletion(ctx context.Context, accountID uuid.UUID) error
}

type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
	backlog    func(ctx context.Context) (int64, error)
	deletions  Deletions
	clock      clock.Clock
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
	Backlog    func(ctx context.Context) (int64, error)
	Deletions  Deletions
	Clock      clock.Clock
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Handler{
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
		backlog:    cfg.Backlog,
		deletions:  cfg.Deletions,
		clock:      cfg.Clock,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)

		if h.deletions != nil {
			r.Route("/deletions", func(r chi.Router) {
				r.Get("/pending", h.ListPending)
				r.Get("/failed", h.ListFailed)
				r.Get("/due", h.ListDue)
				r.Post("/process-due", h.ProcessDue)
				r.Post("/recover", h.Recover)
				r.Get("/{userID}", h.GetDeletion)
				r.Post("/{userID}/cancel", h.CancelDeletion)
				r.Post("/{userID}/execute", h.ExecuteDeletion)
			})
		}
	})
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.listAccounts(w, r, h.deletions.ListPending)
}

// ListFailed is the manual review queue. Entries stay until an operator
// cancels them.
func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	h.listAccounts(w, r, h.deletions.ListFailed)
}

func (h *Handler) listAccounts(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, limit, offset int) ([]deletion.Account, int, error),
) {
	page, pageSize := pagination(r)

	accounts, total, err := list(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, deletion.ToOperatorViews(accounts), page, pageSize, total)
}

func (h *Handler) ListDue(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()

	ids, err := h.deletions.ListDueForDeletion(r.Context(), now)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	core.OK(w, DueResponse{AsOf: now.UTC(), AccountIDs: out})
}

func (h *Handler) ProcessDue(w http.ResponseWriter, r *http.Request) {
	result, err := h.deletions.ProcessDue(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, result)
}

func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	result, err := h.deletions.Recover(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, result)
}

func (h *Handler) GetDeletion(w http.ResponseWriter, r *http.Request) {
	id, ok := accountParam(w, r)
	if !ok {
		return
	}

	acct, err := h.deletions.Status(r.Context(), id)
	if err != nil {
		deletion.WriteError(w, err)
		return
	}

	core.OK(w, deletion.ToOperatorView(acct))
}

// CancelDeletion also clears a FAILED deletion after manual review.
func (h *Handler) CancelDeletion(w http.ResponseWriter, r *http.Request) {
	id, ok := accountParam(w, r)
	if !ok {
		return
	}

	if err := h.deletions.CancelDeletion(r.Context(), id); err != nil {
		deletion.WriteError(w, err)
		return
	}

	core.NoContent(w)
}

// ExecuteDeletion runs the grace period callback for one account now. An
// account that is not yet due is left pending with its callback re-armed.
func (h *Handler) ExecuteDeletion(w http.ResponseWriter, r *http.Request) {
	id, ok := accountParam(w, r)
	if !ok {
		return
	}

	if err := h.deletions.ExecuteDeletion(r.Context(), id); err != nil {
		deletion.WriteError(w, err)
		return
	}

	core.Accepted(w, nil)
}

func accountParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		core.BadRequest(w, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (page, pageSize int) {
	page = queryInt(r, "page", 1)
	pageSize = queryInt(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: probe(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: probe(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime: runtimeStats(),
	}

	if h.backlog != nil {
		n, err := h.backlog(ctx)
		response.Scheduler = &SchedulerStatus{Healthy: err == nil, Backlog: n}
	}

	core.OK(w, response)
}

func probe(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return true
	}
	return ping(ctx) == nil
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, runtimeStats())
}

func runtimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type DueResponse struct {
	AsOf       time.Time `json:"as_of"`
	AccountIDs []string  `json:"account_ids"`
}

type SystemStatsResponse struct {
	Database  DatabaseStatus   `json:"database"`
	Redis     RedisStatus      `json:"redis"`
	Scheduler *SchedulerStatus `json:"scheduler,omitempty"`
	Runtime   RuntimeStats     `json:"runtime"`
}

type SchedulerStatus struct {
	Healthy bool  `json:"healthy"`
	Backlog int64 `json:"backlog"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
