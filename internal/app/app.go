// AngelaMos | 2026
// app.go

// Package app wires the erasure lifecycle to its Postgres and Redis
// backends. The API server and the operator CLI share it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/carterperez-dev/erasure/internal/alert"
	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/deletion"
	"github.com/carterperez-dev/erasure/internal/notify"
	"github.com/carterperez-dev/erasure/internal/purge"
	"github.com/carterperez-dev/erasure/internal/scheduler"
)

const notifyTimeout = 30 * time.Second

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Clock     clock.Clock
	DB        *core.Database
	Redis     *core.Redis
	Registry  *prometheus.Registry
	Scheduler *scheduler.RedisScheduler
	Notifier  *notify.Async
	Manager   *deletion.Manager
}

// New connects to Postgres and Redis and builds the deletion manager.
// Session revocation is attached later with SetSessions by callers that
// serve authenticated users.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, logger); err != nil {
			_ = db.Close() //nolint:errcheck // cleanup on startup failure
			return nil, err
		}
	}

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on startup failure
		return nil, err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sched := scheduler.NewRedisScheduler(rdb.Client, cfg.Scheduler.Key)
	if err := scheduler.RegisterBacklogGauge(registry, sched); err != nil {
		_ = rdb.Close() //nolint:errcheck // cleanup on startup failure
		_ = db.Close()  //nolint:errcheck // cleanup on startup failure
		return nil, fmt.Errorf("register scheduler metrics: %w", err)
	}

	notifier := notify.NewAsync(
		notify.NewRedisNotifier(rdb.Client, notify.RedisConfig{
			Stream:         cfg.Notify.Stream,
			MaxAttempts:    cfg.Notify.MaxAttempts,
			InitialBackoff: cfg.Notify.InitialBackoff,
		}),
		notifyTimeout,
		logger,
	)

	clk := clock.WallClock

	manager := deletion.NewManager(deletion.Deps{
		Store:     deletion.NewStore(db.DB),
		Scheduler: sched,
		Purger:    purge.NewExecutor(db.DB, cfg.Deletion.PurgeTables),
		Notifier:  notifier,
		Alerter:   alert.NewRedisAlerter(rdb.Client, cfg.Alert.Channel, logger),
		Clock:     clk,
		Metrics:   deletion.NewMetrics(registry),
		Logger:    logger,
	}, deletion.Config{
		GracePeriod:       cfg.Deletion.GracePeriod,
		FinalWarningDelay: cfg.Deletion.FinalWarningDelay,
		PurgeTimeout:      cfg.Deletion.PurgeTimeout,
		SweepBatchSize:    cfg.Deletion.SweepBatchSize,
		StalePurgeAfter:   cfg.Deletion.StalePurgeAfter,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Clock:     clk,
		DB:        db,
		Redis:     rdb,
		Registry:  registry,
		Scheduler: sched,
		Notifier:  notifier,
		Manager:   manager,
	}, nil
}

// SetSessions must be called before the worker or server starts.
func (a *App) SetSessions(sessions deletion.SessionRevoker) {
	a.Manager.SetSessions(sessions)
}

func (a *App) Worker() *scheduler.Worker {
	return scheduler.NewWorker(a.Scheduler, a.Manager, a.Clock, scheduler.WorkerConfig{
		PollInterval: a.Config.Scheduler.PollInterval,
		BatchSize:    a.Config.Scheduler.BatchSize,
		Workers:      a.Config.Scheduler.Workers,
	}, a.Logger)
}

func (a *App) Sweeper() *deletion.Sweeper {
	return deletion.NewSweeper(a.Manager, a.Clock, a.Config.Deletion.SweepInterval, a.Logger)
}

// Close waits for in-flight notifications before dropping connections.
func (a *App) Close() {
	a.Notifier.Wait()

	if err := a.Redis.Close(); err != nil {
		a.Logger.Error("redis close error", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}

func NewLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	if f := cfg.File; f.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    max(1, f.MaxSizeMB),
			MaxBackups: max(0, f.MaxBackups),
			MaxAge:     max(0, f.MaxAgeDays),
			Compress:   f.Compress,
		})
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
