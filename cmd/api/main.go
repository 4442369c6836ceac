// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/erasure/internal/admin"
	"github.com/carterperez-dev/erasure/internal/app"
	"github.com/carterperez-dev/erasure/internal/auth"
	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/core"
	"github.com/carterperez-dev/erasure/internal/health"
	"github.com/carterperez-dev/erasure/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized", "endpoint", cfg.Otel.Endpoint)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	userSvc := user.NewService(user.NewRepository(a.DB.DB))

	authSvc := auth.NewService(auth.NewRepository(a.DB.DB), jwtManager, userSvc.Accounts(), a.Clock, logger)

	a.SetSessions(authSvc)

	recovered, err := a.Manager.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover deletion schedule: %w", err)
	}
	logger.Info("deletion schedule recovered",
		"rearmed", recovered.Rearmed,
		"interrupted", recovered.Interrupted,
	)

	healthHandler := health.NewHandler(
		health.Ping("database", a.DB),
		health.Ping("redis", a.Redis),
		health.Check{Name: "scheduler", Fn: func(ctx context.Context) (string, error) {
			n, err := a.Scheduler.Backlog(ctx)
			return fmt.Sprintf("backlog=%d", n), err
		}},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    a.DB.Stats,
		RedisStats: a.Redis.PoolStats,
		DBPing:     a.DB.Ping,
		RedisPing:  a.Redis.Ping,
		Backlog:    a.Scheduler.Backlog,
		Deletions:  a.Manager,
		Clock:      a.Clock,
	})

	srv := newServer(routeDeps{
		Config:    cfg,
		Logger:    logger,
		Redis:     a.Redis.Client,
		Gatherer:  a.Registry,
		Health:    healthHandler,
		JWT:       jwtManager,
		Auth:      authSvc,
		Users:     userSvc,
		Deletions: a.Manager,
		Admin:     adminHandler,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error { return a.Worker().Run(gctx) })
	g.Go(func() error { return a.Sweeper().Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
		)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("application stopped")
	return nil
}
