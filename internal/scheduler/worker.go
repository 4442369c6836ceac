// AngelaMos | 2026
// worker.go

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"
)

// Queue is the storage side of the worker. RedisScheduler implements it.
type Queue interface {
	Schedule(ctx context.Context, job Job) error
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)
	Claim(ctx context.Context, job Job, now time.Time) (bool, error)
}

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	RetryDelay   time.Duration
}

// Worker polls the queue and hands due jobs to a fixed pool of goroutines.
// A job whose handler returns an error is re-armed after RetryDelay; the
// handler is expected to tolerate repeated delivery.
type Worker struct {
	queue   Queue
	handler Handler
	clock   clock.Clock
	cfg     WorkerConfig
	logger  *slog.Logger
}

func NewWorker(
	queue Queue,
	handler Handler,
	clk clock.Clock,
	cfg WorkerConfig,
	logger *slog.Logger,
) *Worker {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}

	return &Worker{
		queue:   queue,
		handler: handler,
		clock:   clk,
		cfg:     cfg,
		logger:  logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	jobs := make(chan Job)
	g, gctx := errgroup.WithContext(ctx)

	for range w.cfg.Workers {
		g.Go(func() error {
			for job := range jobs {
				w.handle(gctx, job)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)

		w.logger.Info("scheduler worker started",
			"workers", w.cfg.Workers,
			"poll_interval", w.cfg.PollInterval,
		)

		for {
			w.poll(gctx, func(job Job) bool {
				select {
				case jobs <- job:
					return true
				case <-gctx.Done():
					return false
				}
			})

			select {
			case <-gctx.Done():
				w.logger.Info("scheduler worker stopped")
				return nil
			case <-w.clock.After(w.cfg.PollInterval):
			}
		}
	})

	return g.Wait()
}

// ProcessDue claims and runs every currently due job on the calling
// goroutine. It returns the number of jobs handled.
func (w *Worker) ProcessDue(ctx context.Context) int {
	handled := 0
	w.poll(ctx, func(job Job) bool {
		w.handle(ctx, job)
		handled++
		return true
	})
	return handled
}

func (w *Worker) poll(ctx context.Context, dispatch func(Job) bool) {
	now := w.clock.Now()

	due, err := w.queue.Due(ctx, now, w.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("poll due jobs", "error", err)
		}
		return
	}

	for _, job := range due {
		claimed, err := w.queue.Claim(ctx, job, now)
		if err != nil {
			w.logger.Error("claim job",
				"kind", job.Kind,
				"account_id", job.AccountID,
				"error", err,
			)
			continue
		}
		if !claimed {
			continue
		}

		if !dispatch(job) {
			w.requeue(ctx, job, job.RunAt)
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, job Job) {
	err := w.handler.HandleJob(ctx, job)
	if err == nil {
		return
	}

	retryAt := w.clock.Now().Add(w.cfg.RetryDelay)
	w.logger.Warn("job failed, re-arming",
		"kind", job.Kind,
		"account_id", job.AccountID,
		"retry_at", retryAt,
		"error", err,
	)
	w.requeue(ctx, job, retryAt)
}

func (w *Worker) requeue(ctx context.Context, job Job, at time.Time) {
	job.RunAt = at

	requeueCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx),
		5*time.Second,
	)
	defer cancel()

	if err := w.queue.Schedule(requeueCtx, job); err != nil {
		w.logger.Error("re-arm job",
			"kind", job.Kind,
			"account_id", job.AccountID,
			"error", err,
		)
	}
}
