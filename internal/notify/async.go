// AngelaMos | 2026
// async.go

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Async hands notifications to a background goroutine so callers never
// wait on delivery. Failures are logged and dropped.
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration, logger *slog.Logger) *Async {
	return &Async{next: next, timeout: timeout, logger: logger}
}

func (a *Async) Notify(ctx context.Context, n Notification) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Notify(sendCtx, n); err != nil {
			a.logger.Warn("notification dropped",
				"account_id", n.AccountID,
				"kind", n.Kind,
				"error", err,
			)
		}
	}()
	return nil
}

// Wait blocks until in-flight notifications finish.
func (a *Async) Wait() {
	a.wg.Wait()
}
