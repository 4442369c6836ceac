// AngelaMos | 2026
// redis.go

package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const streamMaxLen = 100_000

type RedisConfig struct {
	Stream         string
	MaxAttempts    int
	InitialBackoff time.Duration
}

// RedisNotifier appends notifications to a Redis stream consumed by the
// mail/push delivery service.
type RedisNotifier struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

func NewRedisNotifier(client redis.UniversalClient, cfg RedisConfig) *RedisNotifier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	return &RedisNotifier{client: client, cfg: cfg}
}

func (n *RedisNotifier) Notify(ctx context.Context, msg Notification) error {
	values := map[string]any{
		"account_id":  msg.AccountID.String(),
		"kind":        string(msg.Kind),
		"occurred_at": msg.OccurredAt.UTC().Format(time.RFC3339),
	}
	if msg.Email != "" {
		values["email"] = msg.Email
	}
	if !msg.ScheduledAt.IsZero() {
		values["scheduled_at"] = msg.ScheduledAt.UTC().Format(time.RFC3339)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.cfg.InitialBackoff
	policy.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return n.client.XAdd(ctx, &redis.XAddArgs{
			Stream: n.cfg.Stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: values,
		}).Err()
	}, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(n.cfg.MaxAttempts-1)), //nolint:gosec // validated >= 1
		ctx,
	))
	if err != nil {
		return &TransientDeliveryError{Kind: msg.Kind, Attempts: attempts, Err: err}
	}

	return nil
}
