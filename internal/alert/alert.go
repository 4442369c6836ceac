// AngelaMos | 2026
// alert.go

package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
)

// Alert asks an operator to look at an account. Reason is internal detail
// and never shown to the account owner.
type Alert struct {
	AccountID uuid.UUID `json:"account_id"`
	Severity  Severity  `json:"severity"`
	Summary   string    `json:"summary"`
	Reason    string    `json:"reason"`
	RaisedAt  time.Time `json:"raised_at"`
}

type Alerter interface {
	Raise(ctx context.Context, a Alert) error
}

// RedisAlerter logs the alert at error level and publishes it on a pub/sub
// channel watched by the on-call tooling.
type RedisAlerter struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

func NewRedisAlerter(
	client redis.UniversalClient,
	channel string,
	logger *slog.Logger,
) *RedisAlerter {
	return &RedisAlerter{client: client, channel: channel, logger: logger}
}

func (r *RedisAlerter) Raise(ctx context.Context, a Alert) error {
	r.logger.Error("operator alert",
		"severity", a.Severity,
		"account_id", a.AccountID,
		"summary", a.Summary,
		"reason", a.Reason,
	)

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	return nil
}
