// AngelaMos | 2026
// redis_test.go

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/erasure/internal/testutil"
)

func TestRedisNotifierQueuesOnStream(t *testing.T) {
	client := testutil.Redis(t)
	ctx := context.Background()

	n := NewRedisNotifier(client, RedisConfig{Stream: "test:notifications"})

	id := uuid.New()
	scheduled := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, n.Notify(ctx, Notification{
		AccountID:   id,
		Kind:        KindRequested,
		Email:       "user@example.com",
		ScheduledAt: scheduled,
		OccurredAt:  scheduled.Add(-720 * time.Hour),
	}))

	entries, err := client.XRange(ctx, "test:notifications", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, id.String(), values["account_id"])
	assert.Equal(t, "requested", values["kind"])
	assert.Equal(t, "user@example.com", values["email"])
	assert.Equal(t, "2026-04-01T00:00:00Z", values["scheduled_at"])
}

func TestRedisNotifierGivesUpAfterBudget(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() }) //nolint:errcheck

	n := NewRedisNotifier(client, RedisConfig{
		Stream:         "unreachable",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	err := n.Notify(context.Background(), Notification{
		AccountID: uuid.New(),
		Kind:      KindCancelled,
	})

	var delivery *TransientDeliveryError
	require.True(t, errors.As(err, &delivery))
	assert.Equal(t, 3, delivery.Attempts)
	assert.Equal(t, KindCancelled, delivery.Kind)
}
