// AngelaMos | 2026
// redis.go

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript removes a member only while its score is still due, so a job
// re-armed for later between Due and Claim is left alone.
var claimScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if score and tonumber(score) <= tonumber(ARGV[2]) then
	return redis.call('ZREM', KEYS[1], ARGV[1])
end
return 0
`)

// RedisScheduler keeps jobs in a sorted set scored by run-at unix millis.
// Members are "<kind>:<account id>", so each account has at most one job
// of each kind.
type RedisScheduler struct {
	client redis.UniversalClient
	key    string
}

func NewRedisScheduler(client redis.UniversalClient, key string) *RedisScheduler {
	return &RedisScheduler{client: client, key: key}
}

func (s *RedisScheduler) Schedule(ctx context.Context, job Job) error {
	err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.member(),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule %s job: %w", job.Kind, err)
	}
	return nil
}

func (s *RedisScheduler) Cancel(ctx context.Context, accountID uuid.UUID) error {
	err := s.client.ZRem(ctx, s.key,
		Job{Kind: KindExecute, AccountID: accountID}.member(),
		Job{Kind: KindPurge, AccountID: accountID}.member(),
	).Err()
	if err != nil {
		return fmt.Errorf("cancel jobs: %w", err)
	}
	return nil
}

func (s *RedisScheduler) Pending(
	ctx context.Context,
	kind Kind,
	accountID uuid.UUID,
) (time.Time, bool, error) {
	score, err := s.client.ZScore(
		ctx, s.key, Job{Kind: kind, AccountID: accountID}.member(),
	).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("lookup %s job: %w", kind, err)
	}
	return time.UnixMilli(int64(score)).UTC(), true, nil
}

// Due returns up to limit jobs whose run-at is at or before now, oldest
// first. Malformed members are dropped from the set.
func (s *RedisScheduler) Due(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]Job, error) {
	entries, err := s.client.ZRangeByScoreWithScores(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}

	jobs := make([]Job, 0, len(entries))
	for _, entry := range entries {
		member, _ := entry.Member.(string)
		job, err := parseMember(member, entry.Score)
		if err != nil {
			_ = s.client.ZRem(ctx, s.key, entry.Member).Err() //nolint:errcheck // poison member
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Claim removes a due job. Only one caller can win the claim for a given
// member, which keeps concurrent workers from running the same job twice.
func (s *RedisScheduler) Claim(
	ctx context.Context,
	job Job,
	now time.Time,
) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{s.key},
		job.member(), now.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("claim %s job: %w", job.Kind, err)
	}
	return n == 1, nil
}

func (s *RedisScheduler) Backlog(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}
