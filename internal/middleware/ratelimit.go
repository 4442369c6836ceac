// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/erasure/internal/core"
)

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
	// FailOpen switches to the in-process limiter when Redis errors
	// instead of rejecting the request.
	FailOpen bool
}

// RateLimiter enforces a GCRA limit in Redis.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: &localLimiter{entries: map[string]*localEntry{}},
		config:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)

		allowed, retryAfter, err := rl.allow(r.Context(), key)
		if err != nil {
			slog.Error("rate limiter unavailable", "error", err, "key", key)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit.Rate))

		if !allowed {
			secs := max(int(retryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			core.JSONError(w, &core.AppError{
				Status:  http.StatusTooManyRequests,
				Code:    "RATE_LIMITED",
				Message: "rate limit exceeded; retry after " + strconv.Itoa(secs) + " seconds",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err == nil {
		return res.Allowed > 0, res.RetryAfter, nil
	}
	if !rl.config.FailOpen {
		return false, 0, err
	}
	allowed, retryAfter := rl.fallback.allow(key, rl.config.Limit)
	return allowed, retryAfter, nil
}

func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return "ratelimit:ip:" + strings.TrimSpace(ips[len(ips)-1])
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	return "ratelimit:ip:" + ip
}

// KeyByUser limits authenticated callers per account.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

func PerMinute(n, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: n, Burst: burst, Period: time.Minute}
}

func PerHour(n, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: n, Burst: burst, Period: time.Hour}
}

const localEntryTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastPrune time.Time
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) (bool, time.Duration) {
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastPrune) > localEntryTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > localEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastPrune = now
	}

	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	if entry.limiter.Allow() {
		return true, 0
	}
	return false, time.Duration(float64(time.Second) / perSec)
}
