package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tallyworks/tally/pkg/slogx"
)

const redisLimitKeyPrefix = "ratelimit:"

// RedisRateLimiter is a fixed-window limiter shared across replicas. Used for
// login endpoints where brute-force counting must survive process restarts
// and apply across all instances behind a load balancer.
type RedisRateLimiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

// Allow reports whether another request under key fits in the current window.
// Redis failures fail open: a broken limiter must not take logins down.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := redisLimitKeyPrefix + key

	count, err := rl.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		slogx.FromContext(ctx).Warn("redis rate limit check failed, allowing request", "err", err)
		return true
	}
	if count == 1 {
		// First hit in this window owns the expiry.
		if err := rl.Client.Expire(ctx, redisKey, rl.Window).Err(); err != nil {
			slogx.FromContext(ctx).Warn("redis rate limit expire failed", "err", err)
		}
	}

	return count <= int64(rl.Limit)
}

// Middleware applies the limiter per request using the given key extractor.
func (rl *RedisRateLimiter) Middleware(keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)
			if key == "" || rl.Allow(r.Context(), key) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", "60")
			WriteError(w, http.StatusTooManyRequests, KindRateLimited, "too many login attempts")
		})
	}
}
