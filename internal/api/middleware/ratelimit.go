package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Send limits: per operator, fixed window.
const (
	sendLimit  = 30
	sendWindow = time.Minute
)

// RateLimiter throttles message sends per operator using a Redis
// counter with a windowed expiry.
type RateLimiter struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRateLimiter creates a rate limiter. A nil client (development
// without Redis) disables limiting.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

// sendKey buckets the counter by time window, so each window starts
// from a fresh key and stale counters simply expire.
func sendKey(operatorID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:sends:%s:%d", operatorID, now.Unix()/int64(sendWindow.Seconds()))
}

// windowReset returns the time remaining until the current window rolls
// over.
func windowReset(now time.Time) time.Duration {
	elapsed := time.Duration(now.Unix()%int64(sendWindow.Seconds())) * time.Second
	return sendWindow - elapsed
}

// LimitSends applies the send limit to the wrapped handler.
func (rl *RateLimiter) LimitSends(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.client == nil {
			next.ServeHTTP(w, r)
			return
		}

		op := GetOperator(r.Context())
		if op == nil {
			// auth runs first; missing operator means the route is
			// misconfigured, not that the client gets a free pass
			unauthorized(w, "authentication required")
			return
		}

		now := time.Now()
		key := sendKey(op.ID, now)

		pipe := rl.client.Pipeline()
		incr := pipe.Incr(r.Context(), key)
		// TTL outlives the window so a bucket straddling the rollover
		// still expires; the bucketed key keeps counts from leaking
		// into the next window.
		pipe.Expire(r.Context(), key, sendWindow*2)
		if _, err := pipe.Exec(r.Context()); err != nil {
			// fail open on limiter errors
			rl.logger.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := int64(sendLimit) - count
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(sendLimit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > sendLimit {
			w.Header().Set("Retry-After", strconv.Itoa(int(windowReset(now).Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
