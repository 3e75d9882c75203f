package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurapalm/aura/internal/metrics"
)

// RateLimiter caps requests per client address over a sliding window. Each
// client owns a Redis sorted set of request timestamps.
type RateLimiter struct {
	client redis.Cmdable
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per windowSec seconds for each client.
// Limiters with different scopes never share budgets.
func NewRateLimiter(client redis.Cmdable, scope string, limit, windowSec int) *RateLimiter {
	return &RateLimiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: time.Duration(windowSec) * time.Second,
		now:    time.Now,
	}
}

// Middleware rejects over-budget clients with 429. Redis failures let the
// request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		used, err := rl.record(r.Context(), "ratelimit:"+rl.scope+":"+ip)
		if err != nil {
			slog.Warn("rate limiter: counting request, allowing", "error", err, "scope", rl.scope, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - used
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if used > rl.limit {
			metrics.RateLimitedTotal.WithLabelValues(rl.scope).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// record adds this request to the window and returns how many requests the
// window holds including it.
func (rl *RateLimiter) record(ctx context.Context, key string) (int, error) {
	now := rl.now()
	cutoff := now.Add(-rl.window).UnixMicro()

	var card *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: strconv.FormatInt(now.UnixNano(), 36)})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, rl.window+time.Second)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

// clientIP prefers the first X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
