package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bus-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindow counts hits per key in a window of ARGV[1] milliseconds and
// returns {count, ttl_ms}.
var fixedWindow = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { count, ttl }
`)

// RateLimit throttles requests per user (or per client IP for anonymous
// callers). Without a Redis client, or when Redis errors, requests pass.
func RateLimit(rdb *redis.Client, cfg utils.RedisConfig, prefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	if rdb == nil || !cfg.RateLimitEnabled || cfg.RateLimitRequest <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	limit := cfg.RateLimitRequest

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(prefix, r)

			vals, err := fixedWindow.Run(r.Context(), rdb, []string{key}, window.Milliseconds()).Int64Slice()
			if err != nil || len(vals) != 2 {
				logger.Warn("Rate limiter unavailable, allowing request",
					zap.Error(err),
					zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			count, ttlMs := vals[0], vals[1]
			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				secs := int(math.Ceil(float64(ttlMs) / 1000))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				logger.Info("Rate limit exceeded", zap.String("key", key), zap.Int64("count", count))
				utils.ResponseTooManyRequests(w, "Too many requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(prefix string, r *http.Request) string {
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return strings.Join([]string{"ratelimit", prefix, "user", userID.String()}, ":")
	}
	return strings.Join([]string{"ratelimit", prefix, "ip", clientIP(r)}, ":")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
