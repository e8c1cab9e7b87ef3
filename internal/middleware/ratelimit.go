package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/iliyamo/recipe-api/internal/config"
)

// bucket takes one token for key. remaining is the count left after the
// call; retry is how long until the next token when the call is refused.
type bucket interface {
	take(ctx context.Context, key string) (allowed bool, remaining int64, retry time.Duration, err error)
}

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// redisBucket shares the bucket across every instance behind the same Redis.
type redisBucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

func (b redisBucket) take(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	args := []interface{}{
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}
	vals, err := limiterScript.Run(ctx, b.rdb, []string{key}, args...).Result()
	if err != nil {
		return false, 0, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result %#v", vals)
	}
	return asInt64(arr[0]) == 1, asInt64(arr[1]), time.Duration(asInt64(arr[2])) * time.Millisecond, nil
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// localBucket keeps one rate.Limiter per key in process memory. Entries
// idle for longer than the configured TTL are swept on insert.
type localBucket struct {
	mu      sync.Mutex
	cfg     config.RateLimitConfig
	now     func() time.Time
	entries map[string]*localEntry
	sweepAt time.Time
}

func newLocalBucket(cfg config.RateLimitConfig, now func() time.Time) *localBucket {
	return &localBucket{cfg: cfg, now: now, entries: map[string]*localEntry{}}
}

func (b *localBucket) take(_ context.Context, key string) (bool, int64, time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	e, ok := b.entries[key]
	if !ok {
		b.sweep(now)
		e = &localEntry{lim: rate.NewLimiter(rate.Limit(b.cfg.PerSecond()), b.cfg.Capacity)}
		b.entries[key] = e
	}
	e.lastSeen = now
	if e.lim.AllowN(now, 1) {
		return true, int64(e.lim.TokensAt(now)), 0, nil
	}
	missing := 1 - e.lim.TokensAt(now)
	retry := time.Duration(missing / float64(e.lim.Limit()) * float64(time.Second))
	return false, 0, retry, nil
}

func (b *localBucket) sweep(now time.Time) {
	if now.Before(b.sweepAt) {
		return
	}
	for k, e := range b.entries {
		if now.Sub(e.lastSeen) > b.cfg.TTL {
			delete(b.entries, k)
		}
	}
	b.sweepAt = now.Add(b.cfg.TTL)
}

// NewTokenBucket limits requests per key with a token bucket. The bucket
// lives in Redis when rdb is set and in process memory otherwise. Redis
// errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return passthrough
	}
	cfg = cfg.Normalized()
	if rdb == nil {
		return newRateLimiter(cfg, newLocalBucket(cfg, time.Now), logger)
	}
	return newRateLimiter(cfg, redisBucket{rdb: rdb, cfg: cfg, now: time.Now}, logger)
}

func newRateLimiter(cfg config.RateLimitConfig, b bucket, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			allowed, remaining, retry, err := b.take(c.Request().Context(), key)
			if err != nil {
				logger.Warn("rate limit check failed", "key", key, "error", err)
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				rateLimitRejects.Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				logger.Debug("rate limit exceeded", "key", key, "retry_after", secs)
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := currentUserID(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
