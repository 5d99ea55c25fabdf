package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/imagiseum/gallery/internal/config"
)

// tokenBucket refills refill_tokens every interval_ms up to capacity and
// takes one token per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
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

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals * refill_tokens)
	last_refill = last_refill + intervals * interval_ms
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// RateLimiter throttles per client IP, caller and route. It uses a Redis
// token bucket when a client is configured and an in-process x/time/rate
// limiter per key otherwise.
type RateLimiter struct {
	cfg   config.RateLimitConfig
	rdb   *redis.Client
	local *keyedLimiter
	log   *slog.Logger
	now   func() time.Time
}

// NewRateLimiter builds a limiter; rdb may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{
		cfg:   cfg,
		rdb:   rdb,
		local: newKeyedLimiter(rate.Limit(cfg.PerSecond()), cfg.Capacity, cfg.TTL),
		log:   log,
		now:   time.Now,
	}
}

func (rl *RateLimiter) key(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("%s:ip:%s:user:%s:route:%s %s", rl.cfg.Prefix, ip, userKey(c), c.Request().Method, c.Path())
}

// Middleware rejects requests over the limit with 429 and Retry-After.
// Redis failures fail open.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rl.cfg.Enabled {
			return next
		}
		return func(c echo.Context) error {
			key := rl.key(c)
			allowed, remaining, retry, err := rl.take(c, key)
			if err != nil {
				rl.log.Warn("rate limit check failed", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(secs, 1)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) take(c echo.Context, key string) (bool, int64, time.Duration, error) {
	now := rl.now()
	if rl.rdb == nil {
		return rl.local.take(key, now)
	}

	vals, err := tokenBucket.Run(c.Request().Context(), rl.rdb, []string{key},
		now.UnixMilli(),
		rl.cfg.Capacity,
		rl.cfg.RefillTokens,
		rl.cfg.RefillInterval.Milliseconds(),
		int64(rl.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result %v", vals)
	}
	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

// keyedLimiter hands out one rate.Limiter per key and forgets keys that have
// been idle for longer than ttl.
type keyedLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	entries  map[string]*limiterEntry
	lastScan time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int, ttl time.Duration) *keyedLimiter {
	return &keyedLimiter{limit: limit, burst: burst, ttl: ttl, entries: map[string]*limiterEntry{}}
}

func (k *keyedLimiter) take(key string, now time.Time) (bool, int64, time.Duration, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastScan) > k.ttl {
		for name, e := range k.entries {
			if now.Sub(e.lastSeen) > k.ttl {
				delete(k.entries, name)
			}
		}
		k.lastScan = now
	}

	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now

	r := e.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay, nil
	}
	return true, int64(e.lim.TokensAt(now)), 0, nil
}
