package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/config"
)

// takeTokenScript takes one token from the bucket at KEYS[1] after adding
// one token per elapsed refill interval.  It returns {allowed, tokens left,
// ms until the next token}.
var takeTokenScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local every_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'refilled_ms')
local tokens = tonumber(state[1]) or capacity
local refilled = tonumber(state[2]) or now_ms

local gained = math.floor(math.max(0, now_ms - refilled) / every_ms)
if gained > 0 then
  tokens = math.min(capacity, tokens + gained)
  refilled = refilled + gained * every_ms
end

local allowed, retry_ms = 0, 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.max(0, every_ms - (now_ms - refilled))
end

redis.call('HSET', key, 'tokens', tokens, 'refilled_ms', refilled)
redis.call('EXPIRE', key, ttl_seconds)
return {allowed, tokens, retry_ms}
`)

// rateClass selects the bucket a request draws from.
type rateClass string

const (
	classRead  rateClass = "read"
	classWrite rateClass = "write"
)

func classify(method string) rateClass {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return classRead
	}
	return classWrite
}

// rateKey is prefix:class:identity.  Operators that passed JWTAuth are
// keyed by token subject, everyone else by client IP.
func rateKey(prefix string, class rateClass, c echo.Context) string {
	if op, ok := c.Get(ContextOperator).(string); ok && op != "" {
		return prefix + ":" + string(class) + ":op:" + op
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return prefix + ":" + string(class) + ":ip:" + ip
}

type takeResult struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

type bucketStore interface {
	take(ctx context.Context, key string, b config.Bucket, ttl time.Duration, now time.Time) (takeResult, error)
}

type redisBuckets struct{ rdb *redis.Client }

func (r redisBuckets) take(ctx context.Context, key string, b config.Bucket, ttl time.Duration, now time.Time) (takeResult, error) {
	vals, err := takeTokenScript.Run(ctx, r.rdb, []string{key},
		now.UnixMilli(), b.Capacity, b.RefillEvery.Milliseconds(), int64(ttl/time.Second),
	).Int64Slice()
	if err != nil {
		return takeResult{}, err
	}
	if len(vals) != 3 {
		return takeResult{}, fmt.Errorf("unexpected token bucket reply %v", vals)
	}
	return takeResult{
		allowed:    vals[0] == 1,
		remaining:  vals[1],
		retryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewTokenBucket limits requests with token buckets kept in Redis so every
// replica shares the same budget.  Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return tokenBucket(cfg, redisBuckets{rdb: rdb}, logger)
}

func tokenBucket(cfg config.RateLimitConfig, buckets bucketStore, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			class := classify(c.Request().Method)
			bucket := cfg.Read
			if class == classWrite {
				bucket = cfg.Write
			}
			key := rateKey(cfg.Prefix, class, c)

			res, err := buckets.take(c.Request().Context(), key, bucket, cfg.TTL, time.Now())
			if err != nil {
				logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res.allowed {
				return next(c)
			}

			secs := int(math.Ceil(res.retryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				logger.Debug("rate limited", zap.String("key", key), zap.Duration("retry_after", res.retryAfter))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}
