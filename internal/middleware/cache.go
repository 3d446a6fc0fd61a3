package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/viewing-scheduler/internal/config"
)

// listingStore holds cached listing bodies.  Every purge bumps a
// generation counter before deleting entries, and put only stores a body
// computed under the current generation.  A listing built before a
// booking therefore never lands in the cache after that booking's purge.
type listingStore interface {
	generation(ctx context.Context) (string, error)
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, body []byte, gen string, ttl time.Duration) error
	purge(ctx context.Context) error
}

// putIfCurrentScript sets KEYS[2] only while the generation at KEYS[1]
// still equals ARGV[1].
var putIfCurrentScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

type redisListings struct {
	rdb    *redis.Client
	prefix string
}

func (r redisListings) genKey() string { return r.prefix + ":gen" }

func (r redisListings) generation(ctx context.Context) (string, error) {
	gen, err := r.rdb.Get(ctx, r.genKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (r redisListings) get(ctx context.Context, key string) ([]byte, error) {
	return r.rdb.Get(ctx, key).Bytes()
}

func (r redisListings) put(ctx context.Context, key string, body []byte, gen string, ttl time.Duration) error {
	return putIfCurrentScript.Run(ctx, r.rdb, []string{r.genKey(), key}, gen, body, ttl.Milliseconds()).Err()
}

// purge deletes entries with SCAN so Redis is never blocked by KEYS.
func (r redisListings) purge(ctx context.Context) error {
	if err := r.rdb.Incr(ctx, r.genKey()).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+":entry:*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cache keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// entryKey identifies a listing by route and normalised query, so
// ?grouped=true and ?grouped=true&x= differ but parameter order does not.
func entryKey(prefix string, c echo.Context) string {
	return prefix + ":entry:" + c.Path() + "?" + c.QueryParams().Encode()
}

// bodyRecorder keeps a copy of the response body while forwarding it.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// NewRedisCache caches successful JSON listing responses so repeated polls
// of the slot grid skip the store.  Entries live for cfg.TTL or until a
// CachePurger clears them.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return listingCache(cfg, redisListings{rdb: rdb, prefix: cfg.Prefix})
}

func listingCache(cfg config.CacheConfig, store listingStore) echo.MiddlewareFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := entryKey(cfg.Prefix, c)

			if body, err := store.get(ctx, key); err == nil {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			// The generation must be read before the handler reads the store.
			gen, err := store.generation(ctx)
			if err != nil {
				return next(c)
			}
			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}

			if rec.status != http.StatusOK || rec.buf.Len() == 0 {
				return nil
			}
			if cfg.MaxBodyBytes > 0 && rec.buf.Len() > cfg.MaxBodyBytes {
				return nil
			}
			_ = store.put(context.WithoutCancel(ctx), key, rec.buf.Bytes(), gen, ttl)
			return nil
		}
	}
}

// CachePurger drops every cached listing.  Handlers call it after a
// booking or cancellation so listings never outlive the change.
type CachePurger struct {
	store listingStore
}

// NewCachePurger returns nil when caching is disabled; a nil purger is a
// no-op.
func NewCachePurger(cfg config.CacheConfig, rdb *redis.Client) *CachePurger {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &CachePurger{store: redisListings{rdb: rdb, prefix: cfg.Prefix}}
}

func (p *CachePurger) Purge(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.store.purge(ctx)
}
