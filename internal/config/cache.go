package config

import "time"

// CacheConfig defines settings for the listing cache.  When Enabled is
// false or no Redis client is configured, caching is disabled.  Only the
// JSON slot and viewing listings are cached; every booking or cancellation
// purges all entries under Prefix.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int // larger listings are served but not cached; <= 0 means no limit
}

// LoadCacheConfig reads CACHE_* variables.  Defaults are used when
// variables are unset or malformed.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "viewings:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}
