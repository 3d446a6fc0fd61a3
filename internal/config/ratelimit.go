package config

import "time"

// Bucket is one token bucket: up to Capacity requests in a burst, refilled
// by one token every RefillEvery.
type Bucket struct {
    Capacity    int
    RefillEvery time.Duration
}

// RateLimitConfig drives the Redis token buckets in front of the API.
// Listings draw from Read, bookings and cancellations from the smaller
// Write bucket so a single client cannot sweep the slot grid.
type RateLimitConfig struct {
    Enabled bool
    Read    Bucket
    Write   Bucket
    TTL     time.Duration
    Prefix  string
    Debug   bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to
// usable values.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Read: Bucket{
            Capacity:    envInt("RATE_LIMIT_READ_CAPACITY", 60),
            RefillEvery: envDur("RATE_LIMIT_READ_REFILL_EVERY", time.Second),
        },
        Write: Bucket{
            Capacity:    envInt("RATE_LIMIT_WRITE_CAPACITY", 10),
            RefillEvery: envDur("RATE_LIMIT_WRITE_REFILL_EVERY", 6*time.Second),
        },
        TTL:    envDur("RATE_LIMIT_TTL", 10*time.Minute),
        Prefix: envStr("RATE_LIMIT_PREFIX", "viewings:rl"),
        Debug:  envBool("RATE_LIMIT_DEBUG", false),
    }
    cfg.Read = cfg.Read.clamped()
    cfg.Write = cfg.Write.clamped()

    // An idle bucket must survive a few refills or clients get a fresh
    // burst too early.
    slowest := cfg.Read.RefillEvery
    if cfg.Write.RefillEvery > slowest { slowest = cfg.Write.RefillEvery }
    if minTTL := 5 * slowest; cfg.TTL < minTTL { cfg.TTL = minTTL }
    return cfg
}

func (b Bucket) clamped() Bucket {
    if b.Capacity < 1 { b.Capacity = 1 }
    if b.RefillEvery < time.Millisecond { b.RefillEvery = time.Second }
    return b
}
