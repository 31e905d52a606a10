// Package cache stores computed reconciliation results keyed by a hash of
// their inputs.
//
// Three backends implement [Cache]: [FileCache] for the CLI (snappy
// compressed files under a directory), [RedisCache] for servers sharing a
// cache, and [NullCache] when caching is disabled. A [Keyer] derives keys
// from problem hashes and engine options so that every backend uses the
// same key space.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// Get reports a miss as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry lifetimes.
const (
	TTLGraph     = 7 * 24 * time.Hour
	TTLHistogram = 7 * 24 * time.Hour
	TTLRegions   = 30 * 24 * time.Hour
	TTLStats     = 24 * time.Hour
)
