package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// NullCache is the backend for runs whose results must not be reused:
// --no-cache, a missing cache directory, or a server started without a
// store. Every read misses. Writes are dropped but tallied, so a caller can
// report how much computed output went unstored and why.
type NullCache struct {
	reason  string
	entries atomic.Int64
	bytes   atomic.Int64
}

// NewNullCache returns a disabled cache with no particular reason.
func NewNullCache() Cache {
	return NewDisabledCache("caching disabled")
}

// NewDisabledCache returns a NullCache that reports reason.
func NewDisabledCache(reason string) *NullCache {
	return &NullCache{reason: reason}
}

// Reason says why caching is off.
func (c *NullCache) Reason() string { return c.reason }

// Dropped returns the number of entries and payload bytes discarded by Set.
func (c *NullCache) Dropped() (entries, bytes int64) {
	return c.entries.Load(), c.bytes.Load()
}

// Get always misses. A canceled context is still reported.
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, ctx.Err()
}

// Set discards data and records its size.
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.entries.Add(1)
	c.bytes.Add(int64(len(data)))
	return nil
}

// Delete has nothing to remove.
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
