package cache

import (
	"context"
	"time"
)

// Entry is a cached value with its expiry and invalidation tags.
type Entry struct {
	Value     []byte
	Tags      []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Remaining reports the TTL left on the entry, zero when expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if e.Expired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// Store is one cache level. Get returns (nil, nil) on a miss; expired entries
// are never returned. Delete of an absent key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	Delete(ctx context.Context, key string) error
	InvalidateByTag(ctx context.Context, tag string) (int, error)
}
