package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ticketmatch/pkg/metrics"
)

// SetOptions controls the write path of a layered set. SkipShared keeps a
// value out of L2 for entries too hot or short-lived to be worth
// distributing. SharedTTL, when set, gives the L2 copy a longer life than
// the L1 one; zero means "same as TTL".
type SetOptions struct {
	TTL        time.Duration
	Tags       []string
	SkipShared bool
	SharedTTL  time.Duration
}

// MultiLevel fronts an in-process L1 and an optional shared L2. L2 failures
// are never fatal: a read error is a miss, a write or invalidation error is
// logged. L1 is authoritative for tag invalidation; it is scrubbed
// synchronously before L2 is attempted.
type MultiLevel struct {
	l1         Store
	l2         Store // may be nil
	promoteTTL time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewMultiLevel(l1, l2 Store, promoteTTL time.Duration, logger *zap.Logger, m *metrics.Metrics) *MultiLevel {
	if promoteTTL <= 0 {
		promoteTTL = 5 * time.Minute
	}
	return &MultiLevel{
		l1:         l1,
		l2:         l2,
		promoteTTL: promoteTTL,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

func (c *MultiLevel) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		c.metrics.CacheHit("l1")
		return entry, nil
	}
	c.metrics.CacheMiss("l1")

	if c.l2 == nil {
		return nil, nil
	}

	entry, err = c.l2.Get(ctx, key)
	if err != nil {
		// A broken L2 degrades to a miss; the caller falls through to the
		// source of truth.
		c.logger.Warn("Shared cache read failed", zap.String("key", key), zap.Error(err))
		c.metrics.CacheMiss("l2")
		return nil, nil
	}
	if entry == nil {
		c.metrics.CacheMiss("l2")
		return nil, nil
	}
	c.metrics.CacheHit("l2")

	// Promote with a TTL never longer than what the L2 entry has left.
	promoteTTL := c.promoteTTL
	if remaining := entry.Remaining(c.now()); remaining < promoteTTL {
		promoteTTL = remaining
	}
	if promoteTTL > 0 {
		if err := c.l1.Set(ctx, key, entry.Value, promoteTTL, entry.Tags); err != nil {
			c.logger.Warn("Cache promotion failed", zap.String("key", key), zap.Error(err))
		}
	}

	return entry, nil
}

func (c *MultiLevel) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	return c.SetWithOptions(ctx, key, value, SetOptions{TTL: ttl, Tags: tags})
}

func (c *MultiLevel) SetWithOptions(ctx context.Context, key string, value []byte, opts SetOptions) error {
	if err := c.l1.Set(ctx, key, value, opts.TTL, opts.Tags); err != nil {
		return err
	}

	if c.l2 == nil || opts.SkipShared {
		return nil
	}
	sharedTTL := opts.SharedTTL
	if sharedTTL <= 0 {
		sharedTTL = opts.TTL
	}
	if err := c.l2.Set(ctx, key, value, sharedTTL, opts.Tags); err != nil {
		c.logger.Warn("Shared cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *MultiLevel) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.Delete(ctx, key); err != nil {
			c.logger.Warn("Shared cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// InvalidateByTag removes every L1 entry carrying the tag synchronously and
// issues a best-effort removal against L2. The combined removal count is
// returned; L2 unavailability is logged, not raised.
func (c *MultiLevel) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	count, err := c.l1.InvalidateByTag(ctx, tag)
	if err != nil {
		return count, err
	}
	if c.l2 != nil {
		n, err := c.l2.InvalidateByTag(ctx, tag)
		if err != nil {
			c.logger.Warn("Shared cache tag invalidation failed", zap.String("tag", tag), zap.Error(err))
		} else {
			count += n
		}
	}
	return count, nil
}
