package provider

import (
	"context"
	"log/slog"
	"time"

	"trading-backtestv1/internal/logger"
	"trading-backtestv1/internal/metrics"
	"trading-backtestv1/internal/model"
)

// BarCache is the subset of the Redis cache the Cached provider needs.
type BarCache interface {
	GetBars(ctx context.Context, key string) ([]model.Bar, bool, error)
	SetBars(ctx context.Context, key string, bars []model.Bar) error
}

// KeyFunc builds a cache key for a request.
type KeyFunc func(symbol string, start, end time.Time) string

// Cached is a read-through cache in front of another provider. Cache
// failures never fail a fetch; they fall through to the upstream.
type Cached struct {
	upstream model.PriceProvider
	cache    BarCache
	key      KeyFunc
	metrics  *metrics.Metrics
}

// NewCached wraps upstream with cache. m may be nil.
func NewCached(upstream model.PriceProvider, cache BarCache, key KeyFunc, m *metrics.Metrics) *Cached {
	return &Cached{upstream: upstream, cache: cache, key: key, metrics: m}
}

func (c *Cached) Name() string { return c.upstream.Name() + "+cache" }

func (c *Cached) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	key := c.key(symbol, start, end)
	attrs := logger.LogWithRun(ctx)

	bars, ok, err := c.cache.GetBars(ctx, key)
	if err != nil {
		slog.Debug("bar cache read failed", append(attrs, "key", key, "error", err)...)
	}
	if ok {
		c.metrics.CacheHit(true)
		return bars, nil
	}
	c.metrics.CacheHit(false)

	bars, err = c.upstream.FetchBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		if err := c.cache.SetBars(ctx, key, bars); err != nil {
			slog.Warn("bar cache write failed", append(attrs, "key", key, "error", err)...)
		}
	}
	return bars, nil
}
