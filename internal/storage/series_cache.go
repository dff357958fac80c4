package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/etf-dashboard/internal/adapter"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/types"
)

const (
	// seriesKeyPrefix namespaces cached price series
	seriesKeyPrefix = "series"

	// sharedFetchTimeout bounds an upstream fetch that outlives the caller that started it
	sharedFetchTimeout = 45 * time.Second
)

// CachedProvider serves price series from Redis and falls back to the wrapped provider.
// Cache reads and writes are best effort; only the upstream fetch can fail a call.
// Concurrent misses for the same key share one upstream fetch, which is not
// tied to the cancellation of any single caller.
type CachedProvider struct {
	next         adapter.MarketDataProvider
	redis        *RedisCache
	ttl          time.Duration
	fetchTimeout time.Duration

	inflight singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
}

// CacheStats reports series cache effectiveness
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"` // Percentage
}

var _ adapter.MarketDataProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps next with a Redis series cache
func NewCachedProvider(next adapter.MarketDataProvider, redis *RedisCache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:         next,
		redis:        redis,
		ttl:          ttl,
		fetchTimeout: sharedFetchTimeout,
	}
}

// SeriesKey generates the cache key for a series
// Format: series:<instrument>:<range>:<interval>
func SeriesKey(instrument string, r types.Range, iv types.Interval) string {
	return strings.Join([]string{seriesKeyPrefix, strings.ToUpper(instrument), string(r), string(iv)}, ":")
}

// FetchSeries implements adapter.MarketDataProvider
func (c *CachedProvider) FetchSeries(ctx context.Context, instrument string, r types.Range, iv types.Interval) (*types.Series, error) {
	key := SeriesKey(instrument, r, iv)
	logger := logging.FromContext(ctx).WithField("cacheKey", key)

	if cached, ok := c.get(ctx, key, logger); ok {
		c.hits.Add(1)
		return cached, nil
	}
	c.misses.Add(1)

	ch := c.inflight.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		series, err := c.next.FetchSeries(fetchCtx, instrument, r, iv)
		if err != nil {
			return nil, err
		}
		c.set(fetchCtx, key, series, logger)
		return series, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Callers sharing a fetch must not share the observations slice
	shared := res.Val.(*types.Series)
	out := *shared
	out.Observations = append([]types.Observation(nil), shared.Observations...)
	return &out, nil
}

// Stats returns hit and miss counts since start
func (c *CachedProvider) Stats() CacheStats {
	stats := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

func (c *CachedProvider) get(ctx context.Context, key string, logger *logging.Logger) (*types.Series, bool) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithError(err).Warn("Series cache read failed")
		}
		return nil, false
	}

	var series types.Series
	if err := json.Unmarshal(data, &series); err != nil {
		logger.WithError(err).Warn("Dropping corrupt series cache entry")
		if delErr := c.redis.Del(ctx, key); delErr != nil {
			logger.WithError(delErr).Warn("Failed to delete corrupt series cache entry")
		}
		return nil, false
	}

	logger.Debug("Series cache hit")
	return &series, true
}

func (c *CachedProvider) set(ctx context.Context, key string, series *types.Series, logger *logging.Logger) {
	data, err := json.Marshal(series)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode series for cache")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl); err != nil {
		logger.WithError(err).Warn("Series cache write failed")
	}
}
