// Package cache provides a read-through cache for terminal analysis
// results, so dashboard polling does not hit the backing store on every
// request. Tier 1 is an in-process LRU; tier 2 is an optional Redis
// instance guarded by a circuit breaker, so a Redis outage degrades to
// LRU-only instead of penalizing every read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/AshishSingh1503/HelixMind/internal/domain"
)

const keyPrefix = "helixmind:analysis:"

// Options configures the results cache.
type Options struct {
	LocalSize int           // LRU capacity; defaults to 512
	RedisURL  string        // empty disables the Redis tier
	TTL       time.Duration // Redis entry lifetime; defaults to 24h
}

// ResultsCache caches terminal AnalysisResult records by id.
type ResultsCache struct {
	local   *lru.Cache[string, *domain.AnalysisResult]
	redis   *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	log     *logrus.Logger
}

// New creates a results cache. The Redis tier is optional: when no URL
// is configured the cache runs LRU-only.
func New(opts Options, logger *logrus.Logger) (*ResultsCache, error) {
	if opts.LocalSize <= 0 {
		opts.LocalSize = 512
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}

	local, err := lru.New[string, *domain.AnalysisResult](opts.LocalSize)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}

	c := &ResultsCache{
		local: local,
		ttl:   opts.TTL,
		log:   logger,
	}

	if opts.RedisURL != "" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		c.redis = redis.NewClient(redisOpts)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "results-cache-redis",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Cache circuit breaker state changed")
			},
		})
	}

	return c, nil
}

// Get returns a cached terminal result, checking the LRU first and the
// Redis tier second. Misses and Redis faults both report a plain miss.
// Callers receive a copy; the cached record is never shared.
func (c *ResultsCache) Get(ctx context.Context, id string) (*domain.AnalysisResult, bool) {
	if rec, ok := c.local.Get(id); ok {
		return cloneResult(rec), true
	}

	if c.redis == nil {
		return nil, false
	}

	value, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, keyPrefix+id).Bytes()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, gobreaker.ErrOpenState) {
			c.log.WithError(err).Debug("Redis cache read failed")
		}
		return nil, false
	}

	var rec domain.AnalysisResult
	if err := json.Unmarshal(value.([]byte), &rec); err != nil {
		c.log.WithError(err).Warn("Discarding undecodable cache entry")
		return nil, false
	}

	c.local.Add(id, &rec)
	return cloneResult(&rec), true
}

// Put stores a result. Only terminal records are cached; pending and
// processing states change underneath the cache and are never stored.
func (c *ResultsCache) Put(ctx context.Context, rec *domain.AnalysisResult) {
	if rec == nil || !rec.Status.Terminal() {
		return
	}

	c.local.Add(rec.ID, cloneResult(rec))

	if c.redis == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		c.log.WithError(err).Warn("Failed to encode analysis for cache")
		return
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, keyPrefix+rec.ID, data, c.ttl).Err()
	})
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
		c.log.WithError(err).Debug("Redis cache write failed")
	}
}

// Invalidate drops a record from both tiers.
func (c *ResultsCache) Invalidate(ctx context.Context, id string) {
	c.local.Remove(id)

	if c.redis == nil {
		return
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Del(ctx, keyPrefix+id).Err()
	})
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
		c.log.WithError(err).Debug("Redis cache invalidation failed")
	}
}

// Health pings the Redis tier when one is configured.
func (c *ResultsCache) Health(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *ResultsCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// cloneResult deep-copies a record so concurrent callers never share
// mutable state with the cache.
func cloneResult(rec *domain.AnalysisResult) *domain.AnalysisResult {
	cp := *rec
	cp.Variants = append([]domain.AnnotatedVariant(nil), rec.Variants...)
	if rec.CompletedAt != nil {
		completedAt := *rec.CompletedAt
		cp.CompletedAt = &completedAt
	}
	return &cp
}
