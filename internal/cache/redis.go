package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	logpkg "github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix namespaces every key this package writes
	DefaultKeyPrefix = "diary"
	// DefaultTTL bounds how long a query result is served from cache
	DefaultTTL = time.Minute

	generationKey = "entries:generation"
)

// RedisClient is the subset of *redis.Client used here
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// QueryCache stores query results keyed by resolved date range. Every key
// embeds the entry store generation, so bumping the generation after a write
// orphans all earlier results. Redis errors are logged and treated as misses.
type QueryCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient parses a redis:// URL and connects
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewQueryCache creates a cache over client
func NewQueryCache(client RedisClient, ttl time.Duration, logger *zap.Logger) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryCache{client: client, prefix: DefaultKeyPrefix, ttl: ttl, logger: logger}
}

func (c *QueryCache) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

func (c *QueryCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.makeKey(generationKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *QueryCache) resultKey(gen int64, r models.DateRange) string {
	return c.makeKey(fmt.Sprintf("query:%d:%d:%d", gen, r.Start.UnixNano(), r.End.UnixNano()))
}

// Get returns the cached result for r, if any, and the generation it looked
// under. Pass that generation to Set so a result computed before a write is
// never stored under the generation the write produced. gen is negative when
// the generation could not be read.
func (c *QueryCache) Get(ctx context.Context, r models.DateRange) (*models.QueryResult, int64, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logError("query_cache_generation_failed", err)
		return nil, -1, false
	}
	data, err := c.client.Get(ctx, c.resultKey(gen, r)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logError("query_cache_get_failed", err)
		}
		return nil, gen, false
	}

	var result models.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logError("query_cache_decode_failed", err)
		return nil, gen, false
	}
	return &result, gen, true
}

// Set stores result for r under gen, the generation returned by the Get that
// preceded the store read. A negative gen is ignored.
func (c *QueryCache) Set(ctx context.Context, gen int64, r models.DateRange, result *models.QueryResult) {
	if gen < 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logError("query_cache_encode_failed", err)
		return
	}
	if err := c.client.Set(ctx, c.resultKey(gen, r), data, c.ttl).Err(); err != nil {
		c.logError("query_cache_set_failed", err)
	}
}

// Invalidate bumps the store generation. Called after an insight is written.
func (c *QueryCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, c.makeKey(generationKey)).Err(); err != nil {
		c.logError("query_cache_invalidate_failed", err)
	}
}

// HealthCheck pings Redis
func (c *QueryCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *QueryCache) logError(event string, err error) {
	c.logger.Warn(event, zap.String("error", logpkg.SanitizeError(err)))
}
