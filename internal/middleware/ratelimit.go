package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/smart-diary/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	defaultRatelimitRate = "5-S"
	ratelimitKeyPrefix   = "diary:ratelimit"
)

// NewLimiterStore returns a Redis-backed limiter store shared across instances,
// or a per-process in-memory store when client is nil.
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{
		Prefix:          ratelimitKeyPrefix,
		MaxRetry:        limiter.DefaultMaxRetry,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}
	if client == nil {
		return memorystore.NewStoreWithOptions(opts), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

func newLimiterMiddleware(store limiter.Store, rate limiter.Rate) *stdlibmw.Middleware {
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	return stdlibmw.NewMiddleware(limiter.New(store, rate), stdlibmw.WithKeyGetter(keyGetter))
}
