package dynamicoptions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the distributed Cache implementation for multi-instance
// deployments, where the in-process memoryCache would let each instance
// serve stale or divergent option lists. Results are stored as JSON under
// a key prefix so the cache can share a Redis instance with other subsystems.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache parses redisURL, returning an error if it is malformed, and
// returns a Cache backed by the given Redis instance. It does not dial:
// go-redis connects on the first command.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts), prefix: "execbridge:dynopts:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *Result, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

// Ping is used by the HTTP server's readiness probe.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
