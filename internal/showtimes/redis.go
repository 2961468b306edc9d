package showtimes

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "seances:showtimes:"

// RedisCache shares aggregated results between instances. Entries expire
// server-side after the TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisCache wraps an already connected client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get loads and decodes the entry for date.
func (c *RedisCache) Get(ctx context.Context, date string) (Result, bool) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+date).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("showtimes: redis get %s failed: %v", date, err)
		}
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.Printf("showtimes: redis payload for %s unreadable: %v", date, err)
		return nil, false
	}
	return result, true
}

// Set encodes and stores result for date.
func (c *RedisCache) Set(ctx context.Context, date string, result Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Printf("showtimes: encode %s for redis: %v", date, err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+date, payload, c.ttl).Err(); err != nil {
		c.logger.Printf("showtimes: redis set %s failed: %v", date, err)
	}
}
