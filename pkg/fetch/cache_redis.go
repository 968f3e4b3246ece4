package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "wicket:fetch:"

// RedisCache shares entries between processes.
type RedisCache struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisCache(client *redis.Client, retention time.Duration) *RedisCache {
	return &RedisCache{client: client, retention: retention}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get cache entry", goerr.V("key", key))
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal cache entry", goerr.V("key", key))
	}
	return &entry, nil
}

func (c *RedisCache) Put(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal cache entry", goerr.V("key", entry.Key))
	}
	if err := c.client.Set(ctx, redisKeyPrefix+entry.Key, data, entry.TTL+c.retention).Err(); err != nil {
		return goerr.Wrap(err, "failed to put cache entry", goerr.V("key", entry.Key))
	}
	return nil
}
