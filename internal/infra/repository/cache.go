// Package repository adapts the configured cache backend to the store
// contract consumed by the usecases: get by key, set with TTL, nothing
// else. Both backends expire entries on their own; records are never
// deleted explicitly.
package repository

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/pwaforge/manifestd/internal/domain"
)

// RedisCache is the primary cache backend.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", domain.NotFoundError{Resource: "manifest"}
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get failed")
	}
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return errors.Wrap(err, "redis set failed")
	}
	return nil
}

// MemcachedCache is the alternate backend, selected by configuration.
type MemcachedCache struct {
	mc *memcache.Client
}

func NewMemcachedCache(mc *memcache.Client) *MemcachedCache {
	return &MemcachedCache{mc: mc}
}

func (c *MemcachedCache) Get(ctx context.Context, key string) (string, error) {
	item, err := c.mc.Get(key)
	if err == memcache.ErrCacheMiss {
		return "", domain.NotFoundError{Resource: "manifest"}
	}
	if err != nil {
		return "", errors.Wrap(err, "memcached get failed")
	}
	return string(item.Value), nil
}

func (c *MemcachedCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := c.mc.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: int32(ttl / time.Second),
	})
	if err != nil {
		return errors.Wrap(err, "memcached set failed")
	}
	return nil
}
