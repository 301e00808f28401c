package cache

import (
	"context"
	"errors"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func NewClient(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

type RedisCache struct {
	client *redis.Client
}

func NewKeyValueCache(client *redis.Client) KeyValueCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, namespace, key string) (string, error) {
	val, err := c.client.Get(ctx, namespace+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, namespace+":"+key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, namespace, key string) error {
	return c.client.Del(ctx, namespace+":"+key).Err()
}

func (c *RedisCache) HGet(ctx context.Context, namespace, key, field string) (string, error) {
	val, err := c.client.HGet(ctx, namespace+":"+key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) HSet(ctx context.Context, namespace, key, field, value string, ttl time.Duration) error {
	full := namespace + ":" + key
	if err := c.client.HSet(ctx, full, field, value).Err(); err != nil {
		return err
	}
	// TTL rides on the whole hash; each write pushes expiry out again
	return c.client.Expire(ctx, full, ttl).Err()
}
