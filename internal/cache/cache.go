package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when the key (or hash field) is not present.
// The cache is best-effort: callers always fall back to the store on a miss.
var ErrCacheMiss = errors.New("cache: key not found")

// KeyValueCache is the capability surface the services depend on. Keys are
// namespaced so independent concerns cannot collide.
type KeyValueCache interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error

	// Hash-field variant, used for per-user markers under one group key.
	HGet(ctx context.Context, namespace, key, field string) (string, error)
	HSet(ctx context.Context, namespace, key, field, value string, ttl time.Duration) error
}
