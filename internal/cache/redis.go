package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a thin namespaced wrapper shared by the distributed lock, the
// token denylist and the rate limiter.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

// WrapRedis adapts an existing client.
func WrapRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func Key(namespace, key string) string {
	return namespace + ":" + key
}

func (r *Redis) Client() redis.UniversalClient { return r.client }

func (r *Redis) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	return r.client.Set(ctx, Key(namespace, key), value, ttl).Err()
}

// Exists reports whether namespace:key is present.
func (r *Redis) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := r.client.Exists(ctx, Key(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get returns the stored string; a missing key reports ok=false.
func (r *Redis) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, Key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Delete(ctx context.Context, namespace, key string) error {
	return r.client.Del(ctx, Key(namespace, key)).Err()
}

// IncrWithExpire increments a counter, starting its TTL window on first use.
func (r *Redis) IncrWithExpire(ctx context.Context, namespace, key string, window time.Duration) (int64, error) {
	k := Key(namespace, key)
	cnt, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if cnt == 1 {
		_ = r.client.Expire(ctx, k, window).Err()
	}
	return cnt, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
