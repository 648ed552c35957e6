package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const namespace = "lock"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a lease-based lock shared across instances. The TTL bounds how
// long a crashed holder can block others.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
}

var _ Locker = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{client: client, ttl: ttl, poll: 10 * time.Millisecond}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	k := namespace + ":" + key
	token := uuid.NewString()
	wait := r.poll

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if wait < 200*time.Millisecond {
			wait *= 2
		}
	}

	return func() {
		// Release must run even when the request context is already done.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{k}, token).Err(); err != nil {
			slog.WarnContext(ctx, "Failed to release lock", "key", key, "error", err)
		}
	}, nil
}
