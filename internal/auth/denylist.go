package auth

import (
	"context"
	"fmt"
	"math"
	"time"

	"fintrack/internal/cache"
)

// Denylist records revoked token IDs until they would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenylist keeps revocations in process for a single instance.
// Entries leave only by expiring, so its size is bounded by the number of
// logouts within one token lifetime.
type MemoryDenylist struct {
	entries *cache.LRUCache[struct{}]
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: cache.NewLRUCache[struct{}](math.MaxInt, DefaultTTL)}
}

// Cache exposes the backing LRU so it can be registered for cleanup.
func (d *MemoryDenylist) Cache() *cache.LRUCache[struct{}] { return d.entries }

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	d.entries.SetWithTTL(tokenID, struct{}{}, ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := d.entries.Get(tokenID)
	return ok, nil
}

const denyNamespace = "revoked"

// RedisDenylist shares revocations across instances.
type RedisDenylist struct {
	r *cache.Redis
}

func NewRedisDenylist(r *cache.Redis) *RedisDenylist {
	return &RedisDenylist{r: r}
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := d.r.Set(ctx, denyNamespace, tokenID, 1, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ok, err := d.r.Exists(ctx, denyNamespace, tokenID)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return ok, nil
}
