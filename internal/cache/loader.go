package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader fills a Cache on miss, collapsing concurrent loads of the same key.
type Loader[T any] struct {
	cache Cache[T]
	group singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c, gens: make(map[string]uint64)}
}

// Get returns the cached value for key or calls load once for all
// concurrent callers and caches its result. Errors are not cached, and a
// result loaded across an Invalidate of the same key is returned but not
// stored.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		gen := l.generation(key)
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		l.mu.Lock()
		if l.gens[key] == gen {
			l.cache.Set(key, v)
		}
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops key and forgets any in-flight load so the next Get
// observes fresh data.
func (l *Loader[T]) Invalidate(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gens[key]++
	l.group.Forget(key)
	l.cache.Delete(key)
}

func (l *Loader[T]) generation(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[key]
}
