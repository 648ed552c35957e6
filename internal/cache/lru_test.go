package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("short", "x")
	c.SetWithTTL("long", "y", time.Hour)

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("short"); ok {
		t.Fatalf("expected short to expire")
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatalf("expected long to survive")
	}

	now = now.Add(2 * time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestLoaderCollapsesConcurrentLoads(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("got %v %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() > 5 || calls.Load() < 1 {
		t.Fatalf("unexpected load count %d", calls.Load())
	}
	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) {
		t.Fatal("expected cached value")
		return 0, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("expected cached 42, got %v %v", v, err)
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	boom := errors.New("boom")
	if _, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected 7, got %v %v", v, err)
	}

	l.Invalidate("k")
	v, _ = l.Get(context.Background(), "k", func(context.Context) (int, error) { return 8, nil })
	if v != 8 {
		t.Fatalf("expected reload after invalidate, got %d", v)
	}
}

func TestLoaderSkipsStoreWhenInvalidatedMidLoad(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	loaded := make(chan struct{})
	release := make(chan struct{})

	done := make(chan int)
	go func() {
		v, _ := l.Get(context.Background(), "k", func(context.Context) (int, error) {
			close(loaded)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-loaded
	l.Invalidate("k")
	close(release)
	if v := <-done; v != 1 {
		t.Fatalf("in-flight caller should still see its load, got %d", v)
	}

	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 2, nil })
	if err != nil || v != 2 {
		t.Fatalf("expected fresh load after invalidate, got %v %v", v, err)
	}
}
