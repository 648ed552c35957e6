package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(perMinute int) (*Limiter, *time.Time) {
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(3)
	defer rl.Stop()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if ok, _ := rl.Allow(ctx, "1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "1.2.3.4"); ok {
		t.Fatal("fourth request in the window should be rejected")
	}
	if ok, _ := rl.Allow(ctx, "5.6.7.8"); !ok {
		t.Fatal("other clients have their own budget")
	}

	*now = now.Add(window)
	if ok, _ := rl.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatal("a new window resets the budget")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(10)
	defer rl.Stop()

	_, _ = rl.Allow(context.Background(), "a")
	_, _ = rl.Allow(context.Background(), "b")
	if got := rl.ActiveClients(); got != 2 {
		t.Fatalf("ActiveClients() = %d, want 2", got)
	}

	*now = now.Add(11 * time.Minute)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Errorf("cleanupStaleEntries() = %d, want 2", removed)
	}
	if got := rl.ActiveClients(); got != 0 {
		t.Errorf("ActiveClients() = %d, want 0", got)
	}
	rl.Stop()
}

type failingAllower struct{}

func (failingAllower) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	ip := func(*http.Request) string { return "9.9.9.9" }

	t.Run("rejects over the limit", func(t *testing.T) {
		rl, _ := newTestLimiter(1)
		defer rl.Stop()
		h := Middleware(rl, ip, nil)(ok)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("first request status = %d", rr.Code)
		}

		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status = %d, want 429", rr.Code)
		}
		if rr.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
		}
	})

	t.Run("custom limit response", func(t *testing.T) {
		rl, _ := newTestLimiter(1)
		defer rl.Stop()
		called := false
		h := Middleware(rl, ip, func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusTooManyRequests)
		})(ok)
		for i := 0; i < 2; i++ {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}
		if !called {
			t.Error("onLimit was not called")
		}
	})

	t.Run("fails open", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Middleware(failingAllower{}, ip, nil)(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204 when the limiter errors", rr.Code)
		}
	})
}
