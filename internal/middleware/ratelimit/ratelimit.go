// Package ratelimit throttles requests per client with a fixed one-minute
// window, either in process or shared through Redis.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/metrics"
)

const window = time.Minute

// Allower decides whether a client may make another request.
type Allower interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// Limiter provides in-process rate limiting
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	// Configuration
	requestsPerMinute int
	cleanupInterval   time.Duration
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// Allow checks if a request from the given client should be allowed
func (rl *Limiter) Allow(_ context.Context, clientKey string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[clientKey]
	if !exists || now.Sub(client.windowStart) >= window {
		rl.clients[clientKey] = &clientInfo{windowStart: now, requests: 1}
		return true, nil
	}

	client.requests++
	return client.requests <= rl.requestsPerMinute, nil
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes clients whose window ended long ago
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * time.Minute)
	removed := 0
	for key, client := range rl.clients {
		if client.windowStart.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// RedisLimiter counts requests in Redis so every instance shares the budget.
type RedisLimiter struct {
	redis             *cache.Redis
	requestsPerMinute int
}

func NewRedisLimiter(r *cache.Redis, requestsPerMinute int) *RedisLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	return &RedisLimiter{redis: r, requestsPerMinute: requestsPerMinute}
}

func (rl *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	count, err := rl.redis.IncrWithExpire(ctx, "ratelimit", clientKey, window)
	if err != nil {
		return false, err
	}
	return count <= int64(rl.requestsPerMinute), nil
}

// Middleware creates HTTP middleware for rate limiting. A failing backend
// lets the request through.
func Middleware(a Allower, extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := extractIP(r)

			ok, err := a.Allow(r.Context(), clientIP)
			if err != nil {
				slog.WarnContext(r.Context(), "Rate limiter unavailable, allowing request",
					"client_ip", clientIP,
					"error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RateLimitRejections.Inc()
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
