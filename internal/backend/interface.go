package backend

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/lock"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend bundles the infrastructure the services are built on. Redis and
// Events are nil when not configured.
type Backend struct {
	Store     storage.Store
	Locker    lock.Locker
	Denylist  auth.Denylist
	Snapshots cache.Cache[core.Account]
	Caches    *cache.Manager
	Redis     *cache.Redis
	Events    *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	// Optional shared infrastructure
	RedisAddr     string
	RedisPassword string
	AMQPURL       string
	AMQPExchange  string
	AMQPQueue     string

	LockTTL          time.Duration
	SnapshotCacheTTL time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
