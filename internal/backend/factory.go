package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/lock"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
	"fintrack/internal/storage/sqlite"
)

const (
	snapshotCacheSize = 10_000
	cleanupInterval   = time.Minute
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store, then the optional Redis and AMQP
// connections. A broker that cannot be reached only disables events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		Store:  store,
		Caches: cache.NewManager(),
	}
	closers := []func() error{store.Close}

	if config.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, config.RedisAddr, config.RedisPassword)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		b.Redis = r
		b.Locker = lock.NewRedis(r.Client(), config.LockTTL)
		b.Denylist = auth.NewRedisDenylist(r)
		closers = append(closers, r.Close)
		f.logger.Info("Initialized Redis", "addr", config.RedisAddr)
	} else {
		b.Locker = lock.NewLocal()
		deny := auth.NewMemoryDenylist()
		b.Denylist = deny
		b.Caches.Register(deny.Cache())
	}

	if config.SnapshotCacheTTL > 0 {
		snapshots := cache.NewLRUCache[core.Account](snapshotCacheSize, config.SnapshotCacheTTL)
		b.Snapshots = snapshots
		b.Caches.Register(snapshots)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			b.Events = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	b.Caches.StartCleanup(ctx, cleanupInterval)
	b.Cleanup = func() error {
		b.Caches.Stop()
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"redis_enabled", b.Redis != nil,
		"amqp_enabled", b.Events != nil,
		"snapshot_cache", b.Snapshots != nil)
	return b, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		s, err := sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return s, nil
	case PostgresBackend:
		s, err := postgres.Open(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return s, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// Migrate applies schema migrations for the configured store without
// opening the rest of the backend.
func Migrate(config Config) error {
	switch config.Type {
	case SQLiteBackend:
		return sqlite.RunMigrations(config.SQLiteDBPath)
	case PostgresBackend:
		return postgres.RunMigrations(config.PostgresDSN)
	case MemoryBackend:
		return nil
	default:
		return fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
