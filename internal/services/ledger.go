package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/lock"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"
)

// DefaultConflictRetries is how many times a mutation is re-run after a
// concurrent update before ErrConflict is returned.
const DefaultConflictRetries = 3

// EventPublisher announces committed ledger mutations.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error
}

// LedgerService applies balance mutations to accounts. Every mutation is a
// single read-modify-write unit: lock, load, apply to a copy, save with a
// version check.
type LedgerService struct {
	store     storage.AccountStore
	locker    lock.Locker
	events    EventPublisher
	snapshots *cache.Loader[core.Account]
	retries   int
	now       func() time.Time
}

type LedgerOption func(*LedgerService)

// WithLocker serialises mutations per account. Without it the service
// relies on the store's version check alone.
func WithLocker(l lock.Locker) LedgerOption {
	return func(s *LedgerService) { s.locker = l }
}

func WithEventPublisher(p EventPublisher) LedgerOption {
	return func(s *LedgerService) { s.events = p }
}

// WithSnapshotCache caches GetAccountSnapshot results; mutations through
// this service invalidate the entry.
func WithSnapshotCache(c cache.Cache[core.Account]) LedgerOption {
	return func(s *LedgerService) { s.snapshots = cache.NewLoader(c) }
}

func WithConflictRetries(n int) LedgerOption {
	return func(s *LedgerService) {
		if n >= 0 {
			s.retries = n
		}
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store storage.AccountStore, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:   store,
		retries: DefaultConflictRetries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMoney credits amount and returns the new balance.
func (s *LedgerService) AddMoney(ctx context.Context, accountID string, amount core.Money) (core.Money, error) {
	if err := amount.Validate(); err != nil {
		metrics.LedgerOperations.WithLabelValues("add_money", metrics.ResultInvalid).Inc()
		return core.Zero, err
	}
	acc, err := s.mutate(ctx, "add_money", accountID, func(a *core.Account) (core.Transaction, error) {
		return a.Credit(amount, s.now())
	})
	if err != nil {
		return core.Zero, err
	}
	return acc.Remaining, nil
}

// AddExpenditure debits e from the balance and its category total and
// returns the new balance. Overdraft is allowed.
func (s *LedgerService) AddExpenditure(ctx context.Context, accountID string, e core.Expenditure) (core.Money, error) {
	if err := e.Validate(); err != nil {
		metrics.LedgerOperations.WithLabelValues("add_expenditure", metrics.ResultInvalid).Inc()
		return core.Zero, err
	}
	acc, err := s.mutate(ctx, "add_expenditure", accountID, func(a *core.Account) (core.Transaction, error) {
		return a.Debit(e)
	})
	if err != nil {
		return core.Zero, err
	}
	return acc.Remaining, nil
}

// GetAccountSnapshot returns a deep copy of the account.
func (s *LedgerService) GetAccountSnapshot(ctx context.Context, accountID string) (core.Account, error) {
	if s.snapshots == nil {
		return s.store.Load(ctx, accountID)
	}
	acc, err := s.snapshots.Get(ctx, accountID, func(ctx context.Context) (core.Account, error) {
		return s.store.Load(ctx, accountID)
	})
	if err != nil {
		return core.Account{}, err
	}
	return acc.Clone(), nil
}

func (s *LedgerService) mutate(ctx context.Context, op, accountID string, apply func(*core.Account) (core.Transaction, error)) (core.Account, error) {
	timer := time.Now()
	defer func() {
		metrics.LedgerDuration.WithLabelValues(op).Observe(time.Since(timer).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		acc, tx, err := s.attempt(ctx, accountID, apply)
		if err == nil {
			metrics.LedgerOperations.WithLabelValues(op, metrics.ResultOK).Inc()
			s.afterCommit(ctx, acc, tx)
			return acc, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			metrics.LedgerOperations.WithLabelValues(op, resultLabel(err)).Inc()
			return core.Account{}, err
		}
		if attempt >= s.retries {
			metrics.LedgerOperations.WithLabelValues(op, metrics.ResultConflict).Inc()
			slog.WarnContext(ctx, "Ledger update gave up after conflicts",
				"account_id", accountID,
				"operation", op,
				"attempts", attempt+1)
			return core.Account{}, err
		}
		metrics.LedgerConflictRetries.WithLabelValues(op).Inc()
		slog.DebugContext(ctx, "Ledger update conflicted, retrying",
			"account_id", accountID,
			"operation", op,
			"attempt", attempt+1)
	}
}

func (s *LedgerService) attempt(ctx context.Context, accountID string, apply func(*core.Account) (core.Transaction, error)) (core.Account, core.Transaction, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, accountID)
		if err != nil {
			return core.Account{}, core.Transaction{}, fmt.Errorf("lock account %s: %w", accountID, err)
		}
		defer release()
	}

	cur, err := s.store.Load(ctx, accountID)
	if err != nil {
		return core.Account{}, core.Transaction{}, err
	}
	next := cur.Clone()
	tx, err := apply(&next)
	if err != nil {
		return core.Account{}, core.Transaction{}, err
	}
	saved, err := s.store.Save(ctx, next, tx)
	if err != nil {
		return core.Account{}, core.Transaction{}, err
	}
	return saved, tx, nil
}

// afterCommit runs once the new state is durable. Nothing here can fail the
// operation.
func (s *LedgerService) afterCommit(ctx context.Context, acc core.Account, tx core.Transaction) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(acc.ID)
	}

	slog.InfoContext(ctx, "Ledger updated",
		"account_id", acc.ID,
		"kind", tx.Kind,
		"category", tx.Category,
		"sum", tx.Sum.String(),
		"remaining", acc.Remaining.String(),
		"version", acc.Version)

	if s.events == nil {
		return
	}
	ev := amqp.LedgerEvent{
		AccountID:     acc.ID,
		TransactionID: tx.ID,
		Kind:          string(tx.Kind),
		Category:      string(tx.Category),
		Sum:           tx.Sum.String(),
		Version:       acc.Version,
		Timestamp:     s.now().UTC(),
	}
	if err := s.events.PublishLedgerEvent(context.WithoutCancel(ctx), ev); err != nil {
		metrics.EventPublishFailures.Inc()
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"account_id", acc.ID,
			"transaction_id", tx.ID,
			"error", err)
	}
}

func resultLabel(err error) string {
	if core.IsValidation(err) {
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}
