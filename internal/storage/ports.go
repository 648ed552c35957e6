// Package storage defines the persistence contract for accounts and users.
// Implementations live in the memory, sqlite and postgres subpackages.
package storage

import (
	"context"

	"fintrack/internal/core"
)

// AccountStore persists ledgers with optimistic concurrency.
type AccountStore interface {
	// Load returns the account with its full history, or core.ErrNotFound.
	Load(ctx context.Context, id string) (core.Account, error)

	// Save persists acc if the stored version still equals acc.Version.
	// appended must be the transactions added since the account was loaded;
	// they are the tail of acc.Transactions. The returned account carries
	// the new version. A stale version yields core.ErrConflict.
	Save(ctx context.Context, acc core.Account, appended ...core.Transaction) (core.Account, error)

	// ListAccountIDs pages through account IDs in ascending order,
	// starting strictly after the given ID.
	ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// UserStore persists account holders.
type UserStore interface {
	// CreateUser inserts u and its empty ledger atomically. A duplicate
	// email yields core.ErrEmailTaken.
	CreateUser(ctx context.Context, u core.User, acc core.Account) error
	GetUser(ctx context.Context, id string) (core.User, error)
	FindUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUser(ctx context.Context, u core.User) error
}

// Store is the full persistence backend.
type Store interface {
	AccountStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// CheckAppend verifies that appended is the tail of acc.Transactions and
// returns the history position of its first element.
func CheckAppend(acc core.Account, appended []core.Transaction) (int, error) {
	start := len(acc.Transactions) - len(appended)
	if start < 0 {
		return 0, ErrBadAppend
	}
	for i, tx := range appended {
		if acc.Transactions[start+i].ID != tx.ID {
			return 0, ErrBadAppend
		}
	}
	return start, nil
}
