// Package postgres is the multi-instance Store backed by pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool

	// afterAccountRow runs inside Load between the account row and the
	// child rows. Tests use it to interleave writers.
	afterAccountRow func()
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn with retries, applies migrations and returns a ready
// store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	const maxRetries = 5
	delay := time.Second
	var pool *pgxpool.Pool
	for i := 1; i <= maxRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		slog.WarnContext(ctx, "Postgres connection failed", "attempt", i, "error", err)
		if i == maxRetries {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxRetries, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if err := RunMigrations(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{db: pool}, nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Load reads the account and its children from one repeatable-read
// snapshot, so balance and history always belong to the same version.
func (s *Store) Load(ctx context.Context, id string) (core.Account, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return core.Account{}, fmt.Errorf("begin load %s: %w", id, err)
	}
	defer tx.Rollback(ctx)

	acc, err := s.load(ctx, tx, id)
	if err != nil {
		return core.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Account{}, fmt.Errorf("commit load %s: %w", id, err)
	}
	return acc, nil
}

func (s *Store) load(ctx context.Context, q pgx.Tx, id string) (core.Account, error) {
	acc := core.NewAccount(id)
	var remaining string
	err := q.QueryRow(ctx, `SELECT remaining::text, version FROM accounts WHERE id = $1`, id).
		Scan(&remaining, &acc.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	if acc.Remaining, err = core.ParseMoney(remaining); err != nil {
		return core.Account{}, err
	}
	if s.afterAccountRow != nil {
		s.afterAccountRow()
	}

	rows, err := q.Query(ctx, `SELECT category, amount::text FROM account_categories WHERE account_id = $1`, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("load categories %s: %w", id, err)
	}
	for rows.Next() {
		var cat, amount string
		if err := rows.Scan(&cat, &amount); err != nil {
			rows.Close()
			return core.Account{}, fmt.Errorf("scan category: %w", err)
		}
		m, err := core.ParseMoney(amount)
		if err != nil {
			rows.Close()
			return core.Account{}, err
		}
		acc.ByCategory[core.Category(cat)] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return core.Account{}, fmt.Errorf("iterate categories: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, purpose, category, sum::text, occurred_at, kind
		FROM transactions WHERE account_id = $1 ORDER BY position`, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("load transactions %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t              core.Transaction
			cat, sum, kind string
		)
		if err := rows.Scan(&t.ID, &t.Purpose, &cat, &sum, &t.Date, &kind); err != nil {
			return core.Account{}, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Sum, err = core.ParseMoney(sum); err != nil {
			return core.Account{}, err
		}
		t.Date = t.Date.UTC()
		t.Category = core.Category(cat)
		t.Kind = core.Kind(kind)
		acc.Transactions = append(acc.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return core.Account{}, fmt.Errorf("iterate transactions: %w", err)
	}
	return acc, nil
}

// Save uses an optimistic version check; a missing row after the UPDATE
// means another writer got there first.
func (s *Store) Save(ctx context.Context, acc core.Account, appended ...core.Transaction) (core.Account, error) {
	start, err := storage.CheckAppend(acc, appended)
	if err != nil {
		return core.Account{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return core.Account{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var newVersion int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET remaining = $1::numeric, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING version`,
		acc.Remaining.String(), acc.ID, acc.Version).Scan(&newVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, acc.ID).Scan(&exists); err != nil {
			return core.Account{}, fmt.Errorf("check account %s: %w", acc.ID, err)
		}
		if !exists {
			return core.Account{}, core.ErrNotFound
		}
		return core.Account{}, core.ErrConflict
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", acc.ID, err)
	}

	batch := &pgx.Batch{}
	for _, c := range core.Categories {
		batch.Queue(`
			INSERT INTO account_categories (account_id, category, amount) VALUES ($1, $2, $3::numeric)
			ON CONFLICT (account_id, category) DO UPDATE SET amount = EXCLUDED.amount`,
			acc.ID, string(c), acc.ByCategory[c].String())
	}
	for i, t := range appended {
		batch.Queue(`
			INSERT INTO transactions (id, account_id, position, purpose, category, sum, occurred_at, kind)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`,
			t.ID, acc.ID, start+i, t.Purpose, string(t.Category), t.Sum.String(), t.Date.UTC(), string(t.Kind))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, core.ErrConflict
		}
		return core.Account{}, fmt.Errorf("write ledger rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Account{}, fmt.Errorf("commit: %w", err)
	}

	out := acc.Clone()
	out.Version = newVersion
	return out, nil
}

func (s *Store) ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `SELECT id FROM accounts WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect account ids: %w", err)
	}
	return ids, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User, acc core.Account) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, profile_pic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, core.NormalizeEmail(u.Email), u.PasswordHash, u.ProfilePic, u.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "users_email_key" {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO accounts (id, remaining, version) VALUES ($1, $2::numeric, $3)`,
		acc.ID, acc.Remaining.String(), acc.Version)
	for _, c := range core.Categories {
		batch.Queue(`INSERT INTO account_categories (account_id, category, amount) VALUES ($1, $2, $3::numeric)`,
			acc.ID, string(c), acc.ByCategory[c].String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return nil
}

const userColumns = `id, username, email, password_hash, profile_pic, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, core.NormalizeEmail(email)))
}

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u core.User) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET username = $1, email = $2, password_hash = $3, profile_pic = $4
		WHERE id = $5`,
		u.Username, core.NormalizeEmail(u.Email), u.PasswordHash, u.ProfilePic, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
