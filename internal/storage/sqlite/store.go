// Package sqlite is the single-node Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open creates the database file if needed, applies migrations and returns a
// ready store.
func Open(dbPath string) (*Store, error) {
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection serialises transactions
	// instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Load(ctx context.Context, id string) (core.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Account{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	acc := core.NewAccount(id)
	var remaining string
	err = tx.QueryRowContext(ctx, `SELECT remaining, version FROM accounts WHERE id = ?`, id).Scan(&remaining, &acc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	if acc.Remaining, err = core.ParseMoney(remaining); err != nil {
		return core.Account{}, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT category, amount FROM account_categories WHERE account_id = ?`, id)
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

	rows, err = tx.QueryContext(ctx, `
		SELECT id, purpose, category, sum, occurred_at, kind
		FROM transactions WHERE account_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("load transactions %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t                        core.Transaction
			cat, sum, occurred, kind string
		)
		if err := rows.Scan(&t.ID, &t.Purpose, &cat, &sum, &occurred, &kind); err != nil {
			return core.Account{}, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Sum, err = core.ParseMoney(sum); err != nil {
			return core.Account{}, err
		}
		if t.Date, err = time.Parse(time.RFC3339Nano, occurred); err != nil {
			return core.Account{}, fmt.Errorf("parse transaction date %q: %w", occurred, err)
		}
		t.Category = core.Category(cat)
		t.Kind = core.Kind(kind)
		acc.Transactions = append(acc.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return core.Account{}, fmt.Errorf("iterate transactions: %w", err)
	}
	return acc, nil
}

func (s *Store) Save(ctx context.Context, acc core.Account, appended ...core.Transaction) (core.Account, error) {
	start, err := storage.CheckAppend(acc, appended)
	if err != nil {
		return core.Account{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Account{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET remaining = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		acc.Remaining.String(), now, acc.ID, acc.Version)
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", acc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Account{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, acc.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Account{}, core.ErrNotFound
		}
		return core.Account{}, core.ErrConflict
	}

	for _, c := range core.Categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO account_categories (account_id, category, amount) VALUES (?, ?, ?)
			ON CONFLICT (account_id, category) DO UPDATE SET amount = excluded.amount`,
			acc.ID, string(c), acc.ByCategory[c].String()); err != nil {
			return core.Account{}, fmt.Errorf("update category %s: %w", c, err)
		}
	}

	for i, t := range appended {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, account_id, position, purpose, category, sum, occurred_at, kind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, acc.ID, start+i, t.Purpose, string(t.Category), t.Sum.String(),
			t.Date.UTC().Format(time.RFC3339Nano), string(t.Kind)); err != nil {
			if isUniqueViolation(err) {
				return core.Account{}, core.ErrConflict
			}
			return core.Account{}, fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Account{}, fmt.Errorf("commit: %w", err)
	}

	out := acc.Clone()
	out.Version = acc.Version + 1
	slog.DebugContext(ctx, "Account saved to SQLite",
		"account_id", acc.ID,
		"version", out.Version,
		"appended", len(appended))
	return out, nil
}

func (s *Store) ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts WHERE id > ? ORDER BY id LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u core.User, acc core.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, profile_pic, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, core.NormalizeEmail(u.Email), u.PasswordHash, u.ProfilePic,
		u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "email") {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO accounts (id, remaining, version, updated_at) VALUES (?, ?, ?, ?)`,
		acc.ID, acc.Remaining.String(), acc.Version, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	for _, c := range core.Categories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO account_categories (account_id, category, amount) VALUES (?, ?, ?)`,
			acc.ID, string(c), acc.ByCategory[c].String()); err != nil {
			return fmt.Errorf("insert category %s: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return nil
}

const userColumns = `id, username, email, password_hash, profile_pic, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, core.NormalizeEmail(email)))
}

func (s *Store) scanUser(row *sql.Row) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfilePic, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return core.User{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u core.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?, profile_pic = ?
		WHERE id = ?`,
		u.Username, core.NormalizeEmail(u.Email), u.PasswordHash, u.ProfilePic, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
