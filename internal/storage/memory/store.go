// Package memory is an in-process Store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	accounts map[string]core.Account
	users    map[string]core.User
	byEmail  map[string]string
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts: map[string]core.Account{},
		users:    map[string]core.User{},
		byEmail:  map[string]string{},
	}
}

func (s *Store) Load(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return acc.Clone(), nil
}

// Save compares versions under the store mutex.
func (s *Store) Save(_ context.Context, acc core.Account, appended ...core.Transaction) (core.Account, error) {
	start, err := storage.CheckAppend(acc, appended)
	if err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.accounts[acc.ID]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	if cur.Version != acc.Version || len(cur.Transactions) != start {
		return core.Account{}, core.ErrConflict
	}
	next := acc.Clone()
	next.Version = cur.Version + 1
	s.accounts[acc.ID] = next
	return next.Clone(), nil
}

func (s *Store) ListAccountIDs(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		if id > after {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User, acc core.Account) error {
	email := core.NormalizeEmail(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return core.ErrEmailTaken
	}
	if _, exists := s.users[u.ID]; exists {
		return core.ErrConflict
	}
	u.Email = email
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	s.accounts[acc.ID] = acc.Clone()
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UpdateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return core.ErrNotFound
	}
	email := core.NormalizeEmail(u.Email)
	if email != cur.Email {
		if _, taken := s.byEmail[email]; taken {
			return core.ErrEmailTaken
		}
		delete(s.byEmail, cur.Email)
		s.byEmail[email] = u.ID
	}
	u.Email = email
	s.users[u.ID] = u
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }
