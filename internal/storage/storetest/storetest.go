// Package storetest holds behaviour checks every storage.Store must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("save and load", func(t *testing.T) { testSaveLoad(t, s) })
	t.Run("stale version conflicts", func(t *testing.T) { testConflict(t, s) })
	t.Run("concurrent saves", func(t *testing.T) { testConcurrentSaves(t, s) })
	t.Run("list ids", func(t *testing.T) { testListIDs(t, s) })
}

func newUser(t *testing.T, s storage.Store, email string) (core.User, core.Account) {
	t.Helper()
	id := core.NewAccountID()
	u := core.User{
		ID:           id,
		Username:     "user-" + id[:8],
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	acc := core.NewAccount(id)
	require.NoError(t, s.CreateUser(context.Background(), u, acc))
	return u, acc
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u, _ := newUser(t, s, "Alice@Example.com")

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Username)
	assert.Equal(t, "alice@example.com", got.Email)

	byEmail, err := s.FindUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	dup := core.User{ID: core.NewAccountID(), Username: "x", Email: "alice@example.com", PasswordHash: "h", CreatedAt: time.Now()}
	err = s.CreateUser(ctx, dup, core.NewAccount(dup.ID))
	assert.ErrorIs(t, err, core.ErrEmailTaken)
	_, err = s.Load(ctx, dup.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "failed signup must not leave an account behind")

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)

	other, _ := newUser(t, s, "bob@example.com")
	other.Email = "alice@example.com"
	assert.ErrorIs(t, s.UpdateUser(ctx, other), core.ErrEmailTaken)

	got.Username = "alice2"
	got.ProfilePic = "uploads/p.png"
	require.NoError(t, s.UpdateUser(ctx, got))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "uploads/p.png", got.ProfilePic)
}

func testSaveLoad(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, acc := newUser(t, s, "carol@example.com")

	loaded, err := s.Load(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Transactions)
	assert.Len(t, loaded.ByCategory, len(core.Categories))

	credit, err := loaded.Credit(core.FromCents(50000), time.Now())
	require.NoError(t, err)
	debit, err := loaded.Debit(core.Expenditure{
		Purpose: "Lunch", Sum: core.FromCents(5000), Date: core.NewDate(2025, 5, 1), Category: core.FoodAndDrinks,
	})
	require.NoError(t, err)

	saved, err := s.Save(ctx, loaded, credit, debit)
	require.NoError(t, err)
	assert.Equal(t, loaded.Version+1, saved.Version)

	again, err := s.Load(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Version, again.Version)
	assert.Equal(t, int64(45000), again.Remaining.Cents())
	assert.Equal(t, int64(5000), again.ByCategory[core.FoodAndDrinks].Cents())
	require.Len(t, again.Transactions, 2)
	assert.Equal(t, credit.ID, again.Transactions[0].ID)
	assert.Equal(t, debit.ID, again.Transactions[1].ID)
	assert.Equal(t, core.Debit, again.Transactions[1].Kind)
	assert.True(t, again.Transactions[1].Date.Equal(core.NewDate(2025, 5, 1).Time))
	assert.True(t, again.Reconcile().OK())

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testConflict(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, acc := newUser(t, s, "dave@example.com")

	a, err := s.Load(ctx, acc.ID)
	require.NoError(t, err)
	b, err := s.Load(ctx, acc.ID)
	require.NoError(t, err)

	txA, _ := a.Credit(core.FromCents(100), time.Now())
	_, err = s.Save(ctx, a, txA)
	require.NoError(t, err)

	txB, _ := b.Credit(core.FromCents(200), time.Now())
	_, err = s.Save(ctx, b, txB)
	assert.ErrorIs(t, err, core.ErrConflict)

	final, err := s.Load(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), final.Remaining.Cents())
	assert.Len(t, final.Transactions, 1)
}

func testConcurrentSaves(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, acc := newUser(t, s, "erin@example.com")

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, err := s.Load(ctx, acc.ID)
				if err != nil {
					t.Errorf("load: %v", err)
					return
				}
				tx, _ := cur.Credit(core.FromCents(1000), time.Now())
				if _, err := s.Save(ctx, cur, tx); err == nil {
					return
				} else if !errors.Is(err, core.ErrConflict) {
					t.Errorf("save: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	final, err := s.Load(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*1000), final.Remaining.Cents())
	assert.Len(t, final.Transactions, workers)
	assert.True(t, final.Reconcile().OK())
}

func testListIDs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var all []string
	after := ""
	for {
		page, err := s.ListAccountIDs(ctx, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		assert.LessOrEqual(t, len(page), 2)
		all = append(all, page...)
		after = page[len(page)-1]
	}
	assert.IsIncreasing(t, all)
	assert.GreaterOrEqual(t, len(all), 5)
}
