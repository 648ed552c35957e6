package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

// driftStore corrupts the loaded balance of one account.
type driftStore struct {
	*memory.Store
	corrupt string
}

func (s *driftStore) Load(ctx context.Context, id string) (core.Account, error) {
	acc, err := s.Store.Load(ctx, id)
	if err == nil && id == s.corrupt {
		acc.Remaining = acc.Remaining.Add(core.FromCents(1))
	}
	return acc, err
}

func seedAccounts(t *testing.T, store *memory.Store, n int) []string {
	t.Helper()
	ledger := NewLedgerService(store)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := core.NewAccountID()
		u := core.User{ID: id, Username: "u", Email: id + "@example.com", PasswordHash: "x", CreatedAt: time.Now()}
		require.NoError(t, store.CreateUser(context.Background(), u, core.NewAccount(id)))
		_, err := ledger.AddMoney(context.Background(), id, core.FromCents(1000))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestReconcilerCheck(t *testing.T) {
	mem := memory.New()
	ids := seedAccounts(t, mem, 2)
	r := NewReconciler(&driftStore{Store: mem, corrupt: ids[1]})

	rep, err := r.Check(context.Background(), ids[0])
	require.NoError(t, err)
	assert.True(t, rep.OK())

	rep, err = r.Check(context.Background(), ids[1])
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.Equal(t, int64(1000), rep.ExpectedRemaining.Cents())

	_, err = r.Check(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReconcileProcessorSweep(t *testing.T) {
	mem := memory.New()
	ids := seedAccounts(t, mem, 7)
	store := &driftStore{Store: mem, corrupt: ids[3]}
	p := NewReconcileProcessor(store, NewReconciler(store), ReconcileProcessorConfig{Interval: time.Hour, BatchSize: 3})

	stats, err := p.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepStats{Checked: 7, Drifted: 1}, stats)
}

func TestReconcileProcessorLifecycle(t *testing.T) {
	mem := memory.New()
	p := NewReconcileProcessor(mem, NewReconciler(mem), ReconcileProcessorConfig{})
	assert.Equal(t, DefaultReconcileProcessorConfig(), p.config)
	assert.False(t, p.IsRunning())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start must fail")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx), "stop when not running is a no-op")
}
