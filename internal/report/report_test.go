package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func debit(t *testing.T, acc *core.Account, purpose string, cents int64, d core.Date, c core.Category) core.Transaction {
	t.Helper()
	tx, err := acc.Debit(core.Expenditure{Purpose: purpose, Sum: core.FromCents(cents), Date: d, Category: c})
	require.NoError(t, err)
	return tx
}

func TestHistoryEmpty(t *testing.T) {
	v := History(core.NewAccount("a"), HistoryFilter{})
	assert.True(t, v.Empty)
	assert.Equal(t, 0, v.Count)
	assert.NotNil(t, v.Transactions)
}

func TestHistoryNewestFirst(t *testing.T) {
	acc := core.NewAccount("a")
	d1, d2, d3 := core.NewDate(2025, 3, 3), core.NewDate(2025, 3, 2), core.NewDate(2025, 3, 1)
	t3 := debit(t, &acc, "third", 100, d3, core.Other)
	t1 := debit(t, &acc, "first", 100, d1, core.Other)
	t2 := debit(t, &acc, "second", 100, d2, core.Other)

	v := History(acc, HistoryFilter{})
	require.Equal(t, 3, v.Count)
	assert.Equal(t, []string{t1.ID, t2.ID, t3.ID}, ids(v.Transactions))
	assert.Equal(t, t3.ID, acc.Transactions[0].ID, "history view must not reorder the account")
}

func TestHistoryTiesKeepInsertionOrder(t *testing.T) {
	acc := core.NewAccount("a")
	d := core.NewDate(2025, 3, 1)
	a := debit(t, &acc, "a", 100, d, core.Shopping)
	b := debit(t, &acc, "b", 100, d, core.Shopping)
	c := debit(t, &acc, "c", 100, d, core.Shopping)

	v := History(acc, HistoryFilter{})
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(v.Transactions))
}

func TestHistoryFilters(t *testing.T) {
	acc := core.NewAccount("a")
	_, err := acc.Credit(core.FromCents(10000), time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	debit(t, &acc, "shoes", 2000, core.NewDate(2025, 3, 1), core.Shopping)
	debit(t, &acc, "lunch", 1500, core.NewDate(2025, 3, 2), core.FoodAndDrinks)
	debit(t, &acc, "power", 3000, core.NewDate(2025, 4, 1), core.BillsAndUtilities)

	assert.Equal(t, 1, History(acc, HistoryFilter{Kind: core.Credit}).Count)
	assert.Equal(t, 3, History(acc, HistoryFilter{Kind: core.Debit}).Count)
	assert.Equal(t, 1, History(acc, HistoryFilter{Category: core.FoodAndDrinks}).Count)

	march := History(acc, HistoryFilter{From: core.NewDate(2025, 3, 1).Time, To: core.NewDate(2025, 3, 31).Time})
	assert.Equal(t, 3, march.Count)

	sameDay := History(acc, HistoryFilter{From: core.NewDate(2025, 3, 5).Time, To: core.NewDate(2025, 3, 5).Time})
	assert.Equal(t, 1, sameDay.Count, "To includes the whole day")

	limited := History(acc, HistoryFilter{Limit: 2})
	require.Equal(t, 2, limited.Count)
	assert.Equal(t, "power", limited.Transactions[0].Purpose)

	none := History(acc, HistoryFilter{Category: core.Other})
	assert.True(t, none.Empty)
	assert.NotNil(t, none.Transactions)
}

func TestBreakdown(t *testing.T) {
	acc := core.NewAccount("a")
	_, _ = acc.Credit(core.FromCents(100000), time.Now())
	debit(t, &acc, "a", 2500, core.NewDate(2025, 1, 1), core.Shopping)
	debit(t, &acc, "b", 5000, core.NewDate(2025, 1, 1), core.FoodAndDrinks)
	debit(t, &acc, "c", 2500, core.NewDate(2025, 1, 1), core.BillsAndUtilities)

	b := BreakdownOf(acc)
	assert.Equal(t, int64(10000), b.TotalExpenditure.Cents())
	assert.Equal(t, int64(90000), b.Remaining.Cents())
	assert.Equal(t, int64(100000), b.TotalCredited.Cents())
	assert.Equal(t, int64(10000), b.TotalDebited.Cents())
	require.Len(t, b.Categories, 4)

	want := map[core.Category]float64{core.Shopping: 25, core.FoodAndDrinks: 50, core.BillsAndUtilities: 25, core.Other: 0}
	for _, s := range b.Categories {
		assert.Equal(t, want[s.Category], s.Percent, s.Category)
	}
	assert.Equal(t, "Food & Drinks", b.Categories[1].Label)
}

func TestBreakdownZeroTotal(t *testing.T) {
	acc := core.NewAccount("a")
	_, _ = acc.Credit(core.FromCents(500), time.Now())
	b := BreakdownOf(acc)
	assert.True(t, b.TotalExpenditure.IsZero())
	for _, s := range b.Categories {
		assert.Zero(t, s.Percent)
	}
}

func TestBreakdownRoundsPercent(t *testing.T) {
	acc := core.NewAccount("a")
	debit(t, &acc, "a", 100, core.NewDate(2025, 1, 1), core.Shopping)
	debit(t, &acc, "b", 100, core.NewDate(2025, 1, 1), core.Other)
	debit(t, &acc, "c", 100, core.NewDate(2025, 1, 1), core.FoodAndDrinks)

	b := BreakdownOf(acc)
	assert.Equal(t, 33.33, b.Categories[0].Percent)
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
