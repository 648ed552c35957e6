// Package report derives read-only views from an account snapshot: the
// transaction history and the category breakdown.
package report

import (
	"sort"
	"time"

	"fintrack/internal/core"
)

// HistoryFilter narrows the history. Zero values mean "no constraint".
// From and To are inclusive calendar bounds.
type HistoryFilter struct {
	Kind     core.Kind
	Category core.Category
	From     time.Time
	To       time.Time
	Limit    int
}

// HistoryView is the history as shown to the user. Empty is set explicitly
// so callers need not infer "no transactions" from a nil slice.
type HistoryView struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
	Empty        bool               `json:"empty"`
}

// History returns acc's transactions newest first. Transactions with equal
// dates keep insertion order. acc is not modified.
func History(acc core.Account, f HistoryFilter) HistoryView {
	out := make([]core.Transaction, 0, len(acc.Transactions))
	for _, tx := range acc.Transactions {
		if f.match(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return HistoryView{Transactions: out, Count: len(out), Empty: len(out) == 0}
}

func (f HistoryFilter) match(tx core.Transaction) bool {
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	// To is a calendar day; include everything up to its end.
	if !f.To.IsZero() && !tx.Date.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}
