package core

// CategoryDrift is a mismatch between a stored category total and the sum of
// its debits.
type CategoryDrift struct {
	Category Category
	Stored   Money
	Expected Money
}

// ReconcileReport compares stored aggregates against the values recomputed
// from the transaction history.
type ReconcileReport struct {
	AccountID         string
	Remaining         Money
	ExpectedRemaining Money
	TotalCredited     Money
	TotalDebited      Money
	Drift             []CategoryDrift
}

// OK reports whether the stored aggregates match the history.
func (r ReconcileReport) OK() bool {
	return r.Remaining.Equal(r.ExpectedRemaining) && len(r.Drift) == 0
}

// Reconcile recomputes balance and category totals from history.
func (a Account) Reconcile() ReconcileReport {
	rep := ReconcileReport{AccountID: a.ID, Remaining: a.Remaining}
	expected := make(map[Category]Money, len(Categories))
	for _, tx := range a.Transactions {
		switch tx.Kind {
		case Credit:
			rep.TotalCredited = rep.TotalCredited.Add(tx.Sum)
		case Debit:
			rep.TotalDebited = rep.TotalDebited.Add(tx.Sum)
			expected[tx.Category] = expected[tx.Category].Add(tx.Sum)
		}
	}
	rep.ExpectedRemaining = rep.TotalCredited.Sub(rep.TotalDebited)

	for _, c := range Categories {
		if stored := a.ByCategory[c]; !stored.Equal(expected[c]) {
			rep.Drift = append(rep.Drift, CategoryDrift{Category: c, Stored: stored, Expected: expected[c]})
		}
	}
	return rep
}
