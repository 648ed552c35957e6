package services

import (
	"context"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"
)

// Reconciler audits stored balances against transaction history.
type Reconciler struct {
	store storage.AccountStore
}

func NewReconciler(store storage.AccountStore) *Reconciler {
	return &Reconciler{store: store}
}

// Check loads the account and recomputes its aggregates. Drift is logged
// and counted; it is reported, never repaired.
func (r *Reconciler) Check(ctx context.Context, accountID string) (core.ReconcileReport, error) {
	acc, err := r.store.Load(ctx, accountID)
	if err != nil {
		metrics.ReconcileChecks.WithLabelValues("error").Inc()
		return core.ReconcileReport{}, err
	}
	rep := acc.Reconcile()
	if rep.OK() {
		metrics.ReconcileChecks.WithLabelValues("ok").Inc()
		return rep, nil
	}

	metrics.ReconcileChecks.WithLabelValues("drift").Inc()
	attrs := []any{
		"account_id", accountID,
		"version", acc.Version,
		"remaining", rep.Remaining.String(),
		"expected_remaining", rep.ExpectedRemaining.String(),
	}
	for _, d := range rep.Drift {
		attrs = append(attrs, "category_"+string(d.Category), d.Stored.String()+" != "+d.Expected.String())
	}
	slog.ErrorContext(ctx, "Ledger drift detected", attrs...)
	return rep, nil
}
