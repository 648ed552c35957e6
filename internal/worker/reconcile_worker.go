package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

// Checker audits one account.
type Checker interface {
	Check(ctx context.Context, accountID string) (core.ReconcileReport, error)
}

// ReconcileWorker audits accounts as their ledger events arrive.
type ReconcileWorker struct {
	checker Checker
	sweeper *services.ReconcileProcessor
}

func NewReconcileWorker(checker Checker, sweeper *services.ReconcileProcessor) *ReconcileWorker {
	return &ReconcileWorker{
		checker: checker,
		sweeper: sweeper,
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. An account
// that no longer exists is acknowledged; redelivery cannot fix it.
func (w *ReconcileWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event",
		"account_id", ev.AccountID,
		"transaction_id", ev.TransactionID,
		"version", ev.Version)

	rep, err := w.checker.Check(ctx, ev.AccountID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Ledger event for unknown account", "account_id", ev.AccountID)
			return nil
		}
		return fmt.Errorf("check account %s: %w", ev.AccountID, err)
	}
	if !rep.OK() {
		slog.ErrorContext(ctx, "Account failed reconciliation after event",
			"account_id", ev.AccountID,
			"transaction_id", ev.TransactionID,
			"kind", ev.Kind)
	}
	return nil
}

// StartupSweep audits every account once, to cover events published while
// the worker was down.
func (w *ReconcileWorker) StartupSweep(ctx context.Context) error {
	if w.sweeper == nil {
		return nil
	}
	stats, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	if stats.Drifted > 0 || stats.Failed > 0 {
		slog.WarnContext(ctx, "Startup sweep found problems",
			"drifted", stats.Drifted,
			"failed", stats.Failed)
	}
	return nil
}
