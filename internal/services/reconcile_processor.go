package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/storage"
)

// ReconcileProcessorConfig holds configuration for the periodic sweep
type ReconcileProcessorConfig struct {
	// Interval between sweeps (default: 1h)
	Interval time.Duration

	// BatchSize is how many account IDs are fetched per page (default: 100)
	BatchSize int
}

func DefaultReconcileProcessorConfig() ReconcileProcessorConfig {
	return ReconcileProcessorConfig{
		Interval:  time.Hour,
		BatchSize: 100,
	}
}

// SweepStats summarises one pass over all accounts.
type SweepStats struct {
	Checked int
	Drifted int
	Failed  int
}

// ReconcileProcessor periodically checks every account.
type ReconcileProcessor struct {
	accounts   storage.AccountStore
	reconciler *Reconciler
	config     ReconcileProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconcileProcessor(accounts storage.AccountStore, reconciler *Reconciler, config ReconcileProcessorConfig) *ReconcileProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileProcessorConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReconcileProcessorConfig().BatchSize
	}
	return &ReconcileProcessor{
		accounts:   accounts,
		reconciler: reconciler,
		config:     config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *ReconcileProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("reconcile processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Reconcile processor started",
		"interval", p.config.Interval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (p *ReconcileProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reconcile processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconcile processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *ReconcileProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReconcileProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "Reconcile sweep failed", "error", err)
			}
		}
	}
}

// Sweep checks every account once, paging through IDs.
func (p *ReconcileProcessor) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	after := ""
	for {
		ids, err := p.accounts.ListAccountIDs(ctx, after, p.config.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("list accounts after %q: %w", after, err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if p.stopping() || ctx.Err() != nil {
				return stats, ctx.Err()
			}
			rep, err := p.reconciler.Check(ctx, id)
			stats.Checked++
			switch {
			case err != nil:
				stats.Failed++
				slog.WarnContext(ctx, "Reconcile check failed", "account_id", id, "error", err)
			case !rep.OK():
				stats.Drifted++
			}
		}
		after = ids[len(ids)-1]
	}

	slog.InfoContext(ctx, "Reconcile sweep finished",
		"checked", stats.Checked,
		"drifted", stats.Drifted,
		"failed", stats.Failed)
	return stats, nil
}

func (p *ReconcileProcessor) stopping() bool {
	p.mu.Lock()
	ch := p.stopCh
	p.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
