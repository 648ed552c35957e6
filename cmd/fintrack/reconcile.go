package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func newReconcileCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "reconcile [account-id...]",
		Short: "Check stored balances and category totals against transaction history",
		Long: `Reconcile recomputes each account's balance and category totals from its
transactions and reports any mismatch. Without arguments every account is
checked. The command fails when at least one account does not reconcile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			// Only the store is needed.
			bcfg.RedisAddr, bcfg.AMQPURL = "", ""
			be, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
			if err != nil {
				return fmt.Errorf("create backend: %w", err)
			}
			defer be.Cleanup()

			reconciler := services.NewReconciler(be.Store)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if batchSize <= 0 {
					batchSize = cfg.ReconcileBatchSize
				}
				processor := services.NewReconcileProcessor(be.Store, reconciler, services.ReconcileProcessorConfig{
					Interval:  cfg.ReconcileInterval,
					BatchSize: batchSize,
				})
				stats, err := processor.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "checked %d accounts: %d drifted, %d failed\n", stats.Checked, stats.Drifted, stats.Failed)
				if stats.Drifted > 0 || stats.Failed > 0 {
					return fmt.Errorf("%d account(s) did not reconcile", stats.Drifted+stats.Failed)
				}
				return nil
			}

			bad := 0
			for _, id := range args {
				rep, err := reconciler.Check(ctx, id)
				if err != nil {
					fmt.Fprintf(out, "%s: error: %v\n", id, err)
					bad++
					continue
				}
				printReport(out, rep)
				if !rep.OK() {
					bad++
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d account(s) did not reconcile", bad)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "account IDs fetched per page (default RECONCILE_BATCH_SIZE)")
	return cmd
}

func printReport(w io.Writer, rep core.ReconcileReport) {
	if rep.OK() {
		fmt.Fprintf(w, "%s: ok (balance %s, credited %s, debited %s)\n",
			rep.AccountID, rep.Remaining, rep.TotalCredited, rep.TotalDebited)
		return
	}
	fmt.Fprintf(w, "%s: DRIFT balance stored=%s expected=%s\n", rep.AccountID, rep.Remaining, rep.ExpectedRemaining)
	for _, d := range rep.Drift {
		fmt.Fprintf(w, "  %s stored=%s expected=%s\n", d.Category, d.Stored, d.Expected)
	}
}
