package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance ledger API",
		Long: `Fintrack keeps a per-user ledger of money added and expenditures,
with category totals, history and reporting over a JSON API.

Running without a subcommand starts the API server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.LoadEnvFile()
		},
		RunE: runServe,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newReconcileCmd())
	return root
}
