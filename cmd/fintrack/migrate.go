package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := cli.SetupLogger(cfg.LogLevel, log.ComponentStorage)

			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			if err := bcfg.Validate(); err != nil {
				return err
			}
			if err := backend.Migrate(bcfg); err != nil {
				return fmt.Errorf("migrate %s: %w", bcfg.Type, err)
			}
			logger.Info("Migrations applied", "backend", bcfg.Type.String())
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", bcfg.Type)
			return nil
		},
	}
}
