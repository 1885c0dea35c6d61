package main

import (
	"fmt"

	pgStorage "wallet-ledger/internal/adapter/storage/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate needs storage.driver=postgres, got %q", c.cfg.Storage.Driver)
			}

			ctx, cancel := signalContext()
			defer cancel()

			pool, err := pgStorage.NewPool(ctx, c.cfg.Database, c.log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			applied, err := pgStorage.Migrate(ctx, pool, c.log)
			if err != nil {
				return err
			}
			c.log.Info().Int("applied", applied).Msg("migrations complete")
			return nil
		},
	}
}
