package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/ports"
)

var errSchemaMissing = errors.New("ledger schema not migrated")

// NewHealthCheck reports postgres healthy only once the ledger tables exist,
// so a server started before `migrate` shows up as degraded.
func NewHealthCheck(pool Pool) ports.Probe {
	return ports.Probe{
		Dependency: "postgresql",
		Check: func(ctx context.Context) error {
			var migrated bool
			err := pool.QueryRow(ctx, `SELECT to_regclass('transactions') IS NOT NULL`).Scan(&migrated)
			if err != nil {
				return fmt.Errorf("probe postgres: %w", err)
			}
			if !migrated {
				return errSchemaMissing
			}
			return nil
		},
	}
}
