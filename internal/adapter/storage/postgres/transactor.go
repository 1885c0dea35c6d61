package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ledgerTxOptions is used for every balance-changing unit of work. Debits
// and credits are guarded UPDATEs that take the wallet row lock, so read
// committed is sufficient.
var ledgerTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}

// Transactor opens ledger transactions on the pool.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, ledgerTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	return tx, nil
}
