// Package memory is a process-local storage backend. It keeps the same
// contracts as the PostgreSQL repositories: balance mutations hold a
// per-wallet lock until the owning transaction ends, conditional updates
// are atomic, and a rollback undoes every write made through the
// transaction.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrForeignTx is returned when a repository receives a transaction that
// was not started by this store's Transactor.
var ErrForeignTx = errors.New("memory: transaction not started by this store")

// Store holds all tables. Every read and write takes mu; wallet row locks
// are separate and may be held across calls by an open Tx.
type Store struct {
	mu sync.Mutex

	wallets      map[uuid.UUID]*domain.Wallet
	walletLocks  map[uuid.UUID]chan struct{}
	grants       []*domain.AccessGrant
	qrCodes      map[uuid.UUID]*domain.QRCode
	eftPayments  map[uuid.UUID]*domain.EFTPayment
	transactions []*domain.Transaction
	auditLogs    []*domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets:     make(map[uuid.UUID]*domain.Wallet),
		walletLocks: make(map[uuid.UUID]chan struct{}),
		qrCodes:     make(map[uuid.UUID]*domain.QRCode),
		eftPayments: make(map[uuid.UUID]*domain.EFTPayment),
	}
}

func (s *Store) walletLock(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.walletLocks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.walletLocks[id] = l
	}
	return l
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor bound to store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a new transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: t.store, held: make(map[uuid.UUID]chan struct{})}, nil
}

// Tx is a memory transaction. Only the repositories in this package know
// how to use it; the SQL methods of pgx.Tx are not supported.
type Tx struct {
	store   *Store
	undo    []func()
	pending []*domain.Transaction
	held    map[uuid.UUID]chan struct{}
	closed  bool
}

func asTx(store *Store, tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt.store != store {
		return nil, ErrForeignTx
	}
	if mt.closed {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// lockWallet takes the row lock for id, waiting for any other transaction
// holding it. Re-entrant within the same Tx.
func (tx *Tx) lockWallet(ctx context.Context, id uuid.UUID) error {
	if _, ok := tx.held[id]; ok {
		return nil
	}
	l := tx.store.walletLock(id)
	select {
	case l <- struct{}{}:
		tx.held[id] = l
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for wallet lock: %w", ctx.Err())
	}
}

// onRollback registers a compensating action. Called with store.mu held.
func (tx *Tx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *Tx) release() {
	for id, l := range tx.held {
		<-l
		delete(tx.held, id)
	}
	tx.closed = true
}

// Commit publishes the ledger entries appended in tx and releases its locks.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.store.mu.Lock()
	tx.store.transactions = append(tx.store.transactions, tx.pending...)
	tx.store.mu.Unlock()
	tx.pending = nil
	tx.undo = nil
	tx.release()
	return nil
}

// Rollback reverts every write made through tx. Rolling back a closed
// transaction returns pgx.ErrTxClosed, as pgx does.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.store.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.store.mu.Unlock()
	tx.pending = nil
	tx.undo = nil
	tx.release()
	return nil
}

var errUnsupported = errors.New("memory: SQL is not supported on memory transactions")

func (tx *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errUnsupported }

func (tx *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}

func (tx *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return errBatch{}
}

func (tx *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (tx *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}

func (tx *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnsupported
}

func (tx *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errUnsupported
}

func (tx *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (tx *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errUnsupported }

type errBatch struct{}

func (errBatch) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, errUnsupported }
func (errBatch) Query() (pgx.Rows, error)         { return nil, errUnsupported }
func (errBatch) QueryRow() pgx.Row                { return errRow{} }
func (errBatch) Close() error                     { return nil }
