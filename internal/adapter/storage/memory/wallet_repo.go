package memory

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a WalletRepo over store.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{s: store}
}

func copyWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	return &c
}

// CreateIfAbsent stores w unless the customer already owns a wallet.
func (r *WalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (*domain.Wallet, bool, error) {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return nil, false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.wallets {
		if existing.CustomerID == w.CustomerID {
			return copyWallet(existing), false, nil
		}
	}
	stored := copyWallet(w)
	r.s.wallets[w.ID] = stored
	mt.onRollback(func() { delete(r.s.wallets, w.ID) })
	return copyWallet(stored), true, nil
}

// GetByID returns the wallet or nil.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return copyWallet(w), nil
}

// GetByCustomerID returns the customer's wallet or nil.
func (r *WalletRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.CustomerID == customerID {
			return copyWallet(w), nil
		}
	}
	return nil, nil
}

// Debit subtracts amount under the wallet's row lock.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	return r.apply(ctx, tx, walletID, amount.Neg(), true)
}

// Credit adds amount under the wallet's row lock.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	return r.apply(ctx, tx, walletID, amount, false)
}

func (r *WalletRepo) apply(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal, debit bool) (domain.BalanceChange, error) {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return domain.BalanceChange{}, err
	}
	if err := mt.lockWallet(ctx, walletID); err != nil {
		return domain.BalanceChange{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[walletID]
	if !ok {
		return domain.BalanceChange{}, ports.ErrNotFound
	}
	if !w.IsActive() {
		return domain.BalanceChange{}, ports.ErrWalletInactive
	}
	after := w.Balance.Add(delta)
	if debit && after.IsNegative() {
		return domain.BalanceChange{}, ports.ErrInsufficientBalance
	}

	before, updatedAt := w.Balance, w.UpdatedAt
	w.Balance = after
	w.UpdatedAt = time.Now().UTC()
	mt.onRollback(func() {
		w.Balance = before
		w.UpdatedAt = updatedAt
	})

	return domain.BalanceChange{WalletID: walletID, Before: before, After: after}, nil
}

// UpdateStatus sets the wallet status. It waits for any open balance
// mutation on the wallet to finish first.
func (r *WalletRepo) UpdateStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	l := r.s.walletLock(walletID)
	select {
	case l <- struct{}{}:
		defer func() { <-l }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[walletID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = time.Now().UTC()
	return copyWallet(w), nil
}
