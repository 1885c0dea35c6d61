package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumnList = `id, customer_id, created_by_merchant_id, balance, currency,
	daily_limit, monthly_limit, status, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.CustomerID, &w.CreatedByMerchantID, &w.Balance, &w.Currency,
		&w.DailyLimit, &w.MonthlyLimit, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// CreateIfAbsent inserts the wallet unless the customer already owns one.
// The existing wallet is returned with created=false in that case.
func (r *WalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (*domain.Wallet, bool, error) {
	query := `INSERT INTO wallets (` + walletColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id) DO NOTHING
		RETURNING ` + walletColumnList

	created, err := scanWallet(tx.QueryRow(ctx, query,
		w.ID, w.CustomerID, w.CreatedByMerchantID, w.Balance, w.Currency,
		w.DailyLimit, w.MonthlyLimit, w.Status, w.CreatedAt, w.UpdatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert wallet: %w", err)
	}

	existing, err := scanWallet(tx.QueryRow(ctx,
		`SELECT `+walletColumnList+` FROM wallets WHERE customer_id = $1`, w.CustomerID))
	if err != nil {
		return nil, false, fmt.Errorf("get existing wallet: %w", err)
	}
	return existing, false, nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumnList+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByCustomerID fetches the customer's wallet.
func (r *WalletRepo) GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumnList+` FROM wallets WHERE customer_id = $1`, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by customer: %w", err)
	}
	return w, nil
}

// Debit subtracts amount in one conditional statement. The row lock it
// takes is held by tx until commit or rollback.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	query := `UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND status = 'active' AND balance >= $1
		RETURNING balance`

	var after decimal.Decimal
	err := tx.QueryRow(ctx, query, amount, walletID).Scan(&after)
	if err == nil {
		return domain.BalanceChange{WalletID: walletID, Before: after.Add(amount), After: after}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.BalanceChange{}, fmt.Errorf("debit wallet: %w", err)
	}
	return domain.BalanceChange{}, r.classify(ctx, tx, walletID, true)
}

// Credit adds amount to an active wallet.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND status = 'active'
		RETURNING balance`

	var after decimal.Decimal
	err := tx.QueryRow(ctx, query, amount, walletID).Scan(&after)
	if err == nil {
		return domain.BalanceChange{WalletID: walletID, Before: after.Sub(amount), After: after}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.BalanceChange{}, fmt.Errorf("credit wallet: %w", err)
	}
	return domain.BalanceChange{}, r.classify(ctx, tx, walletID, false)
}

// classify explains why a conditional balance update matched no row.
func (r *WalletRepo) classify(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, debit bool) error {
	var status domain.WalletStatus
	err := tx.QueryRow(ctx, `SELECT status FROM wallets WHERE id = $1`, walletID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("classify wallet update: %w", err)
	}
	if status != domain.WalletStatusActive {
		return ports.ErrWalletInactive
	}
	if debit {
		return ports.ErrInsufficientBalance
	}
	return fmt.Errorf("credit wallet %s: no row updated", walletID)
}

// UpdateStatus sets the wallet status and returns the updated wallet.
func (r *WalletRepo) UpdateStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	query := `UPDATE wallets SET status = $1, updated_at = NOW() WHERE id = $2
		RETURNING ` + walletColumnList

	w, err := scanWallet(r.pool.QueryRow(ctx, query, status, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("update wallet status: %w", err)
	}
	return w, nil
}
