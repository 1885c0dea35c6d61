package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository. Appended entries
// stay private to their transaction until it commits.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a TransactionRepo over store.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{s: store}
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Append stages t in tx.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return err
	}
	mt.pending = append(mt.pending, copyTransaction(t))
	return nil
}

// GetByID returns a committed entry or nil.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.ID == id {
			return copyTransaction(t), nil
		}
	}
	return nil, nil
}

// SumDebits totals completed debits of kinds from walletID since, counting
// both committed entries and those staged in tx.
func (r *TransactionRepo) SumDebits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, kinds []domain.TransactionKind, since time.Time) (decimal.Decimal, error) {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return decimal.Zero, err
	}

	want := make(map[domain.TransactionKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	total := decimal.Zero
	sum := func(entries []*domain.Transaction) {
		for _, t := range entries {
			if t.Direction != domain.DirectionDebit || t.Status != domain.TransactionStatusCompleted {
				continue
			}
			if t.FromWalletID == nil || *t.FromWalletID != walletID || !want[t.Kind] {
				continue
			}
			if t.CreatedAt.Before(since) {
				continue
			}
			total = total.Add(t.Amount)
		}
	}

	r.s.mu.Lock()
	sum(r.s.transactions)
	r.s.mu.Unlock()
	sum(mt.pending)
	return total, nil
}

func matches(t *domain.Transaction, f ports.TransactionFilter) bool {
	if f.CustomerID != nil && t.CustomerID != *f.CustomerID {
		return false
	}
	if f.MerchantID != nil && (t.MerchantID == nil || *t.MerchantID != *f.MerchantID) {
		return false
	}
	if f.WalletID != nil {
		from := t.FromWalletID != nil && *t.FromWalletID == *f.WalletID
		to := t.ToWalletID != nil && *t.ToWalletID == *f.WalletID
		if !from && !to {
			return false
		}
	}
	if f.Kind != nil && t.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Query lists committed entries matching f, newest first.
func (r *TransactionRepo) Query(ctx context.Context, f ports.TransactionFilter) ([]domain.Transaction, int64, error) {
	r.s.mu.Lock()
	var result []domain.Transaction
	for _, t := range r.s.transactions {
		if matches(t, f) {
			result = append(result, *copyTransaction(t))
		}
	}
	r.s.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) > 0
	})

	total := int64(len(result))
	start := (f.Page - 1) * f.PageSize
	if start < 0 || start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + f.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}
