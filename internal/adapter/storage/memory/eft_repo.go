package memory

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EFTPaymentRepo implements ports.EFTPaymentRepository.
type EFTPaymentRepo struct {
	s *Store
}

// NewEFTPaymentRepo creates an EFTPaymentRepo over store.
func NewEFTPaymentRepo(store *Store) *EFTPaymentRepo {
	return &EFTPaymentRepo{s: store}
}

func copyEFT(p *domain.EFTPayment) *domain.EFTPayment {
	c := *p
	c.AccountNumber = ""
	return &c
}

// Create stores a new payment.
func (r *EFTPaymentRepo) Create(ctx context.Context, p *domain.EFTPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.eftPayments[p.ID]; ok {
		return ports.ErrDuplicate
	}
	r.s.eftPayments[p.ID] = copyEFT(p)
	return nil
}

// GetByID returns the payment or nil.
func (r *EFTPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EFTPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.eftPayments[id]
	if !ok {
		return nil, nil
	}
	return copyEFT(p), nil
}

// GetByExternalReference returns the payment the bank knows as ref, or nil.
func (r *EFTPaymentRepo) GetByExternalReference(ctx context.Context, ref string) (*domain.EFTPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.eftPayments {
		if p.ExternalReference != nil && *p.ExternalReference == ref {
			return copyEFT(p), nil
		}
	}
	return nil, nil
}

// Transition applies from -> to only if the payment is still in from.
func (r *EFTPaymentRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.EFTStatus, upd ports.EFTUpdate) (bool, error) {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.eftPayments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	if upd.ExternalReference != nil {
		for otherID, other := range r.s.eftPayments {
			if otherID != id && other.ExternalReference != nil && *other.ExternalReference == *upd.ExternalReference {
				return false, ports.ErrDuplicate
			}
		}
	}

	prev := *p
	p.Status = to
	if upd.ExternalReference != nil {
		p.ExternalReference = upd.ExternalReference
	}
	if upd.Fee != nil {
		p.Fee = *upd.Fee
	}
	if upd.FailureReason != nil {
		p.FailureReason = upd.FailureReason
	}
	if upd.TransactionID != nil {
		p.TransactionID = upd.TransactionID
	}
	if upd.CompletedAt != nil {
		p.CompletedAt = upd.CompletedAt
	}
	if len(upd.ResponseData) > 0 {
		p.ResponseData = append([]byte(nil), upd.ResponseData...)
	}
	p.UpdatedAt = time.Now().UTC()
	mt.onRollback(func() { *p = prev })
	return true, nil
}
