package memory

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// QRCodeRepo implements ports.QRCodeRepository.
type QRCodeRepo struct {
	s *Store
}

// NewQRCodeRepo creates a QRCodeRepo over store.
func NewQRCodeRepo(store *Store) *QRCodeRepo {
	return &QRCodeRepo{s: store}
}

func copyQR(q *domain.QRCode) *domain.QRCode {
	c := *q
	return &c
}

// Create stores q. Tokens are unique.
func (r *QRCodeRepo) Create(ctx context.Context, q *domain.QRCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.qrCodes {
		if existing.Token == q.Token || existing.ID == q.ID {
			return ports.ErrDuplicate
		}
	}
	r.s.qrCodes[q.ID] = copyQR(q)
	return nil
}

// GetByToken returns the code or nil.
func (r *QRCodeRepo) GetByToken(ctx context.Context, token string) (*domain.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.qrCodes {
		if q.Token == token {
			return copyQR(q), nil
		}
	}
	return nil, nil
}

// GetByID returns the code or nil.
func (r *QRCodeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.qrCodes[id]
	if !ok {
		return nil, nil
	}
	return copyQR(q), nil
}

// ExistsToken reports whether any code carries token.
func (r *QRCodeRepo) ExistsToken(ctx context.Context, token string) (bool, error) {
	q, err := r.GetByToken(ctx, token)
	return q != nil, err
}

// MarkUsed moves an active, unexpired code to used.
func (r *QRCodeRepo) MarkUsed(ctx context.Context, tx pgx.Tx, use ports.QRUse) (bool, error) {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.qrCodes[use.QRID]
	if !ok || q.Status != domain.QRStatusActive || !use.UsedAt.Before(q.ExpiresAt) {
		return false, nil
	}

	prev := *q
	usedAt := use.UsedAt
	q.Status = domain.QRStatusUsed
	q.UsedAt = &usedAt
	q.UsedByCustomerID = &use.CustomerID
	q.UsedByWalletID = &use.WalletID
	q.TransactionID = &use.TransactionID
	mt.onRollback(func() { *q = prev })
	return true, nil
}

// Cancel moves an active code to cancelled.
func (r *QRCodeRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.qrCodes[id]
	if !ok || q.Status != domain.QRStatusActive {
		return false, nil
	}
	q.Status = domain.QRStatusCancelled
	return true, nil
}

// ExpireStale marks active codes past their expiry as expired.
func (r *QRCodeRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, q := range r.s.qrCodes {
		if q.Status == domain.QRStatusActive && !now.Before(q.ExpiresAt) {
			q.Status = domain.QRStatusExpired
			n++
		}
	}
	return n, nil
}
