package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const qrColumnList = `id, merchant_id, amount, description, reference, token, status, expires_at,
	created_at, used_at, used_by_customer_id, used_by_wallet_id, transaction_id`

// QRCodeRepo implements ports.QRCodeRepository.
type QRCodeRepo struct {
	pool Pool
}

// NewQRCodeRepo creates a new QRCodeRepo.
func NewQRCodeRepo(pool Pool) *QRCodeRepo {
	return &QRCodeRepo{pool: pool}
}

func scanQR(row pgx.Row) (*domain.QRCode, error) {
	q := &domain.QRCode{}
	err := row.Scan(
		&q.ID, &q.MerchantID, &q.Amount, &q.Description, &q.Reference, &q.Token, &q.Status, &q.ExpiresAt,
		&q.CreatedAt, &q.UsedAt, &q.UsedByCustomerID, &q.UsedByWalletID, &q.TransactionID,
	)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a new QR code.
func (r *QRCodeRepo) Create(ctx context.Context, q *domain.QRCode) error {
	query := `INSERT INTO qr_codes (id, merchant_id, amount, description, reference, token, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		q.ID, q.MerchantID, q.Amount, q.Description, q.Reference, q.Token, q.Status, q.ExpiresAt, q.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert qr code: %w", err)
	}
	return nil
}

// GetByToken fetches a QR code by its opaque token.
func (r *QRCodeRepo) GetByToken(ctx context.Context, token string) (*domain.QRCode, error) {
	q, err := scanQR(r.pool.QueryRow(ctx, `SELECT `+qrColumnList+` FROM qr_codes WHERE token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get qr code by token: %w", err)
	}
	return q, nil
}

// GetByID fetches a QR code by ID.
func (r *QRCodeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.QRCode, error) {
	q, err := scanQR(r.pool.QueryRow(ctx, `SELECT `+qrColumnList+` FROM qr_codes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get qr code by id: %w", err)
	}
	return q, nil
}

// ExistsToken reports whether a token is already taken.
func (r *QRCodeRepo) ExistsToken(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM qr_codes WHERE token = $1)`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check qr token: %w", err)
	}
	return exists, nil
}

// MarkUsed is the optimistic active -> used transition. Expiry is checked
// against the redemption time, strictly.
func (r *QRCodeRepo) MarkUsed(ctx context.Context, tx pgx.Tx, use ports.QRUse) (bool, error) {
	query := `UPDATE qr_codes
		SET status = 'used', used_at = $1, used_by_customer_id = $2, used_by_wallet_id = $3, transaction_id = $4
		WHERE id = $5 AND status = 'active' AND expires_at > $1`

	tag, err := tx.Exec(ctx, query, use.UsedAt, use.CustomerID, use.WalletID, use.TransactionID, use.QRID)
	if err != nil {
		return false, fmt.Errorf("mark qr code used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves an active code to cancelled.
func (r *QRCodeRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE qr_codes SET status = 'cancelled' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, fmt.Errorf("cancel qr code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireStale marks active codes past their expiry as expired.
func (r *QRCodeRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE qr_codes SET status = 'expired' WHERE status = 'active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale qr codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
