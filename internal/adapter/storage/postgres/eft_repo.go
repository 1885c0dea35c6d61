package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eftColumnList = `id, customer_id, wallet_id, initiated_by, amount, fee, bank_code, account_number_enc,
	reference, external_reference, status, failure_reason, response_data, transaction_id,
	created_at, updated_at, completed_at`

// EFTPaymentRepo implements ports.EFTPaymentRepository.
type EFTPaymentRepo struct {
	pool Pool
}

// NewEFTPaymentRepo creates a new EFTPaymentRepo.
func NewEFTPaymentRepo(pool Pool) *EFTPaymentRepo {
	return &EFTPaymentRepo{pool: pool}
}

func scanEFT(row pgx.Row) (*domain.EFTPayment, error) {
	p := &domain.EFTPayment{}
	var response []byte
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.WalletID, &p.InitiatedBy, &p.Amount, &p.Fee, &p.BankCode, &p.AccountNumberEnc,
		&p.Reference, &p.ExternalReference, &p.Status, &p.FailureReason, &response, &p.TransactionID,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(response) > 0 {
		p.ResponseData = response
	}
	return p, nil
}

// Create inserts a new payment in its initial state.
func (r *EFTPaymentRepo) Create(ctx context.Context, p *domain.EFTPayment) error {
	query := `INSERT INTO eft_payments (id, customer_id, wallet_id, initiated_by, amount, fee, bank_code,
		account_number_enc, reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.CustomerID, p.WalletID, p.InitiatedBy, p.Amount, p.Fee, p.BankCode,
		p.AccountNumberEnc, p.Reference, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert eft payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by ID.
func (r *EFTPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EFTPayment, error) {
	p, err := scanEFT(r.pool.QueryRow(ctx, `SELECT `+eftColumnList+` FROM eft_payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get eft payment by id: %w", err)
	}
	return p, nil
}

// GetByExternalReference fetches a payment by the bank's reference.
func (r *EFTPaymentRepo) GetByExternalReference(ctx context.Context, ref string) (*domain.EFTPayment, error) {
	p, err := scanEFT(r.pool.QueryRow(ctx,
		`SELECT `+eftColumnList+` FROM eft_payments WHERE external_reference = $1`, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get eft payment by external reference: %w", err)
	}
	return p, nil
}

// Transition moves the payment from -> to only if it is still in from.
// A false result means a concurrent writer moved it first.
func (r *EFTPaymentRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.EFTStatus, upd ports.EFTUpdate) (bool, error) {
	query := `UPDATE eft_payments SET
			status = $1,
			external_reference = COALESCE($2, external_reference),
			fee = COALESCE($3, fee),
			failure_reason = COALESCE($4, failure_reason),
			transaction_id = COALESCE($5, transaction_id),
			completed_at = COALESCE($6, completed_at),
			response_data = COALESCE($7, response_data),
			updated_at = NOW()
		WHERE id = $8 AND status = $9`

	var response any
	if len(upd.ResponseData) > 0 {
		response = upd.ResponseData
	}

	tag, err := tx.Exec(ctx, query,
		to, upd.ExternalReference, upd.Fee, upd.FailureReason, upd.TransactionID, upd.CompletedAt, response, id, from,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ports.ErrDuplicate
		}
		return false, fmt.Errorf("transition eft payment %s -> %s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}
