package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEFT() *domain.EFTPayment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	ext := "BNK-000042"
	return &domain.EFTPayment{
		ID:                uuid.New(),
		CustomerID:        uuid.New(),
		WalletID:          uuid.New(),
		Amount:            decimal.RequireFromString("500.00"),
		Fee:               decimal.Zero,
		BankCode:          "fnb",
		AccountNumberEnc:  "enc_account",
		Reference:         "TOPUP-20260301-120000",
		ExternalReference: &ext,
		Status:            domain.EFTStatusProcessing,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func eftColumns() []string {
	return []string{"id", "customer_id", "wallet_id", "initiated_by", "amount", "fee", "bank_code", "account_number_enc",
		"reference", "external_reference", "status", "failure_reason", "response_data", "transaction_id",
		"created_at", "updated_at", "completed_at"}
}

func eftRow(p *domain.EFTPayment) *pgxmock.Rows {
	return pgxmock.NewRows(eftColumns()).AddRow(
		p.ID, p.CustomerID, p.WalletID, p.InitiatedBy, p.Amount, p.Fee, p.BankCode, p.AccountNumberEnc,
		p.Reference, p.ExternalReference, p.Status, p.FailureReason, []byte(`{"ack":true}`), p.TransactionID,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
}

func TestEFTPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEFTPaymentRepo(mock)
	p := newTestEFT()
	p.Status = domain.EFTStatusPending

	mock.ExpectExec("INSERT INTO eft_payments").
		WithArgs(p.ID, p.CustomerID, p.WalletID, p.InitiatedBy, p.Amount, p.Fee, p.BankCode,
			p.AccountNumberEnc, p.Reference, p.Status, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEFTPaymentRepo_GetByExternalReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEFTPaymentRepo(mock)
	p := newTestEFT()

	mock.ExpectQuery("SELECT .+ FROM eft_payments WHERE external_reference").
		WithArgs("BNK-000042").
		WillReturnRows(eftRow(p))

	got, err := repo.GetByExternalReference(context.Background(), "BNK-000042")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, domain.EFTStatusProcessing, got.Status)
	assert.JSONEq(t, `{"ack":true}`, string(got.ResponseData))

	mock.ExpectQuery("SELECT .+ FROM eft_payments WHERE external_reference").
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows(eftColumns()))
	got, err = repo.GetByExternalReference(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestEFTPaymentRepo_Transition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEFTPaymentRepo(mock)
	id := uuid.New()
	txID := uuid.New()
	completedAt := time.Now().UTC()
	tx := beginMockTx(t, mock)

	fee := decimal.RequireFromString("10.00")
	upd := ports.EFTUpdate{Fee: &fee, TransactionID: &txID, CompletedAt: &completedAt}
	mock.ExpectExec(`UPDATE eft_payments SET .+ fee = COALESCE\(\$3, fee\), .+ WHERE id = \$8 AND status = \$9`).
		WithArgs(domain.EFTStatusCompleted, upd.ExternalReference, upd.Fee, upd.FailureReason, upd.TransactionID,
			upd.CompletedAt, nil, id, domain.EFTStatusProcessing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Transition(context.Background(), tx, id, domain.EFTStatusProcessing, domain.EFTStatusCompleted, upd)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEFTPaymentRepo_Transition_LostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEFTPaymentRepo(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("UPDATE eft_payments SET").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.Transition(context.Background(), tx, uuid.New(), domain.EFTStatusProcessing, domain.EFTStatusCompleted, ports.EFTUpdate{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEFTPaymentRepo_Transition_DuplicateExternalReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEFTPaymentRepo(mock)
	tx := beginMockTx(t, mock)
	ref := "BNK-DUP"

	mock.ExpectExec("UPDATE eft_payments SET").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.Transition(context.Background(), tx, uuid.New(), domain.EFTStatusPending, domain.EFTStatusProcessing,
		ports.EFTUpdate{ExternalReference: &ref})
	assert.ErrorIs(t, err, ports.ErrDuplicate)
}
