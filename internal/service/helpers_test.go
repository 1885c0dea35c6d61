package service

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func admin() domain.Principal {
	return domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
}

func merchant() domain.Principal {
	return domain.Principal{ID: uuid.New(), Role: domain.RoleMerchant}
}

func activeWallet(customerID uuid.UUID, balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:           uuid.New(),
		CustomerID:   customerID,
		Balance:      dec(balance),
		Currency:     "ZAR",
		DailyLimit:   dec("5000.00"),
		MonthlyLimit: dec("50000.00"),
		Status:       domain.WalletStatusActive,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
}

func grantOf(merchantID, customerID uuid.UUID, c domain.Capability) *domain.AccessGrant {
	return &domain.AccessGrant{
		ID:         uuid.New(),
		MerchantID: merchantID,
		CustomerID: customerID,
		Capability: c,
		Reason:     domain.GrantReasonAdmin,
		GrantedAt:  fixedNow.Add(-time.Hour),
		Active:     true,
	}
}

func testPolicy() LimitPolicy {
	return LimitPolicy{
		Currency:    "ZAR",
		DefaultTier: domain.TierUnverified,
		Tiers: map[domain.VerificationTier]domain.SpendLimits{
			domain.TierUnverified: {Daily: dec("5000.00"), Monthly: dec("50000.00")},
			domain.TierVerified:   {Daily: dec("25000.00"), Monthly: dec("250000.00")},
		},
	}
}

// coreMocks bundles the repository mocks and the building blocks every
// service is composed from.
type coreMocks struct {
	ctrl       *gomock.Controller
	wallets    *mocks.MockWalletRepository
	txns       *mocks.MockTransactionRepository
	grants     *mocks.MockAccessGrantRepository
	verifier   *mocks.MockVerificationProvider
	transactor *mocks.MockDBTransactor

	store  *WalletStore
	access *AccessRegistry
	ledger *Ledger
}

func newCoreMocks(t *testing.T) *coreMocks {
	ctrl := gomock.NewController(t)
	m := &coreMocks{
		ctrl:       ctrl,
		wallets:    mocks.NewMockWalletRepository(ctrl),
		txns:       mocks.NewMockTransactionRepository(ctrl),
		grants:     mocks.NewMockAccessGrantRepository(ctrl),
		verifier:   mocks.NewMockVerificationProvider(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	m.store = NewWalletStore(m.wallets, m.txns, m.verifier, testPolicy(), zerolog.Nop())
	m.store.now = fixedClock
	m.access = NewAccessRegistry(m.grants, zerolog.Nop())
	m.access.now = fixedClock
	m.ledger = NewLedger(m.txns, 20, 100, zerolog.Nop())
	return m
}

func (m *coreMocks) expectTx() pgx.Tx {
	tx := &mockTx{}
	m.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	return tx
}

// expectWithinLimits lets a debit pass both spend windows.
func (m *coreMocks) expectWithinLimits(w *domain.Wallet) {
	m.wallets.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
	m.txns.EXPECT().SumDebits(gomock.Any(), gomock.Any(), w.ID, domain.SpendKinds(), gomock.Any()).
		Return(decimal.Zero, nil).Times(2)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
