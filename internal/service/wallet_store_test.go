package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWalletStore_CreateOrGet_UsesVerificationTier(t *testing.T) {
	m := newCoreMocks(t)
	customerID := uuid.New()
	merchantID := uuid.New()
	tx := &mockTx{}

	m.verifier.EXPECT().Tier(gomock.Any(), customerID).Return(domain.TierVerified, nil)
	m.wallets.EXPECT().CreateIfAbsent(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) (*domain.Wallet, bool, error) {
			return w, true, nil
		})

	w, created, err := m.store.CreateOrGet(context.Background(), tx, customerID, &merchantID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, customerID, w.CustomerID)
	assert.Equal(t, &merchantID, w.CreatedByMerchantID)
	assert.True(t, w.Balance.IsZero())
	assert.Equal(t, "ZAR", w.Currency)
	assert.Equal(t, "25000", w.DailyLimit.String())
	assert.Equal(t, domain.WalletStatusActive, w.Status)
}

func TestWalletStore_CreateOrGet_VerifierFailureFallsBack(t *testing.T) {
	m := newCoreMocks(t)
	customerID := uuid.New()

	m.verifier.EXPECT().Tier(gomock.Any(), customerID).Return(domain.VerificationTier(""), errors.New("kyc down"))
	m.wallets.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) (*domain.Wallet, bool, error) {
			return w, true, nil
		})

	w, _, err := m.store.CreateOrGet(context.Background(), &mockTx{}, customerID, nil)
	require.NoError(t, err)
	assert.Equal(t, "5000", w.DailyLimit.String())
}

func TestWalletStore_CreateOrGet_NilCustomer(t *testing.T) {
	m := newCoreMocks(t)
	_, _, err := m.store.CreateOrGet(context.Background(), &mockTx{}, uuid.Nil, nil)
	assertAppError(t, err, "VAL_001")
}

func TestWalletStore_Debit_MapsRepoErrors(t *testing.T) {
	tests := []struct {
		repoErr error
		code    string
	}{
		{ports.ErrInsufficientBalance, "WAL_001"},
		{ports.ErrWalletInactive, "WAL_002"},
		{ports.ErrNotFound, "NF_001"},
		{fmt.Errorf("wrapped: %w", errors.New("conn reset")), "SYS_001"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			m := newCoreMocks(t)
			walletID := uuid.New()
			m.wallets.EXPECT().Debit(gomock.Any(), gomock.Any(), walletID, dec("10")).
				Return(domain.BalanceChange{}, tt.repoErr)

			_, err := m.store.Debit(context.Background(), &mockTx{}, walletID, dec("10"))
			assertAppError(t, err, tt.code)
		})
	}
}

func TestWalletStore_Debit_NonPositive(t *testing.T) {
	m := newCoreMocks(t)
	_, err := m.store.Debit(context.Background(), &mockTx{}, uuid.New(), decimal.Zero)
	assertAppError(t, err, "VAL_002")

	_, err = m.store.Credit(context.Background(), &mockTx{}, uuid.New(), dec("-1"))
	assertAppError(t, err, "VAL_002")
}

func TestWalletStore_Debit_DailyLimitExceeded(t *testing.T) {
	m := newCoreMocks(t)
	w := activeWallet(uuid.New(), "10000.00")
	tx := &mockTx{}

	m.wallets.EXPECT().Debit(gomock.Any(), tx, w.ID, dec("600.00")).
		Return(domain.BalanceChange{WalletID: w.ID, Before: dec("10000.00"), After: dec("9400.00")}, nil)
	m.wallets.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
	m.txns.EXPECT().SumDebits(gomock.Any(), tx, w.ID, domain.SpendKinds(), domain.DayStart(fixedNow)).
		Return(dec("4500.00"), nil)

	_, err := m.store.Debit(context.Background(), tx, w.ID, dec("600.00"))
	assertAppError(t, err, "WAL_003")
}

func TestWalletStore_Debit_MonthlyLimitExceeded(t *testing.T) {
	m := newCoreMocks(t)
	w := activeWallet(uuid.New(), "10000.00")
	tx := &mockTx{}

	m.wallets.EXPECT().Debit(gomock.Any(), tx, w.ID, dec("100.00")).
		Return(domain.BalanceChange{WalletID: w.ID, Before: dec("10000.00"), After: dec("9900.00")}, nil)
	m.wallets.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
	m.txns.EXPECT().SumDebits(gomock.Any(), tx, w.ID, domain.SpendKinds(), domain.DayStart(fixedNow)).
		Return(dec("0"), nil)
	m.txns.EXPECT().SumDebits(gomock.Any(), tx, w.ID, domain.SpendKinds(), domain.MonthStart(fixedNow)).
		Return(dec("49950.00"), nil)

	_, err := m.store.Debit(context.Background(), tx, w.ID, dec("100.00"))
	require.Error(t, err)
	assertAppError(t, err, "WAL_003")
	assert.Contains(t, err.Error(), "Monthly")
}

func TestWalletStore_Debit_ExactlyAtLimitPasses(t *testing.T) {
	m := newCoreMocks(t)
	w := activeWallet(uuid.New(), "10000.00")

	m.wallets.EXPECT().Debit(gomock.Any(), gomock.Any(), w.ID, dec("500.00")).
		Return(domain.BalanceChange{WalletID: w.ID, Before: dec("10000.00"), After: dec("9500.00")}, nil)
	m.wallets.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
	m.txns.EXPECT().SumDebits(gomock.Any(), gomock.Any(), w.ID, gomock.Any(), gomock.Any()).
		Return(dec("4500.00"), nil).Times(2)

	change, err := m.store.Debit(context.Background(), &mockTx{}, w.ID, dec("500.00"))
	require.NoError(t, err)
	assert.Equal(t, "9500", change.After.String())
}

func TestWalletStore_Debit_ZeroLimitIsUncapped(t *testing.T) {
	m := newCoreMocks(t)
	w := activeWallet(uuid.New(), "100000.00")
	w.DailyLimit = decimal.Zero
	w.MonthlyLimit = decimal.Zero

	m.wallets.EXPECT().Debit(gomock.Any(), gomock.Any(), w.ID, dec("90000.00")).
		Return(domain.BalanceChange{WalletID: w.ID, Before: dec("100000.00"), After: dec("10000.00")}, nil)
	m.wallets.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)

	_, err := m.store.Debit(context.Background(), &mockTx{}, w.ID, dec("90000.00"))
	assert.NoError(t, err)
}

func TestWalletStore_Reverse_SkipsLimits(t *testing.T) {
	m := newCoreMocks(t)
	walletID := uuid.New()

	m.wallets.EXPECT().Debit(gomock.Any(), gomock.Any(), walletID, dec("490.00")).
		Return(domain.BalanceChange{WalletID: walletID, Before: dec("490.00"), After: dec("0")}, nil)

	change, err := m.store.Reverse(context.Background(), &mockTx{}, walletID, dec("490.00"))
	require.NoError(t, err)
	assert.True(t, change.After.IsZero())
}
