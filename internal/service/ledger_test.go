package service

import (
	"context"
	"errors"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLedger_Append_RejectsBrokenArithmetic(t *testing.T) {
	m := newCoreMocks(t)
	walletID := uuid.New()

	txn := &domain.Transaction{
		ID:            uuid.New(),
		Kind:          domain.KindMerchantDebit,
		Direction:     domain.DirectionDebit,
		Amount:        dec("10.00"),
		Fee:           dec("0"),
		NetAmount:     dec("10.00"),
		FromWalletID:  &walletID,
		BalanceBefore: dec("100.00"),
		BalanceAfter:  dec("95.00"),
		Status:        domain.TransactionStatusCompleted,
	}

	err := m.ledger.Append(context.Background(), &mockTx{}, txn)
	assertAppError(t, err, "SYS_001")
}

func TestLedger_Append_Stores(t *testing.T) {
	m := newCoreMocks(t)
	walletID := uuid.New()
	tx := &mockTx{}

	txn := &domain.Transaction{
		ID:            uuid.New(),
		Kind:          domain.KindMerchantCredit,
		Direction:     domain.DirectionCredit,
		Amount:        dec("10.00"),
		Fee:           dec("0"),
		NetAmount:     dec("10.00"),
		ToWalletID:    &walletID,
		BalanceBefore: dec("100.00"),
		BalanceAfter:  dec("110.00"),
		Status:        domain.TransactionStatusCompleted,
	}
	m.txns.EXPECT().Append(gomock.Any(), tx, txn).Return(nil)

	assert.NoError(t, m.ledger.Append(context.Background(), tx, txn))
}

func TestLedger_Query_Defaults(t *testing.T) {
	m := newCoreMocks(t)

	m.txns.EXPECT().Query(gomock.Any(), ports.TransactionFilter{Page: 1, PageSize: 20}).
		Return(nil, int64(0), nil)

	page, err := m.ledger.Query(context.Background(), admin(), ports.LedgerQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}

func TestLedger_Query_ClampsPageSize(t *testing.T) {
	m := newCoreMocks(t)

	m.txns.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f ports.TransactionFilter) ([]domain.Transaction, int64, error) {
			assert.Equal(t, 100, f.PageSize)
			assert.Equal(t, 3, f.Page)
			return []domain.Transaction{{ID: uuid.New()}}, 201, nil
		})

	page, err := m.ledger.Query(context.Background(), admin(), ports.LedgerQuery{Page: 3, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(201), page.Total)
	assert.Len(t, page.Items, 1)
}

func TestLedger_Query_MerchantScopedToOwnEntries(t *testing.T) {
	m := newCoreMocks(t)
	actor := merchant()

	m.txns.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f ports.TransactionFilter) ([]domain.Transaction, int64, error) {
			require.NotNil(t, f.MerchantID)
			assert.Equal(t, actor.ID, *f.MerchantID)
			return nil, 0, nil
		})

	_, err := m.ledger.Query(context.Background(), actor, ports.LedgerQuery{})
	require.NoError(t, err)

	other := uuid.New()
	_, err = m.ledger.Query(context.Background(), actor, ports.LedgerQuery{MerchantID: &other})
	assertAppError(t, err, "ACL_001")
}

func TestLedger_Query_Validation(t *testing.T) {
	m := newCoreMocks(t)
	later := fixedNow.Add(1)
	bad := domain.TransactionKind("payout")

	tests := []struct {
		name string
		q    ports.LedgerQuery
	}{
		{"negative page", ports.LedgerQuery{Page: -1}},
		{"negative size", ports.LedgerQuery{PageSize: -5}},
		{"inverted range", ports.LedgerQuery{From: &later, To: &fixedNow}},
		{"unknown kind", ports.LedgerQuery{Kind: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ledger.Query(context.Background(), admin(), tt.q)
			assertAppError(t, err, "VAL_001")
		})
	}
}

func TestLedger_Query_RepoError(t *testing.T) {
	m := newCoreMocks(t)
	m.txns.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, int64(0), errors.New("db down"))

	_, err := m.ledger.Query(context.Background(), admin(), ports.LedgerQuery{})
	assertAppError(t, err, "SYS_001")
}
