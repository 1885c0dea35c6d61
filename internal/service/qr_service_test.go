package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type qrTestDeps struct {
	*coreMocks
	svc   *QRServiceImpl
	codes *mocks.MockQRCodeRepository
}

func newTestQRService(t *testing.T, fee string) *qrTestDeps {
	m := newCoreMocks(t)
	codes := mocks.NewMockQRCodeRepository(m.ctrl)
	svc := NewQRService(codes, m.wallets, m.store, m.access, m.ledger, m.transactor, QRSettings{
		FlatFee:        dec(fee),
		PaymentBaseURL: "https://pay.example.com",
	}, zerolog.Nop())
	svc.now = fixedClock
	return &qrTestDeps{coreMocks: m, svc: svc, codes: codes}
}

func activeQR(merchantID uuid.UUID, amount string) *domain.QRCode {
	return &domain.QRCode{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Amount:     dec(amount),
		Reference:  "QR-1A2B3C4D",
		Token:      "tok_abc",
		Status:     domain.QRStatusActive,
		ExpiresAt:  fixedNow.Add(10 * time.Minute),
		CreatedAt:  fixedNow.Add(-5 * time.Minute),
	}
}

func TestQRService_Create_MerchantIssuesForSelf(t *testing.T) {
	d := newTestQRService(t, "2.00")
	actor := merchant()
	other := uuid.New()

	d.codes.EXPECT().ExistsToken(gomock.Any(), gomock.Any()).Return(false, nil)
	d.codes.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Create(context.Background(), ports.CreateQRRequest{
		Actor: actor, MerchantID: &other, Amount: dec("150.00"), Description: "coffee",
	})
	require.NoError(t, err)
	assert.Equal(t, actor.ID, res.QR.MerchantID)
	assert.Equal(t, fixedNow.Add(15*time.Minute), res.QR.ExpiresAt)
	assert.Len(t, res.QR.Token, 43)
	assert.Regexp(t, `^QR-[0-9A-F]{8}$`, res.QR.Reference)
	assert.Contains(t, res.Payload, res.QR.Token)
	assert.Equal(t, domain.EventQRCreated, res.Events[0].Type)
}

func TestQRService_Create_TokenCollisionRetries(t *testing.T) {
	d := newTestQRService(t, "0")
	tokens := []string{"taken", "raced", "fresh"}
	d.svc.newToken = func() (string, error) {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok, nil
	}

	d.codes.EXPECT().ExistsToken(gomock.Any(), "taken").Return(true, nil)
	d.codes.EXPECT().ExistsToken(gomock.Any(), "raced").Return(false, nil)
	d.codes.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ports.ErrDuplicate)
	d.codes.EXPECT().ExistsToken(gomock.Any(), "fresh").Return(false, nil)
	d.codes.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Create(context.Background(), ports.CreateQRRequest{Actor: merchant(), Amount: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.QR.Token)
}

func TestQRService_Create_Validation(t *testing.T) {
	d := newTestQRService(t, "0")

	_, err := d.svc.Create(context.Background(), ports.CreateQRRequest{Actor: merchant(), Amount: dec("0")})
	assertAppError(t, err, "VAL_002")

	_, err = d.svc.Create(context.Background(), ports.CreateQRRequest{Actor: merchant(), Amount: dec("5"), TTLMinutes: 1441})
	assertAppError(t, err, "VAL_001")

	_, err = d.svc.Create(context.Background(), ports.CreateQRRequest{Actor: merchant(), Amount: dec("5"), TTLMinutes: -1})
	assertAppError(t, err, "VAL_001")

	_, err = d.svc.Create(context.Background(), ports.CreateQRRequest{Actor: admin(), Amount: dec("5")})
	assertAppError(t, err, "VAL_001")
}

func TestQRService_Get_ReportsLapsedAsExpired(t *testing.T) {
	d := newTestQRService(t, "0")
	qr := activeQR(uuid.New(), "10")
	qr.ExpiresAt = fixedNow.Add(-time.Second)
	d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil)

	got, err := d.svc.Get(context.Background(), qr.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.QRStatusExpired, got.Status)
}

func TestQRService_Redeem_Success(t *testing.T) {
	d := newTestQRService(t, "2.00")
	actor := merchant()
	customerID := uuid.New()
	w := activeWallet(customerID, "1000.00")
	qr := activeQR(actor.ID, "150.00")

	d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil)
	d.wallets.EXPECT().GetByCustomerID(gomock.Any(), customerID).Return(w, nil)
	d.grants.EXPECT().GetActive(gomock.Any(), actor.ID, customerID).
		Return(grantOf(actor.ID, customerID, domain.CapabilityFull), nil)
	tx := d.expectTx()
	d.codes.EXPECT().MarkUsed(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, use ports.QRUse) (bool, error) {
			assert.Equal(t, qr.ID, use.QRID)
			assert.Equal(t, w.ID, use.WalletID)
			return true, nil
		})
	d.wallets.EXPECT().Debit(gomock.Any(), tx, w.ID, dec("152.00")).
		Return(domain.BalanceChange{WalletID: w.ID, Before: dec("1000.00"), After: dec("848.00")}, nil)
	d.expectWithinLimits(w)
	d.txns.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil).Times(2)

	res, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: actor, Token: qr.Token, CustomerID: customerID})
	require.NoError(t, err)

	assert.Equal(t, domain.QRStatusUsed, res.QR.Status)
	assert.Equal(t, "848", res.Balance.String())

	p := res.Payment
	assert.Equal(t, domain.KindQRPayment, p.Kind)
	assert.Equal(t, "1000", p.BalanceBefore.String())
	assert.Equal(t, "850", p.BalanceAfter.String())
	assert.Equal(t, qr.ID.String(), p.Metadata[domain.MetaQRID])
	assert.Equal(t, p.ID, *res.QR.TransactionID)

	require.NotNil(t, res.Fee)
	assert.Equal(t, domain.KindFee, res.Fee.Kind)
	assert.Equal(t, "850", res.Fee.BalanceBefore.String())
	assert.Equal(t, "848", res.Fee.BalanceAfter.String())
	assert.Equal(t, &p.ID, res.Fee.RelatedID)
	assert.NoError(t, res.Fee.Validate())

	assert.Len(t, res.Events, 3)
}

func TestQRService_Redeem_NoFeeEntryWhenFeeZero(t *testing.T) {
	d := newTestQRService(t, "0")
	customerID := uuid.New()
	w := activeWallet(customerID, "100.00")
	qr := activeQR(uuid.New(), "40.00")

	d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil)
	d.wallets.EXPECT().GetByCustomerID(gomock.Any(), customerID).Return(w, nil)
	tx := d.expectTx()
	d.codes.EXPECT().MarkUsed(gomock.Any(), tx, gomock.Any()).Return(true, nil)
	d.wallets.EXPECT().Debit(gomock.Any(), tx, w.ID, dec("40.00")).
		Return(domain.BalanceChange{WalletID: w.ID, Before: dec("100.00"), After: dec("60.00")}, nil)
	d.expectWithinLimits(w)
	d.txns.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil).Times(1)

	res, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: admin(), Token: qr.Token, CustomerID: customerID})
	require.NoError(t, err)
	assert.Nil(t, res.Fee)
	assert.Len(t, res.Events, 2)
}

func TestQRService_Redeem_InvalidCodes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *domain.QRCode)
		code   string
	}{
		{"used", func(q *domain.QRCode) { q.Status = domain.QRStatusUsed }, "QR_002"},
		{"cancelled", func(q *domain.QRCode) { q.Status = domain.QRStatusCancelled }, "QR_003"},
		{"lapsed", func(q *domain.QRCode) { q.ExpiresAt = fixedNow }, "QR_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestQRService(t, "0")
			qr := activeQR(uuid.New(), "10")
			tt.mutate(qr)
			d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil)

			_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: admin(), Token: qr.Token, CustomerID: uuid.New()})
			assertAppError(t, err, tt.code)
		})
	}
}

func TestQRService_Redeem_UnknownToken(t *testing.T) {
	d := newTestQRService(t, "0")
	d.codes.EXPECT().GetByToken(gomock.Any(), "nope").Return(nil, nil)

	_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: admin(), Token: "nope", CustomerID: uuid.New()})
	assertAppError(t, err, "NF_001")
}

func TestQRService_Redeem_LostRace(t *testing.T) {
	d := newTestQRService(t, "0")
	customerID := uuid.New()
	qr := activeQR(uuid.New(), "10")

	d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil)
	d.wallets.EXPECT().GetByCustomerID(gomock.Any(), customerID).Return(activeWallet(customerID, "100"), nil)
	d.expectTx()
	d.codes.EXPECT().MarkUsed(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

	_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: admin(), Token: qr.Token, CustomerID: customerID})
	assertAppError(t, err, "STATE_001")
}

func TestQRService_Redeem_InsufficientFundsLeavesCodeToRollback(t *testing.T) {
	d := newTestQRService(t, "1.00")
	customerID := uuid.New()
	w := activeWallet(customerID, "5")
	qr := activeQR(uuid.New(), "10")

	d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil)
	d.wallets.EXPECT().GetByCustomerID(gomock.Any(), customerID).Return(w, nil)
	d.expectTx()
	d.codes.EXPECT().MarkUsed(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	d.wallets.EXPECT().Debit(gomock.Any(), gomock.Any(), w.ID, dec("11.00")).
		Return(domain.BalanceChange{}, ports.ErrInsufficientBalance)

	_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: admin(), Token: qr.Token, CustomerID: customerID})
	assertAppError(t, err, "WAL_001")
}

func TestQRService_Redeem_WrongWalletOrNoAccess(t *testing.T) {
	d := newTestQRService(t, "0")
	actor := merchant()
	customerID := uuid.New()
	w := activeWallet(customerID, "100")
	qr := activeQR(actor.ID, "10")
	foreign := uuid.New()

	d.codes.EXPECT().GetByToken(gomock.Any(), qr.Token).Return(qr, nil).Times(2)
	d.wallets.EXPECT().GetByCustomerID(gomock.Any(), customerID).Return(w, nil).Times(2)

	_, err := d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: actor, Token: qr.Token, CustomerID: customerID, WalletID: &foreign})
	assertAppError(t, err, "VAL_001")

	d.grants.EXPECT().GetActive(gomock.Any(), actor.ID, customerID).
		Return(grantOf(actor.ID, customerID, domain.CapabilityCreditOnly), nil)
	_, err = d.svc.Redeem(context.Background(), ports.RedeemRequest{Actor: actor, Token: qr.Token, CustomerID: customerID})
	assertAppError(t, err, "ACL_001")
}

func TestQRService_Cancel(t *testing.T) {
	d := newTestQRService(t, "0")
	issuer := merchant()
	qr := activeQR(issuer.ID, "10")

	d.codes.EXPECT().GetByID(gomock.Any(), qr.ID).Return(qr, nil).Times(2)

	_, err := d.svc.Cancel(context.Background(), merchant(), qr.ID)
	assertAppError(t, err, "ACL_001")

	d.codes.EXPECT().Cancel(gomock.Any(), qr.ID).Return(true, nil)
	res, err := d.svc.Cancel(context.Background(), issuer, qr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QRStatusCancelled, res.QR.Status)
	assert.Equal(t, domain.EventQRCancelled, res.Events[0].Type)
}

func TestQRService_Cancel_AlreadyUsed(t *testing.T) {
	d := newTestQRService(t, "0")
	qr := activeQR(uuid.New(), "10")
	qr.Status = domain.QRStatusUsed
	d.codes.EXPECT().GetByID(gomock.Any(), qr.ID).Return(qr, nil)

	_, err := d.svc.Cancel(context.Background(), admin(), qr.ID)
	assertAppError(t, err, "QR_002")
}

func TestQRService_ExpireStale(t *testing.T) {
	d := newTestQRService(t, "0")
	d.codes.EXPECT().ExpireStale(gomock.Any(), fixedNow).Return(int64(3), nil)

	n, err := d.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	d.codes.EXPECT().ExpireStale(gomock.Any(), fixedNow).Return(int64(0), errors.New("db down"))
	_, err = d.svc.ExpireStale(context.Background())
	assertAppError(t, err, "SYS_001")
}
