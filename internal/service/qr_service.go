package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxTokenAttempts = 5

// QRSettings configures QR issuance and redemption.
type QRSettings struct {
	DefaultTTLMinutes int
	MaxTTLMinutes     int
	FlatFee           decimal.Decimal
	PaymentBaseURL    string
}

// QRServiceImpl implements ports.QRService.
type QRServiceImpl struct {
	codes      ports.QRCodeRepository
	wallets    ports.WalletRepository
	store      *WalletStore
	access     *AccessRegistry
	ledger     *Ledger
	transactor ports.DBTransactor
	settings   QRSettings
	newToken   func() (string, error)
	now        func() time.Time
	log        zerolog.Logger
}

// NewQRService creates a new QRServiceImpl.
func NewQRService(
	codes ports.QRCodeRepository,
	wallets ports.WalletRepository,
	store *WalletStore,
	access *AccessRegistry,
	ledger *Ledger,
	transactor ports.DBTransactor,
	settings QRSettings,
	log zerolog.Logger,
) *QRServiceImpl {
	if settings.DefaultTTLMinutes <= 0 {
		settings.DefaultTTLMinutes = domain.DefaultQRTTLMinutes
	}
	if settings.MaxTTLMinutes <= 0 {
		settings.MaxTTLMinutes = domain.MaxQRTTLMinutes
	}
	return &QRServiceImpl{
		codes:      codes,
		wallets:    wallets,
		store:      store,
		access:     access,
		ledger:     ledger,
		transactor: transactor,
		settings:   settings,
		newToken:   randomToken,
		now:        time.Now,
		log:        log,
	}
}

// randomToken returns 32 random bytes, base64url encoded without padding.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create issues a new single-use QR code for a merchant.
func (s *QRServiceImpl) Create(ctx context.Context, req ports.CreateQRRequest) (*ports.QRResult, error) {
	var merchantID uuid.UUID
	switch {
	case req.Actor.IsMerchant():
		merchantID = req.Actor.ID
	case req.Actor.IsAdmin():
		if req.MerchantID == nil || *req.MerchantID == uuid.Nil {
			return nil, apperror.Validation("merchant_id is required when an administrator issues a QR code")
		}
		merchantID = *req.MerchantID
	default:
		return nil, apperror.ErrPermissionDenied(string(domain.CapabilityFull))
	}

	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	ttl := req.TTLMinutes
	if ttl == 0 {
		ttl = s.settings.DefaultTTLMinutes
	}
	if ttl < 1 || ttl > s.settings.MaxTTLMinutes {
		return nil, apperror.Validation(fmt.Sprintf("ttl_minutes must be between 1 and %d", s.settings.MaxTTLMinutes))
	}

	reference := req.Reference
	if reference == "" {
		reference = "QR-" + shortID()
	}

	now := s.now().UTC()
	qr := &domain.QRCode{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   reference,
		Status:      domain.QRStatusActive,
		ExpiresAt:   now.Add(time.Duration(ttl) * time.Minute),
		CreatedAt:   now,
	}

	if err := s.insertWithFreshToken(ctx, qr); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("qr_id", qr.ID.String()).
		Str("merchant_id", merchantID.String()).
		Str("amount", qr.Amount.String()).
		Time("expires_at", qr.ExpiresAt).
		Msg("QR code issued")

	return &ports.QRResult{
		QR:      qr,
		Payload: qr.PayloadJSON(s.settings.PaymentBaseURL),
		Events:  []domain.Event{domain.NewEvent(domain.EventQRCreated, qr.ID, now)},
	}, nil
}

// insertWithFreshToken draws tokens until one is unused and the insert
// succeeds.
func (s *QRServiceImpl) insertWithFreshToken(ctx context.Context, qr *domain.QRCode) error {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return apperror.InternalError(err)
		}
		exists, err := s.codes.ExistsToken(ctx, token)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("check token: %w", err))
		}
		if exists {
			continue
		}

		qr.Token = token
		err = s.codes.Create(ctx, qr)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrDuplicate) {
			return apperror.InternalError(fmt.Errorf("create qr code: %w", err))
		}
		s.log.Warn().Str("qr_id", qr.ID.String()).Msg("QR token collision on insert, retrying")
	}
	return apperror.InternalError(errors.New("could not allocate a unique QR token"))
}

// Get returns the code for token. An active code past its expiry is
// reported as expired.
func (s *QRServiceImpl) Get(ctx context.Context, token string) (*domain.QRCode, error) {
	qr, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if qr.Status == domain.QRStatusActive && !qr.IsValid(s.now()) {
		qr.Status = domain.QRStatusExpired
	}
	return qr, nil
}

// Redeem pays a QR code from the customer's wallet. The amount plus the
// flat fee leave the wallet in one debit, documented by a payment entry
// and a fee entry. Any failure leaves the code active.
func (s *QRServiceImpl) Redeem(ctx context.Context, req ports.RedeemRequest) (*ports.RedeemResult, error) {
	if req.CustomerID == uuid.Nil {
		return nil, apperror.Validation("customer_id is required")
	}

	qr, err := s.byToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := invalidityErr(qr.Invalidity(now)); err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetByCustomerID(ctx, req.CustomerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get customer wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if req.WalletID != nil && *req.WalletID != wallet.ID {
		return nil, apperror.Validation("wallet does not belong to the customer")
	}

	if err := s.access.Require(ctx, req.Actor, req.CustomerID, domain.CapabilityFull); err != nil {
		return nil, err
	}

	fee := s.settings.FlatFee
	paymentID := uuid.New()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	marked, err := s.codes.MarkUsed(ctx, dbTx, ports.QRUse{
		QRID:          qr.ID,
		CustomerID:    req.CustomerID,
		WalletID:      wallet.ID,
		TransactionID: paymentID,
		UsedAt:        now,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark qr used: %w", err))
	}
	if !marked {
		return nil, apperror.ErrStateConflict("QR code is no longer active")
	}

	change, err := s.store.Debit(ctx, dbTx, wallet.ID, qr.Amount.Add(fee))
	if err != nil {
		return nil, err
	}

	merchantID := qr.MerchantID
	afterPayment := change.Before.Sub(qr.Amount)
	payment := &domain.Transaction{
		ID:            paymentID,
		Kind:          domain.KindQRPayment,
		Direction:     domain.DirectionDebit,
		Amount:        qr.Amount,
		Fee:           decimal.Zero,
		NetAmount:     qr.Amount,
		FromWalletID:  &wallet.ID,
		CustomerID:    req.CustomerID,
		MerchantID:    &merchantID,
		BalanceBefore: change.Before,
		BalanceAfter:  afterPayment,
		Status:        domain.TransactionStatusCompleted,
		Reference:     qr.Reference,
		Metadata: map[string]string{
			domain.MetaPaymentMethod: "qr_code",
			domain.MetaQRID:          qr.ID.String(),
			domain.MetaQRToken:       qr.Token,
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if qr.Description != "" {
		payment.Metadata[domain.MetaDescription] = qr.Description
	}
	if err := s.ledger.Append(ctx, dbTx, payment); err != nil {
		return nil, err
	}

	events := []domain.Event{
		domain.NewEvent(domain.EventQRRedeemed, qr.ID, now),
		domain.NewEvent(domain.EventTransactionCreated, payment.ID, now),
	}

	var feeEntry *domain.Transaction
	if fee.IsPositive() {
		feeEntry = &domain.Transaction{
			ID:            uuid.New(),
			Kind:          domain.KindFee,
			Direction:     domain.DirectionDebit,
			Amount:        fee,
			Fee:           decimal.Zero,
			NetAmount:     fee,
			FromWalletID:  &wallet.ID,
			CustomerID:    req.CustomerID,
			MerchantID:    &merchantID,
			BalanceBefore: afterPayment,
			BalanceAfter:  change.After,
			Status:        domain.TransactionStatusCompleted,
			Reference:     qr.Reference,
			Metadata:      map[string]string{domain.MetaPaymentMethod: "qr_code", domain.MetaQRID: qr.ID.String()},
			RelatedID:     &payment.ID,
			CreatedAt:     now,
			CompletedAt:   &now,
		}
		if err := s.ledger.Append(ctx, dbTx, feeEntry); err != nil {
			return nil, err
		}
		events = append(events, domain.NewEvent(domain.EventTransactionCreated, feeEntry.ID, now))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	qr.Status = domain.QRStatusUsed
	qr.UsedAt = &now
	qr.UsedByCustomerID = &req.CustomerID
	qr.UsedByWalletID = &wallet.ID
	qr.TransactionID = &payment.ID

	s.log.Info().
		Str("qr_id", qr.ID.String()).
		Str("tx_id", payment.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", qr.Amount.String()).
		Str("fee", fee.String()).
		Msg("QR code redeemed")

	return &ports.RedeemResult{
		QR:      qr,
		Payment: payment,
		Fee:     feeEntry,
		Balance: change.After,
		Events:  events,
	}, nil
}

// Cancel withdraws an active code. Only the issuing merchant or an admin
// may cancel.
func (s *QRServiceImpl) Cancel(ctx context.Context, actor domain.Principal, id uuid.UUID) (*ports.QRResult, error) {
	qr, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get qr code: %w", err))
	}
	if qr == nil {
		return nil, apperror.ErrNotFound("QR code")
	}
	if !actor.IsAdmin() && !(actor.IsMerchant() && actor.ID == qr.MerchantID) {
		return nil, apperror.New(apperror.KindPermissionDenied, "ACL_001",
			"Only the issuing merchant may cancel this QR code", http.StatusForbidden)
	}
	now := s.now().UTC()
	if err := invalidityErr(qr.Invalidity(now)); err != nil {
		return nil, err
	}

	ok, err := s.codes.Cancel(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel qr code: %w", err))
	}
	if !ok {
		return nil, apperror.ErrStateConflict("QR code is no longer active")
	}
	qr.Status = domain.QRStatusCancelled

	s.log.Info().Str("qr_id", qr.ID.String()).Msg("QR code cancelled")

	return &ports.QRResult{
		QR:      qr,
		Payload: qr.PayloadJSON(s.settings.PaymentBaseURL),
		Events:  []domain.Event{domain.NewEvent(domain.EventQRCancelled, qr.ID, now)},
	}, nil
}

// ExpireStale marks lapsed active codes as expired. Redemption checks
// expiry itself, so this is bookkeeping only.
func (s *QRServiceImpl) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.codes.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("expire stale qr codes: %w", err))
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("expired stale QR codes")
	}
	return n, nil
}

func (s *QRServiceImpl) byToken(ctx context.Context, token string) (*domain.QRCode, error) {
	if token == "" {
		return nil, apperror.Validation("token is required")
	}
	qr, err := s.codes.GetByToken(ctx, token)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get qr code: %w", err))
	}
	if qr == nil {
		return nil, apperror.ErrNotFound("QR code")
	}
	return qr, nil
}

func invalidityErr(reason string) error {
	switch reason {
	case "":
		return nil
	case domain.QRReasonExpired:
		return apperror.ErrQRExpired()
	case domain.QRReasonAlreadyUsed:
		return apperror.ErrQRAlreadyUsed()
	case domain.QRReasonCancelled:
		return apperror.ErrQRCancelled()
	}
	return apperror.ErrStateConflict(reason)
}
