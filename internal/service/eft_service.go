package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EFTSettings configures bank submission and webhook handling.
type EFTSettings struct {
	SubmitTimeout time.Duration
	MaxRetries    int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	DedupeTTL     time.Duration
}

// pendingNote explains a 202 response after retries were exhausted.
const pendingNote = "Bank did not acknowledge the submission; the payment stays processing until the bank reports an outcome or an administrator cancels it"

// EFTServiceImpl implements ports.EFTService.
type EFTServiceImpl struct {
	payments   ports.EFTPaymentRepository
	wallets    ports.WalletRepository
	store      *WalletStore
	access     *AccessRegistry
	ledger     *Ledger
	transactor ports.DBTransactor
	banks      []domain.BankConfig
	adapters   ports.BankRegistry
	enc        ports.EncryptionService
	dedupe     ports.WebhookDedupe
	settings   EFTSettings
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	log        zerolog.Logger
}

// NewEFTService creates a new EFTServiceImpl. dedupe may be nil, in which
// case every webhook goes to the database.
func NewEFTService(
	payments ports.EFTPaymentRepository,
	wallets ports.WalletRepository,
	store *WalletStore,
	access *AccessRegistry,
	ledger *Ledger,
	transactor ports.DBTransactor,
	banks []domain.BankConfig,
	adapters ports.BankRegistry,
	enc ports.EncryptionService,
	dedupe ports.WebhookDedupe,
	settings EFTSettings,
	log zerolog.Logger,
) *EFTServiceImpl {
	if settings.SubmitTimeout <= 0 {
		settings.SubmitTimeout = 30 * time.Second
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	if settings.DedupeTTL <= 0 {
		settings.DedupeTTL = 24 * time.Hour
	}
	return &EFTServiceImpl{
		payments:   payments,
		wallets:    wallets,
		store:      store,
		access:     access,
		ledger:     ledger,
		transactor: transactor,
		banks:      banks,
		adapters:   adapters,
		enc:        enc,
		dedupe:     dedupe,
		settings:   settings,
		now:        time.Now,
		sleep:      sleepCtx,
		log:        log,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Banks lists the supported banks in configuration order.
func (s *EFTServiceImpl) Banks() []domain.BankConfig {
	out := make([]domain.BankConfig, len(s.banks))
	copy(out, s.banks)
	return out
}

func (s *EFTServiceImpl) bank(code string) (domain.BankConfig, bool) {
	for _, b := range s.banks {
		if b.Code == code {
			return b, true
		}
	}
	return domain.BankConfig{}, false
}

// Initiate records a top-up and submits it to the bank. The wallet is not
// credited here; that happens when the bank confirms via webhook.
func (s *EFTServiceImpl) Initiate(ctx context.Context, req ports.InitiateEFTRequest) (*ports.EFTResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	bank, ok := s.bank(req.BankCode)
	if !ok {
		return nil, apperror.ErrUnsupportedBank(req.BankCode)
	}
	if !bank.AcceptsAmount(req.Amount) {
		return nil, apperror.ErrAmountOutOfRange(bank.MinAmount.StringFixed(2), bank.MaxAmount.StringFixed(2))
	}
	if req.AccountNumber == "" {
		return nil, apperror.Validation("account_number is required")
	}
	adapter, ok := s.adapters.Adapter(bank.Code)
	if !ok {
		return nil, apperror.InternalError(fmt.Errorf("no adapter registered for bank %q", bank.Code))
	}

	wallet, err := s.wallets.GetByID(ctx, req.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.CustomerID != req.CustomerID {
		return nil, apperror.Validation("wallet does not belong to the customer")
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletInactive()
	}
	if err := s.access.Require(ctx, req.Actor, req.CustomerID, domain.CapabilityCreditOnly); err != nil {
		return nil, err
	}

	accountEnc, err := s.enc.Encrypt(req.AccountNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt account number: %w", err))
	}

	now := s.now().UTC()
	reference := req.Reference
	if reference == "" {
		reference = "TOPUP-" + now.Format("20060102-150405")
	}

	payment := &domain.EFTPayment{
		ID:               uuid.New(),
		CustomerID:       req.CustomerID,
		WalletID:         wallet.ID,
		Amount:           req.Amount,
		Fee:              decimal.Zero,
		BankCode:         bank.Code,
		AccountNumber:    req.AccountNumber,
		AccountNumberEnc: accountEnc,
		Reference:        reference,
		Status:           domain.EFTStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Actor.IsMerchant() {
		initiator := req.Actor.ID
		payment.InitiatedBy = &initiator
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create eft payment: %w", err))
	}

	s.log.Info().
		Str("eft_id", payment.ID.String()).
		Str("bank", bank.Code).
		Str("amount", req.Amount.String()).
		Msg("EFT payment created")

	ack, submitErr := s.submit(ctx, adapter, ports.BankSubmission{
		PaymentID:     payment.ID,
		Reference:     reference,
		BankCode:      bank.Code,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
	})

	switch {
	case submitErr == nil:
		ok, err := s.transition(ctx, payment.ID, domain.EFTStatusPending, domain.EFTStatusProcessing, ports.EFTUpdate{
			ExternalReference: &ack.ExternalReference,
			ResponseData:      ack.Raw,
		})
		if err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return nil, apperror.ErrStateConflict("external reference already belongs to another payment")
			}
			return nil, err
		}
		if !ok {
			return nil, apperror.ErrStateConflict("payment is no longer pending")
		}
		payment.Status = domain.EFTStatusProcessing
		payment.ExternalReference = &ack.ExternalReference
		payment.ResponseData = ack.Raw

		s.log.Info().
			Str("eft_id", payment.ID.String()).
			Str("external_reference", ack.ExternalReference).
			Msg("EFT payment acknowledged by bank")

		return &ports.EFTResult{
			Payment: s.masked(payment),
			Events:  []domain.Event{domain.NewEvent(domain.EventEFTInitiated, payment.ID, now)},
		}, nil

	case errors.Is(submitErr, ports.ErrBankRejected):
		reason := submitErr.Error()
		if _, err := s.transition(ctx, payment.ID, domain.EFTStatusPending, domain.EFTStatusFailed, ports.EFTUpdate{
			FailureReason: &reason,
		}); err != nil {
			s.log.Error().Err(err).Str("eft_id", payment.ID.String()).Msg("failed to record bank rejection")
		}
		s.log.Warn().Err(submitErr).Str("eft_id", payment.ID.String()).Msg("EFT payment rejected by bank")
		return nil, apperror.ErrBankRejected(submitErr)

	default:
		if _, err := s.transition(ctx, payment.ID, domain.EFTStatusPending, domain.EFTStatusProcessing, ports.EFTUpdate{}); err != nil {
			return nil, err
		}
		payment.Status = domain.EFTStatusProcessing

		s.log.Warn().Err(submitErr).Str("eft_id", payment.ID.String()).Msg("bank submission retries exhausted, outcome pending")

		return &ports.EFTResult{
			Payment: s.masked(payment),
			Pending: true,
			Note:    pendingNote,
			Events:  []domain.Event{domain.NewEvent(domain.EventEFTInitiated, payment.ID, now)},
		}, nil
	}
}

// submit calls the bank with a per-attempt timeout, retrying transient
// failures with capped exponential backoff.
func (s *EFTServiceImpl) submit(ctx context.Context, adapter ports.BankAdapter, sub ports.BankSubmission) (*ports.BankAck, error) {
	var lastErr error
	for attempt := 0; attempt <= s.settings.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.backoff(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", ports.ErrBankUnavailable, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.settings.SubmitTimeout)
		ack, err := adapter.Submit(attemptCtx, sub)
		cancel()
		if err == nil {
			return ack, nil
		}
		if errors.Is(err, ports.ErrBankRejected) {
			return nil, err
		}
		lastErr = err
		s.log.Warn().Err(err).
			Str("eft_id", sub.PaymentID.String()).
			Int("attempt", attempt+1).
			Msg("bank submission failed")
	}
	return nil, lastErr
}

func (s *EFTServiceImpl) backoff(retry int) time.Duration {
	d := s.settings.BaseBackoff << retry
	if s.settings.MaxBackoff > 0 && (d > s.settings.MaxBackoff || d <= 0) {
		d = s.settings.MaxBackoff
	}
	return d
}

// transition applies one state change in its own transaction.
func (s *EFTServiceImpl) transition(ctx context.Context, id uuid.UUID, from, to domain.EFTStatus, upd ports.EFTUpdate) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.payments.Transition(ctx, dbTx, id, from, to, upd)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return false, err
		}
		return false, apperror.InternalError(fmt.Errorf("transition %s -> %s: %w", from, to, err))
	}
	if !ok {
		return false, nil
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return true, nil
}

// HandleWebhook applies a bank's outcome report. Repeated or late reports
// are acknowledged without effect, so a payment is credited at most once.
func (s *EFTServiceImpl) HandleWebhook(ctx context.Context, req ports.WebhookRequest) (*ports.WebhookResult, error) {
	if req.Reference == "" {
		return nil, apperror.Validation("reference is required")
	}

	if s.dedupe != nil {
		status, seen, err := s.dedupe.Resolved(ctx, req.Reference)
		if err != nil {
			s.log.Warn().Err(err).Str("external_reference", req.Reference).Msg("webhook dedupe lookup failed, falling through to DB")
		} else if seen {
			return &ports.WebhookResult{Processed: false, Status: status}, nil
		}
	}

	payment, err := s.payments.GetByExternalReference(ctx, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get eft payment: %w", err))
	}
	if payment == nil {
		s.log.Warn().Str("external_reference", req.Reference).Msg("webhook for unknown payment")
		return nil, apperror.ErrNotFound("payment")
	}
	if payment.IsTerminal() {
		s.markResolved(ctx, req.Reference, payment.Status)
		return &ports.WebhookResult{Processed: false, Status: payment.Status}, nil
	}

	outcome := domain.MapBankOutcome(req.Status)
	if !payment.Status.CanTransition(outcome) {
		return &ports.WebhookResult{Processed: false, Status: payment.Status}, nil
	}

	var result *ports.WebhookResult
	if outcome == domain.EFTStatusCompleted {
		result, err = s.complete(ctx, payment, req)
	} else {
		result, err = s.resolveUnpaid(ctx, payment, outcome, req)
	}
	if err != nil {
		return nil, err
	}
	if result.Processed {
		s.markResolved(ctx, req.Reference, result.Status)
	}
	return result, nil
}

func (s *EFTServiceImpl) complete(ctx context.Context, payment *domain.EFTPayment, req ports.WebhookRequest) (*ports.WebhookResult, error) {
	fee := decimal.Zero
	if req.Fee != nil {
		fee = *req.Fee
	}
	if fee.IsNegative() || !fee.LessThan(payment.Amount) {
		return nil, apperror.Validation("fee must be at least zero and below the payment amount")
	}
	// amounts are stored as NUMERIC(18,2)
	if !fee.Equal(fee.Round(2)) {
		return nil, apperror.Validation("fee must have at most 2 decimal places")
	}
	net := payment.Amount.Sub(fee)
	now := s.now().UTC()
	txnID := uuid.New()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.payments.Transition(ctx, dbTx, payment.ID, domain.EFTStatusProcessing, domain.EFTStatusCompleted, ports.EFTUpdate{
		Fee:           &fee,
		TransactionID: &txnID,
		CompletedAt:   &now,
		ResponseData:  req.Raw,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete eft payment: %w", err))
	}
	if !ok {
		// another delivery of the same outcome won
		return &ports.WebhookResult{Processed: false, Status: domain.EFTStatusCompleted}, nil
	}

	change, err := s.store.Credit(ctx, dbTx, payment.WalletID, net)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		domain.MetaPaymentMethod:     "eft",
		domain.MetaBankCode:          payment.BankCode,
		domain.MetaExternalReference: req.Reference,
	}
	if req.TransactionID != "" {
		metadata[domain.MetaBankTransactionID] = req.TransactionID
	}
	txn := &domain.Transaction{
		ID:            txnID,
		Kind:          domain.KindEFTTopup,
		Direction:     domain.DirectionCredit,
		Amount:        payment.Amount,
		Fee:           fee,
		NetAmount:     net,
		ToWalletID:    &payment.WalletID,
		CustomerID:    payment.CustomerID,
		MerchantID:    payment.InitiatedBy,
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		Status:        domain.TransactionStatusCompleted,
		Reference:     payment.Reference,
		Metadata:      metadata,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if err := s.ledger.Append(ctx, dbTx, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("eft_id", payment.ID.String()).
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", payment.WalletID.String()).
		Str("net_amount", net.String()).
		Msg("EFT payment completed")

	return &ports.WebhookResult{
		Processed: true,
		Status:    domain.EFTStatusCompleted,
		Events: []domain.Event{
			domain.NewEvent(domain.EventEFTCompleted, payment.ID, now),
			domain.NewEvent(domain.EventTransactionCreated, txn.ID, now),
		},
	}, nil
}

func (s *EFTServiceImpl) resolveUnpaid(ctx context.Context, payment *domain.EFTPayment, outcome domain.EFTStatus, req ports.WebhookRequest) (*ports.WebhookResult, error) {
	reason := failureReason(req)
	ok, err := s.transition(ctx, payment.ID, payment.Status, outcome, ports.EFTUpdate{
		FailureReason: &reason,
		ResponseData:  req.Raw,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ports.WebhookResult{Processed: false, Status: outcome}, nil
	}

	s.log.Info().
		Str("eft_id", payment.ID.String()).
		Str("status", string(outcome)).
		Str("reason", reason).
		Msg("EFT payment resolved without credit")

	return &ports.WebhookResult{
		Processed: true,
		Status:    outcome,
		Events:    []domain.Event{domain.NewEvent(domain.EFTEventFor(outcome), payment.ID, s.now())},
	}, nil
}

func failureReason(req ports.WebhookRequest) string {
	switch {
	case req.ErrorCode != "" && req.ErrorMessage != "":
		return req.ErrorCode + ": " + req.ErrorMessage
	case req.ErrorCode != "":
		return req.ErrorCode
	case req.ErrorMessage != "":
		return req.ErrorMessage
	}
	return "bank reported " + req.Status
}

func (s *EFTServiceImpl) markResolved(ctx context.Context, ref string, status domain.EFTStatus) {
	if s.dedupe == nil {
		return
	}
	if err := s.dedupe.MarkResolved(ctx, ref, status, s.settings.DedupeTTL); err != nil {
		s.log.Warn().Err(err).Str("external_reference", ref).Msg("failed to cache webhook outcome")
	}
}

// Get returns a payment to admins and to merchants with view access.
func (s *EFTServiceImpl) Get(ctx context.Context, actor domain.Principal, id uuid.UUID) (*domain.EFTPayment, error) {
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, payment.CustomerID, domain.CapabilityViewOnly); err != nil {
		return nil, err
	}
	return s.masked(payment), nil
}

// Cancel abandons a processing payment. Nothing was credited, so nothing
// is reversed.
func (s *EFTServiceImpl) Cancel(ctx context.Context, actor domain.Principal, id uuid.UUID, reason string) (*ports.EFTResult, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAdminRequired()
	}
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.IsTerminal() {
		return nil, apperror.ErrPaymentTerminal(string(payment.Status))
	}
	if payment.Status != domain.EFTStatusProcessing {
		return nil, apperror.ErrStateConflict("only processing payments can be cancelled")
	}

	if reason == "" {
		reason = "cancelled by administrator"
	}
	ok, err := s.transition(ctx, id, domain.EFTStatusProcessing, domain.EFTStatusCancelled, ports.EFTUpdate{FailureReason: &reason})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrStateConflict("payment is no longer processing")
	}
	payment.Status = domain.EFTStatusCancelled
	payment.FailureReason = &reason
	if payment.ExternalReference != nil {
		s.markResolved(ctx, *payment.ExternalReference, domain.EFTStatusCancelled)
	}

	s.log.Info().Str("eft_id", id.String()).Str("reason", reason).Msg("EFT payment cancelled")

	return &ports.EFTResult{
		Payment: s.masked(payment),
		Events:  []domain.Event{domain.NewEvent(domain.EventEFTCancelled, id, s.now())},
	}, nil
}

// Refund reverses a completed top-up by debiting the net amount that was
// credited. Spend limits do not apply to the reversal.
func (s *EFTServiceImpl) Refund(ctx context.Context, actor domain.Principal, id uuid.UUID, reason string) (*ports.EFTResult, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAdminRequired()
	}
	payment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case domain.EFTStatusCompleted:
	case domain.EFTStatusRefunded:
		return nil, apperror.ErrPaymentTerminal(string(payment.Status))
	default:
		return nil, apperror.ErrStateConflict("only completed payments can be refunded")
	}

	net := payment.NetAmount()
	now := s.now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.payments.Transition(ctx, dbTx, id, domain.EFTStatusCompleted, domain.EFTStatusRefunded, ports.EFTUpdate{})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refund eft payment: %w", err))
	}
	if !ok {
		return nil, apperror.ErrStateConflict("payment is no longer completed")
	}

	change, err := s.store.Reverse(ctx, dbTx, payment.WalletID, net)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{domain.MetaPaymentMethod: "eft", domain.MetaBankCode: payment.BankCode}
	if reason != "" {
		metadata[domain.MetaReason] = reason
	}
	txn := &domain.Transaction{
		ID:            uuid.New(),
		Kind:          domain.KindRefund,
		Direction:     domain.DirectionDebit,
		Amount:        net,
		Fee:           decimal.Zero,
		NetAmount:     net,
		FromWalletID:  &payment.WalletID,
		CustomerID:    payment.CustomerID,
		MerchantID:    payment.InitiatedBy,
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		Status:        domain.TransactionStatusCompleted,
		Reference:     payment.Reference,
		Metadata:      metadata,
		RelatedID:     payment.TransactionID,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if err := s.ledger.Append(ctx, dbTx, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	payment.Status = domain.EFTStatusRefunded

	s.log.Info().
		Str("eft_id", id.String()).
		Str("tx_id", txn.ID.String()).
		Str("amount", net.String()).
		Msg("EFT payment refunded")

	return &ports.EFTResult{
		Payment:     s.masked(payment),
		Transaction: txn,
		Events: []domain.Event{
			domain.NewEvent(domain.EventEFTRefunded, id, now),
			domain.NewEvent(domain.EventTransactionCreated, txn.ID, now),
		},
	}, nil
}

func (s *EFTServiceImpl) load(ctx context.Context, id uuid.UUID) (*domain.EFTPayment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get eft payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	return payment, nil
}

// masked replaces the account number with its masked form for output.
func (s *EFTServiceImpl) masked(p *domain.EFTPayment) *domain.EFTPayment {
	account := p.AccountNumber
	if account == "" && p.AccountNumberEnc != "" {
		plain, err := s.enc.Decrypt(p.AccountNumberEnc)
		if err != nil {
			s.log.Warn().Err(err).Str("eft_id", p.ID.String()).Msg("failed to decrypt account number")
		}
		account = plain
	}
	out := *p
	out.AccountNumber = domain.MaskedAccount(account)
	return &out
}
