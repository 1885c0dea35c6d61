package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	wallets    ports.WalletRepository
	store      *WalletStore
	access     *AccessRegistry
	ledger     *Ledger
	transactor ports.DBTransactor
	now        func() time.Time
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	wallets ports.WalletRepository,
	store *WalletStore,
	access *AccessRegistry,
	ledger *Ledger,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		wallets:    wallets,
		store:      store,
		access:     access,
		ledger:     ledger,
		transactor: transactor,
		now:        time.Now,
		log:        log,
	}
}

// CreateOrGet returns the customer's wallet, creating it on first use. The
// merchant that creates a wallet is granted full access to it.
func (s *WalletServiceImpl) CreateOrGet(ctx context.Context, actor domain.Principal, customerID uuid.UUID) (*ports.WalletResult, error) {
	var creator *uuid.UUID
	if actor.IsMerchant() {
		id := actor.ID
		creator = &id
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, created, err := s.store.CreateOrGet(ctx, dbTx, customerID, creator)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var events []domain.Event
	if created {
		events = append(events, domain.NewEvent(domain.EventWalletCreated, wallet.ID, now))
		if creator != nil {
			grant, inserted, err := s.access.AutoGrantCreator(ctx, dbTx, *creator, customerID)
			if err != nil {
				return nil, err
			}
			if inserted {
				events = append(events, domain.NewEvent(domain.EventAccessGranted, grant.ID, now))
			}
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	capability, err := s.access.Effective(ctx, actor, customerID)
	if err != nil {
		return nil, err
	}
	if !created && !capability.Allows(domain.CapabilityViewOnly) {
		return nil, apperror.ErrPermissionDenied(string(domain.CapabilityViewOnly))
	}

	return &ports.WalletResult{
		Wallet:     wallet,
		Created:    created,
		Capability: capability,
		Events:     events,
	}, nil
}

// Get returns a wallet to callers holding view access.
func (s *WalletServiceImpl) Get(ctx context.Context, actor domain.Principal, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.load(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, wallet.CustomerID, domain.CapabilityViewOnly); err != nil {
		return nil, err
	}
	return wallet, nil
}

// Debit charges a wallet directly on behalf of a merchant with full access.
func (s *WalletServiceImpl) Debit(ctx context.Context, req ports.WalletMutationRequest) (*ports.MutationResult, error) {
	return s.mutate(ctx, req, domain.KindMerchantDebit)
}

// Credit pays into a wallet on behalf of a merchant with credit access.
func (s *WalletServiceImpl) Credit(ctx context.Context, req ports.WalletMutationRequest) (*ports.MutationResult, error) {
	return s.mutate(ctx, req, domain.KindMerchantCredit)
}

func (s *WalletServiceImpl) mutate(ctx context.Context, req ports.WalletMutationRequest, kind domain.TransactionKind) (*ports.MutationResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.load(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}

	required, direction, prefix := domain.CapabilityFull, domain.DirectionDebit, "DEB_"
	if kind == domain.KindMerchantCredit {
		required, direction, prefix = domain.CapabilityCreditOnly, domain.DirectionCredit, "CRD_"
	}
	if err := s.access.Require(ctx, req.Actor, wallet.CustomerID, required); err != nil {
		return nil, err
	}

	reference := req.Reference
	if reference == "" {
		reference = prefix + shortID()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	var change domain.BalanceChange
	if direction == domain.DirectionDebit {
		change, err = s.store.Debit(ctx, dbTx, wallet.ID, req.Amount)
	} else {
		change, err = s.store.Credit(ctx, dbTx, wallet.ID, req.Amount)
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	txn := &domain.Transaction{
		ID:            uuid.New(),
		Kind:          kind,
		Direction:     direction,
		Amount:        req.Amount,
		Fee:           decimal.Zero,
		NetAmount:     req.Amount,
		CustomerID:    wallet.CustomerID,
		BalanceBefore: change.Before,
		BalanceAfter:  change.After,
		Status:        domain.TransactionStatusCompleted,
		Reference:     reference,
		Metadata:      map[string]string{domain.MetaPaymentMethod: "wallet"},
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if direction == domain.DirectionDebit {
		txn.FromWalletID = &wallet.ID
	} else {
		txn.ToWalletID = &wallet.ID
	}
	if req.Actor.IsMerchant() {
		merchantID := req.Actor.ID
		txn.MerchantID = &merchantID
	}
	if req.Description != "" {
		txn.Metadata[domain.MetaDescription] = req.Description
	}

	if err := s.ledger.Append(ctx, dbTx, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("kind", string(kind)).
		Str("amount", req.Amount.String()).
		Msg("wallet mutation applied")

	return &ports.MutationResult{
		Transaction: txn,
		Events:      []domain.Event{domain.NewEvent(domain.EventTransactionCreated, txn.ID, now)},
	}, nil
}

// SetStatus freezes, unfreezes or closes a wallet.
func (s *WalletServiceImpl) SetStatus(ctx context.Context, actor domain.Principal, walletID uuid.UUID, status domain.WalletStatus) (*ports.WalletResult, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAdminRequired()
	}
	if !status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown wallet status %q", status))
	}

	current, err := s.load(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.WalletStatusClosed && status != domain.WalletStatusClosed {
		return nil, apperror.ErrStateConflict("closed wallets cannot be reopened")
	}

	wallet, err := s.wallets.UpdateStatus(ctx, walletID, status)
	if err != nil {
		return nil, mapWalletErr(err, "status update")
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("from", string(current.Status)).
		Str("to", string(status)).
		Msg("wallet status changed")

	return &ports.WalletResult{
		Wallet:     wallet,
		Capability: domain.CapabilityFull,
		Events:     []domain.Event{domain.NewEvent(domain.EventWalletStatus, wallet.ID, s.now())},
	}, nil
}

func (s *WalletServiceImpl) load(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// shortID returns eight upper-case hex characters for generated references.
func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
