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
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LimitPolicy sizes new wallets' spend limits from the customer's
// verification tier.
type LimitPolicy struct {
	Currency    string
	DefaultTier domain.VerificationTier
	Tiers       map[domain.VerificationTier]domain.SpendLimits
}

func (p LimitPolicy) limitsFor(tier domain.VerificationTier) domain.SpendLimits {
	if l, ok := p.Tiers[tier]; ok {
		return l
	}
	return p.Tiers[p.DefaultTier]
}

// WalletStore owns every balance mutation. Each mutation is one
// conditional update in the caller's transaction.
type WalletStore struct {
	wallets  ports.WalletRepository
	txns     ports.TransactionRepository
	verifier ports.VerificationProvider
	policy   LimitPolicy
	now      func() time.Time
	log      zerolog.Logger
}

// NewWalletStore creates a WalletStore.
func NewWalletStore(
	wallets ports.WalletRepository,
	txns ports.TransactionRepository,
	verifier ports.VerificationProvider,
	policy LimitPolicy,
	log zerolog.Logger,
) *WalletStore {
	return &WalletStore{
		wallets:  wallets,
		txns:     txns,
		verifier: verifier,
		policy:   policy,
		now:      time.Now,
		log:      log,
	}
}

// CreateOrGet returns the customer's wallet, creating it when absent.
func (s *WalletStore) CreateOrGet(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, creator *uuid.UUID) (*domain.Wallet, bool, error) {
	if customerID == uuid.Nil {
		return nil, false, apperror.Validation("customer_id is required")
	}

	tier := s.policy.DefaultTier
	if s.verifier != nil {
		t, err := s.verifier.Tier(ctx, customerID)
		if err != nil {
			s.log.Warn().Err(err).Str("customer_id", customerID.String()).Msg("verification tier lookup failed, using default tier")
		} else {
			tier = t
		}
	}
	limits := s.policy.limitsFor(tier)

	now := s.now().UTC()
	w := &domain.Wallet{
		ID:                  uuid.New(),
		CustomerID:          customerID,
		CreatedByMerchantID: creator,
		Balance:             decimal.Zero,
		Currency:            s.policy.Currency,
		DailyLimit:          limits.Daily,
		MonthlyLimit:        limits.Monthly,
		Status:              domain.WalletStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	stored, created, err := s.wallets.CreateIfAbsent(ctx, tx, w)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	if created {
		s.log.Info().
			Str("wallet_id", stored.ID.String()).
			Str("customer_id", customerID.String()).
			Str("tier", string(tier)).
			Msg("wallet created")
	}
	return stored, created, nil
}

// Debit subtracts amount and enforces the wallet's daily and monthly spend
// limits while the row lock is held. On a limit breach the caller must roll
// back.
func (s *WalletStore) Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	change, err := s.debit(ctx, tx, walletID, amount)
	if err != nil {
		return change, err
	}
	if err := s.checkLimits(ctx, tx, walletID, amount); err != nil {
		return domain.BalanceChange{}, err
	}
	return change, nil
}

// Reverse subtracts amount without consulting spend limits. Only
// compensating refunds use it.
func (s *WalletStore) Reverse(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	return s.debit(ctx, tx, walletID, amount)
}

// Credit adds amount to an active wallet.
func (s *WalletStore) Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	if !amount.IsPositive() {
		return domain.BalanceChange{}, apperror.ErrInvalidAmount()
	}
	change, err := s.wallets.Credit(ctx, tx, walletID, amount)
	if err != nil {
		return domain.BalanceChange{}, mapWalletErr(err, "credit")
	}
	return change, nil
}

func (s *WalletStore) debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error) {
	if !amount.IsPositive() {
		return domain.BalanceChange{}, apperror.ErrInvalidAmount()
	}
	change, err := s.wallets.Debit(ctx, tx, walletID, amount)
	if err != nil {
		return domain.BalanceChange{}, mapWalletErr(err, "debit")
	}
	return change, nil
}

// checkLimits compares already-completed spending in the current UTC day
// and month plus amount against the wallet's limits. A zero limit means
// the window is uncapped.
func (s *WalletStore) checkLimits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) error {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load wallet limits: %w", err))
	}
	if w == nil {
		return apperror.ErrNotFound("wallet")
	}

	now := s.now()
	windows := []struct {
		name  string
		limit decimal.Decimal
		since time.Time
	}{
		{"Daily", w.DailyLimit, domain.DayStart(now)},
		{"Monthly", w.MonthlyLimit, domain.MonthStart(now)},
	}
	for _, win := range windows {
		if !win.limit.IsPositive() {
			continue
		}
		spent, err := s.txns.SumDebits(ctx, tx, walletID, domain.SpendKinds(), win.since)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("sum %s spending: %w", win.name, err))
		}
		if spent.Add(amount).GreaterThan(win.limit) {
			s.log.Info().
				Str("wallet_id", walletID.String()).
				Str("window", win.name).
				Str("spent", spent.String()).
				Str("amount", amount.String()).
				Msg("spend limit exceeded")
			return apperror.ErrLimitExceeded(win.name)
		}
	}
	return nil
}

func mapWalletErr(err error, op string) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return apperror.ErrNotFound("wallet")
	case errors.Is(err, ports.ErrWalletInactive):
		return apperror.ErrWalletInactive()
	case errors.Is(err, ports.ErrInsufficientBalance):
		return apperror.ErrInsufficientFunds()
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.InternalError(fmt.Errorf("wallet %s: %w", op, err))
}
