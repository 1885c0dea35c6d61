package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStatus represents the state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	WalletStatusFrozen WalletStatus = "frozen"
	WalletStatusClosed WalletStatus = "closed"
)

// Valid reports whether s is a known wallet status.
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusActive, WalletStatusFrozen, WalletStatusClosed:
		return true
	}
	return false
}

// Wallet is a customer's single-currency stored-value account.
// Balance is only ever changed by the store's conditional debit/credit.
type Wallet struct {
	ID                  uuid.UUID       `json:"id"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	CreatedByMerchantID *uuid.UUID      `json:"created_by_merchant_id,omitempty"`
	Balance             decimal.Decimal `json:"balance"`
	Currency            string          `json:"currency"`
	DailyLimit          decimal.Decimal `json:"daily_limit"`
	MonthlyLimit        decimal.Decimal `json:"monthly_limit"`
	Status              WalletStatus    `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsActive returns true if the wallet accepts debits and credits.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// BalanceChange is the before/after snapshot of one balance mutation.
type BalanceChange struct {
	WalletID uuid.UUID
	Before   decimal.Decimal
	After    decimal.Decimal
}

// VerificationTier is the identity-verification level of a customer, as
// reported by the verification subsystem.
type VerificationTier string

const (
	TierUnverified VerificationTier = "unverified"
	TierVerified   VerificationTier = "verified"
	TierEnhanced   VerificationTier = "enhanced"
)

func (t VerificationTier) Valid() bool {
	switch t {
	case TierUnverified, TierVerified, TierEnhanced:
		return true
	}
	return false
}

// SpendLimits caps the completed spending of a wallet per window.
type SpendLimits struct {
	Daily   decimal.Decimal
	Monthly decimal.Decimal
}

// DayStart returns the start of the UTC calendar day containing t.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the start of the UTC calendar month containing t.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
