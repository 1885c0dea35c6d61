package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EFTStatus is the lifecycle state of a bank-mediated top-up.
type EFTStatus string

const (
	EFTStatusPending    EFTStatus = "pending"
	EFTStatusProcessing EFTStatus = "processing"
	EFTStatusCompleted  EFTStatus = "completed"
	EFTStatusFailed     EFTStatus = "failed"
	EFTStatusCancelled  EFTStatus = "cancelled"
	EFTStatusRefunded   EFTStatus = "refunded"
)

var eftTransitions = map[EFTStatus][]EFTStatus{
	EFTStatusPending:    {EFTStatusProcessing, EFTStatusFailed},
	EFTStatusProcessing: {EFTStatusCompleted, EFTStatusFailed, EFTStatusCancelled},
	EFTStatusCompleted:  {EFTStatusRefunded},
}

// CanTransition reports whether the state machine allows from -> to.
func (s EFTStatus) CanTransition(to EFTStatus) bool {
	for _, next := range eftTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true once a webhook (or cancellation) has resolved
// the payment. Completed stays terminal even though a refund may follow.
func (s EFTStatus) IsTerminal() bool {
	switch s {
	case EFTStatusCompleted, EFTStatusFailed, EFTStatusCancelled, EFTStatusRefunded:
		return true
	}
	return false
}

// EFTPayment is a bank-mediated top-up of a customer's wallet.
type EFTPayment struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	WalletID          uuid.UUID       `json:"wallet_id"`
	InitiatedBy       *uuid.UUID      `json:"initiated_by,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	BankCode          string          `json:"bank_code"`
	AccountNumber     string          `json:"-"` // plaintext, only in memory
	AccountNumberEnc  string          `json:"-"` // AES-256-GCM at rest
	Reference         string          `json:"reference"`
	ExternalReference *string         `json:"external_reference,omitempty"`
	Status            EFTStatus       `json:"status"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	ResponseData      json.RawMessage `json:"response_data,omitempty"`
	TransactionID     *uuid.UUID      `json:"transaction_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the payment no longer accepts webhook outcomes.
func (p *EFTPayment) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// NetAmount is what the wallet receives once the bank fee is deducted.
func (p *EFTPayment) NetAmount() decimal.Decimal {
	return p.Amount.Sub(p.Fee)
}

// MaskedAccount hides all but the last four digits of an account number.
func MaskedAccount(account string) string {
	if len(account) <= 4 {
		return strings.Repeat("*", len(account))
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}

// MapBankOutcome normalises the status string a bank reports in a webhook.
// Unrecognised outcomes are treated as failures.
func MapBankOutcome(reported string) EFTStatus {
	switch strings.ToLower(strings.TrimSpace(reported)) {
	case "completed", "success", "successful":
		return EFTStatusCompleted
	case "cancelled", "canceled":
		return EFTStatusCancelled
	default:
		return EFTStatusFailed
	}
}
