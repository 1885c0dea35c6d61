package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of balance-affecting event.
type TransactionKind string

const (
	KindQRPayment      TransactionKind = "qr_payment"
	KindEFTTopup       TransactionKind = "eft_topup"
	KindMerchantDebit  TransactionKind = "merchant_debit"
	KindMerchantCredit TransactionKind = "merchant_credit"
	KindRefund         TransactionKind = "refund"
	KindFee            TransactionKind = "fee"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindQRPayment, KindEFTTopup, KindMerchantDebit, KindMerchantCredit, KindRefund, KindFee:
		return true
	}
	return false
}

// CountsTowardSpend reports whether debits of this kind consume the
// wallet's daily and monthly spend limits.
func (k TransactionKind) CountsTowardSpend() bool {
	return k == KindQRPayment || k == KindFee || k == KindMerchantDebit
}

// SpendKinds lists the kinds counted against spend limits.
func SpendKinds() []TransactionKind {
	return []TransactionKind{KindQRPayment, KindFee, KindMerchantDebit}
}

// Direction is the side of the wallet the entry affects.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// TransactionStatus represents the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// Metadata keys.
const (
	MetaPaymentMethod     = "payment_method"
	MetaQRToken           = "qr_token"
	MetaQRID              = "qr_id"
	MetaBankCode          = "bank_code"
	MetaExternalReference = "external_reference"
	MetaBankTransactionID = "bank_transaction_id"
	MetaDescription       = "description"
	MetaReason            = "reason"
)

// Transaction is an immutable ledger entry documenting one balance change.
// NetAmount = Amount - Fee and BalanceAfter = BalanceBefore -/+ NetAmount.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Kind          TransactionKind   `json:"kind"`
	Direction     Direction         `json:"direction"`
	Amount        decimal.Decimal   `json:"amount"`
	Fee           decimal.Decimal   `json:"fee"`
	NetAmount     decimal.Decimal   `json:"net_amount"`
	FromWalletID  *uuid.UUID        `json:"from_wallet_id,omitempty"`
	ToWalletID    *uuid.UUID        `json:"to_wallet_id,omitempty"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	MerchantID    *uuid.UUID        `json:"merchant_id,omitempty"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	Status        TransactionStatus `json:"status"`
	Reference     string            `json:"reference"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RelatedID     *uuid.UUID        `json:"related_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// WalletID returns the wallet whose balance the entry documents.
func (t *Transaction) WalletID() uuid.UUID {
	if t.Direction == DirectionDebit && t.FromWalletID != nil {
		return *t.FromWalletID
	}
	if t.ToWalletID != nil {
		return *t.ToWalletID
	}
	return uuid.Nil
}

// SignedNet is the net amount as seen by the wallet: negative for debits.
func (t *Transaction) SignedNet() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.NetAmount.Neg()
	}
	return t.NetAmount
}

// Validate checks the arithmetic invariants of the entry.
func (t *Transaction) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unknown transaction kind %q", t.Kind)
	}
	if t.Amount.IsNegative() || t.Fee.IsNegative() {
		return errors.New("amount and fee must not be negative")
	}
	if !t.NetAmount.Equal(t.Amount.Sub(t.Fee)) {
		return fmt.Errorf("net amount %s != amount %s - fee %s", t.NetAmount, t.Amount, t.Fee)
	}
	switch t.Direction {
	case DirectionDebit:
		if t.FromWalletID == nil {
			return errors.New("debit entry without source wallet")
		}
	case DirectionCredit:
		if t.ToWalletID == nil {
			return errors.New("credit entry without destination wallet")
		}
	default:
		return fmt.Errorf("unknown direction %q", t.Direction)
	}
	if !t.BalanceAfter.Equal(t.BalanceBefore.Add(t.SignedNet())) {
		return fmt.Errorf("balance snapshot %s -> %s does not match net %s", t.BalanceBefore, t.BalanceAfter, t.SignedNet())
	}
	if t.BalanceAfter.IsNegative() {
		return errors.New("balance after must not be negative")
	}
	return nil
}
