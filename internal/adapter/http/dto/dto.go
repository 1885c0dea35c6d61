package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Amounts travel as decimal strings ("50.00") in requests and responses.

// CreateWalletRequest is the request body for create-or-get.
type CreateWalletRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
}

// WalletMutationRequest is the request body for a merchant debit or credit.
type WalletMutationRequest struct {
	Amount      string `json:"amount" binding:"required,decimal_amount"`
	Reference   string `json:"reference,omitempty" binding:"omitempty,max=100,safe_id"`
	Description string `json:"description,omitempty" binding:"max=255"`
}

// WalletStatusRequest is the request body for freeze / unfreeze / close.
type WalletStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active frozen closed"`
}

// WalletResponse is a wallet as returned to callers.
type WalletResponse struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	Balance      string `json:"balance"`
	Currency     string `json:"currency"`
	DailyLimit   string `json:"daily_limit"`
	MonthlyLimit string `json:"monthly_limit"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// CreateWalletResponse adds the create flag and the caller's access level.
type CreateWalletResponse struct {
	Wallet      WalletResponse `json:"wallet"`
	Created     bool           `json:"created"`
	AccessLevel string         `json:"access_level"`
}

// GrantRequest is the request body for an admin grant.
type GrantRequest struct {
	MerchantID string     `json:"merchant_id" binding:"required,uuid"`
	CustomerID string     `json:"customer_id" binding:"required,uuid"`
	Capability string     `json:"capability" binding:"required,capability"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// DeactivateGrantRequest is the request body for revoke and suspend.
type DeactivateGrantRequest struct {
	MerchantID string `json:"merchant_id" binding:"required,uuid"`
	CustomerID string `json:"customer_id" binding:"required,uuid"`
	Reason     string `json:"reason" binding:"max=255"`
}

// GrantResponse is an access grant as returned to callers.
type GrantResponse struct {
	ID                 string  `json:"id"`
	MerchantID         string  `json:"merchant_id"`
	CustomerID         string  `json:"customer_id"`
	Capability         string  `json:"capability"`
	Reason             string  `json:"reason"`
	GrantedBy          *string `json:"granted_by,omitempty"`
	GrantedAt          string  `json:"granted_at"`
	ExpiresAt          *string `json:"expires_at,omitempty"`
	Active             bool    `json:"active"`
	DeactivationReason *string `json:"deactivation_reason,omitempty"`
}

// AccessCheckResponse answers GET /access/check.
type AccessCheckResponse struct {
	MerchantID string `json:"merchant_id"`
	CustomerID string `json:"customer_id"`
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
}

// CreateQRRequest is the request body for issuing a QR code.
type CreateQRRequest struct {
	MerchantID  string `json:"merchant_id,omitempty" binding:"omitempty,uuid"`
	Amount      string `json:"amount" binding:"required,decimal_amount"`
	Description string `json:"description,omitempty" binding:"max=255"`
	Reference   string `json:"reference,omitempty" binding:"omitempty,max=100,safe_id"`
	TTLMinutes  int    `json:"ttl_minutes,omitempty" binding:"omitempty,min=1,max=1440"`
}

// RedeemQRRequest is the request body for paying a QR code.
type RedeemQRRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
	WalletID   string `json:"wallet_id,omitempty" binding:"omitempty,uuid"`
}

// QRResponse is a QR code as returned to callers.
type QRResponse struct {
	ID          string          `json:"id"`
	MerchantID  string          `json:"merchant_id"`
	Token       string          `json:"token"`
	Amount      string          `json:"amount"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference"`
	Status      string          `json:"status"`
	ExpiresAt   string          `json:"expires_at"`
	CreatedAt   string          `json:"created_at"`
	UsedAt      *string         `json:"used_at,omitempty"`
	QRData      json.RawMessage `json:"qr_data,omitempty"`
}

// RedeemResponse is the outcome of a successful redemption.
type RedeemResponse struct {
	QR          QRResponse           `json:"qr"`
	Transaction TransactionResponse  `json:"transaction"`
	Fee         *TransactionResponse `json:"fee_transaction,omitempty"`
	Balance     string               `json:"balance"`
}

// InitiateEFTRequest is the request body for a bank top-up.
type InitiateEFTRequest struct {
	CustomerID    string `json:"customer_id" binding:"required,uuid"`
	WalletID      string `json:"wallet_id" binding:"required,uuid"`
	Amount        string `json:"amount" binding:"required,decimal_amount"`
	BankCode      string `json:"bank_code" binding:"required,bank_code"`
	AccountNumber string `json:"account_number" binding:"required,numeric,min=6,max=20"`
	Reference     string `json:"reference,omitempty" binding:"omitempty,max=100,safe_id"`
}

// ReasonRequest carries an optional administrator reason.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// EFTResponse is an EFT payment as returned to callers. The account
// number is always masked.
type EFTResponse struct {
	ID                string  `json:"id"`
	CustomerID        string  `json:"customer_id"`
	WalletID          string  `json:"wallet_id"`
	Amount            string  `json:"amount"`
	Fee               string  `json:"fee"`
	BankCode          string  `json:"bank_code"`
	AccountNumber     string  `json:"account_number"`
	Reference         string  `json:"reference"`
	ExternalReference *string `json:"external_reference,omitempty"`
	Status            string  `json:"status"`
	FailureReason     *string `json:"failure_reason,omitempty"`
	TransactionID     *string `json:"transaction_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	Note              string  `json:"note,omitempty"`
}

// BankResponse describes one supported bank.
type BankResponse struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	MinAmount string `json:"min_amount"`
	MaxAmount string `json:"max_amount"`
	FeeRate   string `json:"fee_rate"`
}

// WebhookRequest is a bank's payment outcome report.
type WebhookRequest struct {
	Reference     string           `json:"reference" binding:"required,max=100"`
	Status        string           `json:"status" binding:"required,max=32"`
	Fee           *decimal.Decimal `json:"fee,omitempty"`
	Timestamp     *time.Time       `json:"timestamp,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty" binding:"max=100"`
	ErrorCode     string           `json:"error_code,omitempty" binding:"max=64"`
	ErrorMessage  string           `json:"error_message,omitempty" binding:"max=500"`
}

// WebhookResponse is the acknowledgement returned to the bank. Status is
// "success" or "error"; PaymentStatus is the payment's state afterwards.
type WebhookResponse struct {
	Status        string `json:"status"`
	Processed     bool   `json:"processed"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Message       string `json:"message,omitempty"`
}

// TransactionResponse is a ledger entry as returned to callers.
type TransactionResponse struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	Direction     string            `json:"direction"`
	Amount        string            `json:"amount"`
	Fee           string            `json:"fee"`
	NetAmount     string            `json:"net_amount"`
	WalletID      string            `json:"wallet_id"`
	CustomerID    string            `json:"customer_id"`
	MerchantID    *string           `json:"merchant_id,omitempty"`
	BalanceBefore string            `json:"balance_before"`
	BalanceAfter  string            `json:"balance_after"`
	Status        string            `json:"status"`
	Reference     string            `json:"reference"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RelatedID     *string           `json:"related_id,omitempty"`
	CreatedAt     string            `json:"created_at"`
	CompletedAt   *string           `json:"completed_at,omitempty"`
}

// TransactionListResponse wraps a paginated ledger query.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// TokenResponse is returned by the operator token command.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}
