package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(principal domain.Principal) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject uuid.UUID
	Role    domain.Role
}

// WebhookDedupe remembers external references whose outcome has already
// been applied, so repeated bank webhooks skip the database.
type WebhookDedupe interface {
	Resolved(ctx context.Context, externalRef string) (domain.EFTStatus, bool, error)
	MarkResolved(ctx context.Context, externalRef string, status domain.EFTStatus, ttl time.Duration) error
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// NonceStore remembers webhook delivery IDs so replays are acknowledged
// without being processed twice.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
	// Release forgets a nonce whose delivery failed, so the sender's retry
	// is processed.
	Release(ctx context.Context, scope string, nonce string) error
}

// AuditService records administrative actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// EventPublisher hands events to the notification pipeline. Delivery is
// best effort and never affects the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// VerificationProvider reports a customer's identity-verification tier.
type VerificationProvider interface {
	Tier(ctx context.Context, customerID uuid.UUID) (domain.VerificationTier, error)
}

// --- Bank integration ---

// Bank submission outcomes. Anything wrapping ErrBankUnavailable is retried.
var (
	ErrBankUnavailable = errors.New("bank unavailable")
	ErrBankRejected    = errors.New("bank rejected submission")
)

// BankSubmission is the instruction sent to a bank for one top-up.
type BankSubmission struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	Reference     string          `json:"reference"`
	BankCode      string          `json:"bank_code"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
}

// BankAck is the bank's acknowledgement of a submission.
type BankAck struct {
	ExternalReference string
	Raw               json.RawMessage
}

// BankAdapter submits top-ups to one bank.
type BankAdapter interface {
	Submit(ctx context.Context, sub BankSubmission) (*BankAck, error)
}

// BankRegistry resolves the adapter for a bank code.
type BankRegistry interface {
	Adapter(code string) (BankAdapter, bool)
}

// --- Service Ports (Business Logic) ---

// WalletService exposes wallet lifecycle and direct merchant mutations.
type WalletService interface {
	CreateOrGet(ctx context.Context, actor domain.Principal, customerID uuid.UUID) (*WalletResult, error)
	Get(ctx context.Context, actor domain.Principal, walletID uuid.UUID) (*domain.Wallet, error)
	Debit(ctx context.Context, req WalletMutationRequest) (*MutationResult, error)
	Credit(ctx context.Context, req WalletMutationRequest) (*MutationResult, error)
	SetStatus(ctx context.Context, actor domain.Principal, walletID uuid.UUID, status domain.WalletStatus) (*WalletResult, error)
}

// WalletResult is returned by wallet lifecycle operations.
type WalletResult struct {
	Wallet     *domain.Wallet
	Created    bool
	Capability domain.Capability
	Events     []domain.Event
}

// WalletMutationRequest holds validated input for a merchant debit/credit.
type WalletMutationRequest struct {
	Actor       domain.Principal
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// MutationResult is the ledger entry written by a balance mutation.
type MutationResult struct {
	Transaction *domain.Transaction
	Events      []domain.Event
}

// AccessService manages merchant capabilities over customers.
type AccessService interface {
	Grant(ctx context.Context, actor domain.Principal, req GrantRequest) (*GrantResult, error)
	Revoke(ctx context.Context, actor domain.Principal, merchantID, customerID uuid.UUID, reason string) ([]domain.Event, error)
	Suspend(ctx context.Context, actor domain.Principal, merchantID, customerID uuid.UUID, reason string) ([]domain.Event, error)
	Check(ctx context.Context, merchantID, customerID uuid.UUID, required domain.Capability) (bool, error)
	List(ctx context.Context, actor domain.Principal, customerID uuid.UUID) ([]domain.AccessGrant, error)
}

// GrantRequest holds validated input for an admin grant.
type GrantRequest struct {
	MerchantID uuid.UUID
	CustomerID uuid.UUID
	Capability domain.Capability
	ExpiresAt  *time.Time
}

// GrantResult is the stored grant plus its events.
type GrantResult struct {
	Grant  *domain.AccessGrant
	Events []domain.Event
}

// QRService issues and redeems QR payment requests.
type QRService interface {
	Create(ctx context.Context, req CreateQRRequest) (*QRResult, error)
	Get(ctx context.Context, token string) (*domain.QRCode, error)
	Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error)
	Cancel(ctx context.Context, actor domain.Principal, id uuid.UUID) (*QRResult, error)
	ExpireStale(ctx context.Context) (int64, error)
}

// CreateQRRequest holds validated input for issuing a QR code. MerchantID
// is only honoured for admins; merchants always issue for themselves.
type CreateQRRequest struct {
	Actor       domain.Principal
	MerchantID  *uuid.UUID
	Amount      decimal.Decimal
	Description string
	Reference   string
	TTLMinutes  int
}

// QRResult is a code plus its scannable payload.
type QRResult struct {
	QR      *domain.QRCode
	Payload string
	Events  []domain.Event
}

// RedeemRequest holds validated input for paying a QR code. WalletID is
// optional; when set it must be the customer's wallet.
type RedeemRequest struct {
	Actor      domain.Principal
	Token      string
	CustomerID uuid.UUID
	WalletID   *uuid.UUID
}

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	QR      *domain.QRCode
	Payment *domain.Transaction
	Fee     *domain.Transaction
	Balance decimal.Decimal
	Events  []domain.Event
}

// EFTService manages bank-mediated top-ups.
type EFTService interface {
	Banks() []domain.BankConfig
	Initiate(ctx context.Context, req InitiateEFTRequest) (*EFTResult, error)
	HandleWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error)
	Get(ctx context.Context, actor domain.Principal, id uuid.UUID) (*domain.EFTPayment, error)
	Cancel(ctx context.Context, actor domain.Principal, id uuid.UUID, reason string) (*EFTResult, error)
	Refund(ctx context.Context, actor domain.Principal, id uuid.UUID, reason string) (*EFTResult, error)
}

// InitiateEFTRequest holds validated input for a top-up.
type InitiateEFTRequest struct {
	Actor         domain.Principal
	CustomerID    uuid.UUID
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	BankCode      string
	AccountNumber string
	Reference     string
}

// EFTResult is a payment plus any ledger entry and events. Pending is set
// when the bank could not be reached and the outcome is still open.
type EFTResult struct {
	Payment     *domain.EFTPayment
	Transaction *domain.Transaction
	Pending     bool
	Note        string
	Events      []domain.Event
}

// WebhookRequest is a bank's report of a payment outcome.
type WebhookRequest struct {
	Reference     string
	Status        string
	Fee           *decimal.Decimal
	TransactionID string
	ErrorCode     string
	ErrorMessage  string
	Timestamp     *time.Time
	Raw           []byte
}

// WebhookResult tells the bank whether the report changed anything.
type WebhookResult struct {
	Processed bool
	Status    domain.EFTStatus
	Events    []domain.Event
}

// LedgerService answers ledger queries.
type LedgerService interface {
	Query(ctx context.Context, actor domain.Principal, q LedgerQuery) (*LedgerPage, error)
}

// LedgerQuery holds ledger filters as requested by a caller.
type LedgerQuery struct {
	CustomerID *uuid.UUID
	MerchantID *uuid.UUID
	WalletID   *uuid.UUID
	Kind       *domain.TransactionKind
	Status     *domain.TransactionStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// LedgerPage is one page of ledger entries, newest first.
type LedgerPage struct {
	Items    []domain.Transaction
	Total    int64
	Page     int
	PageSize int
}
