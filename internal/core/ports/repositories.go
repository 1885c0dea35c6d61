package ports

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Storage-level outcomes that services translate into application errors.
var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletInactive      = errors.New("wallet not active")
	ErrDuplicate           = errors.New("duplicate key")
)

// WalletRepository defines persistence operations for wallets.
// Balance mutations are single conditional updates inside the caller's
// transaction; the row lock they take is held until commit or rollback.
type WalletRepository interface {
	// CreateIfAbsent inserts w unless the customer already has a wallet, and
	// returns the stored wallet either way.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (*domain.Wallet, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) (*domain.Wallet, error)
	// Debit subtracts amount if the wallet is active and funded. Returns
	// ErrNotFound, ErrWalletInactive or ErrInsufficientBalance otherwise.
	Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error)
	// Credit adds amount if the wallet is active.
	Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (domain.BalanceChange, error)
	UpdateStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error)
}

// AccessGrantRepository defines persistence for merchant-to-customer grants.
// At most one active grant exists per (merchant, customer) pair.
type AccessGrantRepository interface {
	// Upsert replaces the active grant for the pair, or inserts one.
	Upsert(ctx context.Context, g *domain.AccessGrant) (*domain.AccessGrant, error)
	// InsertIfAbsent inserts g only when no active grant exists.
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, g *domain.AccessGrant) (bool, error)
	GetActive(ctx context.Context, merchantID, customerID uuid.UUID) (*domain.AccessGrant, error)
	Deactivate(ctx context.Context, merchantID, customerID uuid.UUID, reason string) (bool, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.AccessGrant, error)
}

// QRCodeRepository defines persistence for QR payment requests.
type QRCodeRepository interface {
	// Create inserts q. Returns ErrDuplicate on a token collision.
	Create(ctx context.Context, q *domain.QRCode) error
	GetByToken(ctx context.Context, token string) (*domain.QRCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QRCode, error)
	ExistsToken(ctx context.Context, token string) (bool, error)
	// MarkUsed moves an unexpired active code to used. False means another
	// redemption, a cancellation or expiry got there first.
	MarkUsed(ctx context.Context, tx pgx.Tx, use QRUse) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// QRUse records who redeemed a code and with which ledger entry.
type QRUse struct {
	QRID          uuid.UUID
	CustomerID    uuid.UUID
	WalletID      uuid.UUID
	TransactionID uuid.UUID
	UsedAt        time.Time
}

// EFTPaymentRepository defines persistence for bank top-ups.
type EFTPaymentRepository interface {
	Create(ctx context.Context, p *domain.EFTPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EFTPayment, error)
	GetByExternalReference(ctx context.Context, ref string) (*domain.EFTPayment, error)
	// Transition applies from -> to only if the row is still in from.
	// Returns ErrDuplicate if the external reference is already taken.
	Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.EFTStatus, upd EFTUpdate) (bool, error)
}

// EFTUpdate carries the optional columns written alongside a transition.
// Nil fields keep their stored value.
type EFTUpdate struct {
	ExternalReference *string
	Fee               *decimal.Decimal
	FailureReason     *string
	TransactionID     *uuid.UUID
	CompletedAt       *time.Time
	ResponseData      []byte
}

// TransactionRepository defines persistence for immutable ledger entries.
type TransactionRepository interface {
	Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// SumDebits totals completed debits of the given kinds on a wallet since.
	SumDebits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, kinds []domain.TransactionKind, since time.Time) (decimal.Decimal, error)
	Query(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int64, error)
}

// TransactionFilter holds filter + pagination for ledger queries.
type TransactionFilter struct {
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

// AuditRepository defines persistence for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
