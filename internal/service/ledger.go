package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Ledger is the only write path into the transaction log and implements
// ports.LedgerService for reads.
type Ledger struct {
	repo            ports.TransactionRepository
	defaultPageSize int
	maxPageSize     int
	log             zerolog.Logger
}

// NewLedger creates a Ledger. Page sizes fall back to 20 and 100.
func NewLedger(repo ports.TransactionRepository, defaultPageSize, maxPageSize int, log zerolog.Logger) *Ledger {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = 100
	}
	return &Ledger{
		repo:            repo,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

// Append validates t and stores it in tx.
func (l *Ledger) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if err := t.Validate(); err != nil {
		return apperror.InternalError(fmt.Errorf("ledger entry %s: %w", t.ID, err))
	}
	if err := l.repo.Append(ctx, tx, t); err != nil {
		return apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}
	return nil
}

// Query returns one page of entries, newest first. Merchants only ever see
// entries they initiated.
func (l *Ledger) Query(ctx context.Context, actor domain.Principal, q ports.LedgerQuery) (*ports.LedgerPage, error) {
	if q.Page < 0 || q.PageSize < 0 {
		return nil, apperror.Validation("page and page_size must not be negative")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = l.defaultPageSize
	}
	if q.PageSize > l.maxPageSize {
		q.PageSize = l.maxPageSize
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, apperror.Validation("from must not be after to")
	}
	if q.Kind != nil && !q.Kind.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction kind %q", *q.Kind))
	}

	if !actor.IsAdmin() {
		if q.MerchantID != nil && *q.MerchantID != actor.ID {
			return nil, apperror.ErrPermissionDenied("view_only")
		}
		id := actor.ID
		q.MerchantID = &id
	}

	items, total, err := l.repo.Query(ctx, ports.TransactionFilter{
		CustomerID: q.CustomerID,
		MerchantID: q.MerchantID,
		WalletID:   q.WalletID,
		Kind:       q.Kind,
		Status:     q.Status,
		From:       q.From,
		To:         q.To,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("query ledger: %w", err))
	}
	if items == nil {
		items = []domain.Transaction{}
	}

	return &ports.LedgerPage{
		Items:    items,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}
