package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const txColumnList = `id, kind, direction, amount, fee, net_amount, from_wallet_id, to_wallet_id,
	customer_id, merchant_id, balance_before, balance_after, status, reference, metadata,
	related_id, created_at, completed_at`

// TransactionRepo implements ports.TransactionRepository. Entries are only
// ever inserted; there is no update or delete path.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var metadata []byte
	err := row.Scan(
		&t.ID, &t.Kind, &t.Direction, &t.Amount, &t.Fee, &t.NetAmount, &t.FromWalletID, &t.ToWalletID,
		&t.CustomerID, &t.MerchantID, &t.BalanceBefore, &t.BalanceAfter, &t.Status, &t.Reference, &metadata,
		&t.RelatedID, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return t, nil
}

// Append inserts a ledger entry within a database transaction.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if t.Metadata == nil {
		metadata = []byte("{}")
	}

	query := `INSERT INTO transactions (` + txColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.Kind, t.Direction, t.Amount, t.Fee, t.NetAmount, t.FromWalletID, t.ToWalletID,
		t.CustomerID, t.MerchantID, t.BalanceBefore, t.BalanceAfter, t.Status, t.Reference, metadata,
		t.RelatedID, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a ledger entry by ID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumnList+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// SumDebits totals completed debits of the given kinds from walletID since
// the window start. It runs inside tx so it sees entries the same
// transaction has already appended.
func (r *TransactionRepo) SumDebits(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, kinds []domain.TransactionKind, since time.Time) (decimal.Decimal, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE from_wallet_id = $1 AND direction = 'debit' AND status = 'completed'
		AND kind = ANY($2) AND created_at >= $3`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, walletID, names, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum wallet debits: %w", err)
	}
	return total, nil
}

// Query lists ledger entries matching f, newest first, with the total count.
func (r *TransactionRepo) Query(ctx context.Context, f ports.TransactionFilter) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, arg)
		argIdx++
	}

	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.MerchantID != nil {
		add("merchant_id = $%d", *f.MerchantID)
	}
	if f.WalletID != nil {
		conditions = append(conditions, fmt.Sprintf("(from_wallet_id = $%d OR to_wallet_id = $%d)", argIdx, argIdx))
		args = append(args, *f.WalletID)
		argIdx++
	}
	if f.Kind != nil {
		add("kind = $%d", *f.Kind)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (f.Page - 1) * f.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, txColumnList, where, argIdx, argIdx+1)
	args = append(args, f.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}
