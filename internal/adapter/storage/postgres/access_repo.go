package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const grantColumnList = `id, merchant_id, customer_id, capability, reason, granted_by,
	granted_at, expires_at, active, deactivated_at, deactivation_reason`

// AccessGrantRepo implements ports.AccessGrantRepository. The partial unique
// index on (merchant_id, customer_id) WHERE active keeps one live grant per pair.
type AccessGrantRepo struct {
	pool Pool
}

// NewAccessGrantRepo creates a new AccessGrantRepo.
func NewAccessGrantRepo(pool Pool) *AccessGrantRepo {
	return &AccessGrantRepo{pool: pool}
}

func scanGrant(row pgx.Row) (*domain.AccessGrant, error) {
	g := &domain.AccessGrant{}
	err := row.Scan(
		&g.ID, &g.MerchantID, &g.CustomerID, &g.Capability, &g.Reason, &g.GrantedBy,
		&g.GrantedAt, &g.ExpiresAt, &g.Active, &g.DeactivatedAt, &g.DeactivationReason,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Upsert writes g as the active grant for its pair, replacing the capability
// and expiry of any grant already active.
func (r *AccessGrantRepo) Upsert(ctx context.Context, g *domain.AccessGrant) (*domain.AccessGrant, error) {
	query := `INSERT INTO access_grants (` + grantColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NULL, NULL)
		ON CONFLICT (merchant_id, customer_id) WHERE active
		DO UPDATE SET capability = EXCLUDED.capability, reason = EXCLUDED.reason,
			granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at
		RETURNING ` + grantColumnList

	stored, err := scanGrant(r.pool.QueryRow(ctx, query,
		g.ID, g.MerchantID, g.CustomerID, g.Capability, g.Reason, g.GrantedBy, g.GrantedAt, g.ExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert access grant: %w", err)
	}
	return stored, nil
}

// InsertIfAbsent inserts g only if the pair has no active grant.
func (r *AccessGrantRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, g *domain.AccessGrant) (bool, error) {
	query := `INSERT INTO access_grants (` + grantColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NULL, NULL)
		ON CONFLICT (merchant_id, customer_id) WHERE active DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		g.ID, g.MerchantID, g.CustomerID, g.Capability, g.Reason, g.GrantedBy, g.GrantedAt, g.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert access grant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetActive returns the active grant for the pair, or nil.
func (r *AccessGrantRepo) GetActive(ctx context.Context, merchantID, customerID uuid.UUID) (*domain.AccessGrant, error) {
	g, err := scanGrant(r.pool.QueryRow(ctx,
		`SELECT `+grantColumnList+` FROM access_grants
		WHERE merchant_id = $1 AND customer_id = $2 AND active`, merchantID, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active access grant: %w", err)
	}
	return g, nil
}

// Deactivate ends the active grant for the pair. Returns false if there
// was none.
func (r *AccessGrantRepo) Deactivate(ctx context.Context, merchantID, customerID uuid.UUID, reason string) (bool, error) {
	query := `UPDATE access_grants SET active = FALSE, deactivated_at = NOW(), deactivation_reason = $1
		WHERE merchant_id = $2 AND customer_id = $3 AND active`

	tag, err := r.pool.Exec(ctx, query, reason, merchantID, customerID)
	if err != nil {
		return false, fmt.Errorf("deactivate access grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByCustomer returns every grant ever issued over the customer, newest first.
func (r *AccessGrantRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.AccessGrant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+grantColumnList+` FROM access_grants WHERE customer_id = $1 ORDER BY granted_at DESC`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access grant row: %w", err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access grant rows: %w", err)
	}
	return grants, nil
}
