package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AccessRegistry implements ports.AccessService.
type AccessRegistry struct {
	grants ports.AccessGrantRepository
	now    func() time.Time
	log    zerolog.Logger
}

// NewAccessRegistry creates an AccessRegistry.
func NewAccessRegistry(grants ports.AccessGrantRepository, log zerolog.Logger) *AccessRegistry {
	return &AccessRegistry{grants: grants, now: time.Now, log: log}
}

// Grant sets the capability a merchant holds over a customer, replacing any
// active grant for the pair.
func (r *AccessRegistry) Grant(ctx context.Context, actor domain.Principal, req ports.GrantRequest) (*ports.GrantResult, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAdminRequired()
	}
	if req.MerchantID == uuid.Nil || req.CustomerID == uuid.Nil {
		return nil, apperror.Validation("merchant_id and customer_id are required")
	}
	if !req.Capability.Valid() || req.Capability == domain.CapabilityNone {
		return nil, apperror.Validation("capability must be one of view_only, credit_only, full")
	}
	now := r.now().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, apperror.Validation("expires_at must be in the future")
	}

	grantedBy := actor.ID
	stored, err := r.grants.Upsert(ctx, &domain.AccessGrant{
		ID:         uuid.New(),
		MerchantID: req.MerchantID,
		CustomerID: req.CustomerID,
		Capability: req.Capability,
		Reason:     domain.GrantReasonAdmin,
		GrantedBy:  &grantedBy,
		GrantedAt:  now,
		ExpiresAt:  req.ExpiresAt,
		Active:     true,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("upsert grant: %w", err))
	}

	r.log.Info().
		Str("merchant_id", req.MerchantID.String()).
		Str("customer_id", req.CustomerID.String()).
		Str("capability", string(req.Capability)).
		Msg("access granted")

	return &ports.GrantResult{
		Grant:  stored,
		Events: []domain.Event{domain.NewEvent(domain.EventAccessGranted, stored.ID, now)},
	}, nil
}

// AutoGrantCreator gives the merchant that created a wallet full access,
// unless the pair already has an active grant.
func (r *AccessRegistry) AutoGrantCreator(ctx context.Context, tx pgx.Tx, merchantID, customerID uuid.UUID) (*domain.AccessGrant, bool, error) {
	g := &domain.AccessGrant{
		ID:         uuid.New(),
		MerchantID: merchantID,
		CustomerID: customerID,
		Capability: domain.CapabilityFull,
		Reason:     domain.GrantReasonWalletCreation,
		GrantedAt:  r.now().UTC(),
		Active:     true,
	}
	inserted, err := r.grants.InsertIfAbsent(ctx, tx, g)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("auto-grant creator: %w", err))
	}
	return g, inserted, nil
}

// Revoke ends the pair's active grant.
func (r *AccessRegistry) Revoke(ctx context.Context, actor domain.Principal, merchantID, customerID uuid.UUID, reason string) ([]domain.Event, error) {
	return r.deactivate(ctx, actor, merchantID, customerID, domain.DeactivationRevoked, reason, domain.EventAccessRevoked)
}

// Suspend ends the pair's active grant pending review.
func (r *AccessRegistry) Suspend(ctx context.Context, actor domain.Principal, merchantID, customerID uuid.UUID, reason string) ([]domain.Event, error) {
	return r.deactivate(ctx, actor, merchantID, customerID, domain.DeactivationSuspended, reason, domain.EventAccessSuspended)
}

func (r *AccessRegistry) deactivate(
	ctx context.Context,
	actor domain.Principal,
	merchantID, customerID uuid.UUID,
	kind, reason string,
	event domain.EventType,
) ([]domain.Event, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAdminRequired()
	}
	current, err := r.grants.GetActive(ctx, merchantID, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get grant: %w", err))
	}
	if current == nil {
		return nil, apperror.ErrNotFound("access grant")
	}

	stored := kind
	if reason != "" {
		stored = kind + ": " + reason
	}
	ok, err := r.grants.Deactivate(ctx, merchantID, customerID, stored)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("deactivate grant: %w", err))
	}
	if !ok {
		return nil, apperror.ErrStateConflict("access grant is no longer active")
	}

	r.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("customer_id", customerID.String()).
		Str("reason", stored).
		Msg("access deactivated")

	return []domain.Event{domain.NewEvent(event, current.ID, r.now())}, nil
}

// Check reports whether the merchant currently holds at least required.
func (r *AccessRegistry) Check(ctx context.Context, merchantID, customerID uuid.UUID, required domain.Capability) (bool, error) {
	if required == domain.CapabilityNone {
		return true, nil
	}
	g, err := r.grants.GetActive(ctx, merchantID, customerID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get grant: %w", err))
	}
	return g.Effective(r.now()).Allows(required), nil
}

// Require fails with PermissionDenied unless actor is an admin or a
// merchant holding at least required over the customer.
func (r *AccessRegistry) Require(ctx context.Context, actor domain.Principal, customerID uuid.UUID, required domain.Capability) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsMerchant() {
		return apperror.ErrPermissionDenied(string(required))
	}
	ok, err := r.Check(ctx, actor.ID, customerID, required)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrPermissionDenied(string(required))
	}
	return nil
}

// Effective returns the capability actor holds over the customer.
func (r *AccessRegistry) Effective(ctx context.Context, actor domain.Principal, customerID uuid.UUID) (domain.Capability, error) {
	if actor.IsAdmin() {
		return domain.CapabilityFull, nil
	}
	g, err := r.grants.GetActive(ctx, actor.ID, customerID)
	if err != nil {
		return domain.CapabilityNone, apperror.InternalError(fmt.Errorf("get grant: %w", err))
	}
	return g.Effective(r.now()), nil
}

// List returns every grant ever issued over the customer.
func (r *AccessRegistry) List(ctx context.Context, actor domain.Principal, customerID uuid.UUID) ([]domain.AccessGrant, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrAdminRequired()
	}
	grants, err := r.grants.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list grants: %w", err))
	}
	if grants == nil {
		grants = []domain.AccessGrant{}
	}
	return grants, nil
}
