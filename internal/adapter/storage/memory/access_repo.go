package memory

import (
	"context"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccessGrantRepo implements ports.AccessGrantRepository.
type AccessGrantRepo struct {
	s *Store
}

// NewAccessGrantRepo creates an AccessGrantRepo over store.
func NewAccessGrantRepo(store *Store) *AccessGrantRepo {
	return &AccessGrantRepo{s: store}
}

func copyGrant(g *domain.AccessGrant) *domain.AccessGrant {
	c := *g
	return &c
}

// activeLocked returns the live grant for the pair. Caller holds s.mu.
func (r *AccessGrantRepo) activeLocked(merchantID, customerID uuid.UUID) *domain.AccessGrant {
	for _, g := range r.s.grants {
		if g.Active && g.MerchantID == merchantID && g.CustomerID == customerID {
			return g
		}
	}
	return nil
}

// Upsert replaces capability and expiry of the active grant, or inserts g.
func (r *AccessGrantRepo) Upsert(ctx context.Context, g *domain.AccessGrant) (*domain.AccessGrant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing := r.activeLocked(g.MerchantID, g.CustomerID); existing != nil {
		existing.Capability = g.Capability
		existing.Reason = g.Reason
		existing.GrantedBy = g.GrantedBy
		existing.GrantedAt = g.GrantedAt
		existing.ExpiresAt = g.ExpiresAt
		return copyGrant(existing), nil
	}

	stored := copyGrant(g)
	stored.Active = true
	stored.DeactivatedAt = nil
	stored.DeactivationReason = nil
	r.s.grants = append(r.s.grants, stored)
	return copyGrant(stored), nil
}

// InsertIfAbsent inserts g only if the pair has no active grant.
func (r *AccessGrantRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, g *domain.AccessGrant) (bool, error) {
	mt, err := asTx(r.s, tx)
	if err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.activeLocked(g.MerchantID, g.CustomerID) != nil {
		return false, nil
	}
	stored := copyGrant(g)
	stored.Active = true
	r.s.grants = append(r.s.grants, stored)
	mt.onRollback(func() {
		for i, x := range r.s.grants {
			if x == stored {
				r.s.grants = append(r.s.grants[:i], r.s.grants[i+1:]...)
				return
			}
		}
	})
	return true, nil
}

// GetActive returns the active grant for the pair, or nil.
func (r *AccessGrantRepo) GetActive(ctx context.Context, merchantID, customerID uuid.UUID) (*domain.AccessGrant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if g := r.activeLocked(merchantID, customerID); g != nil {
		return copyGrant(g), nil
	}
	return nil, nil
}

// Deactivate ends the active grant for the pair.
func (r *AccessGrantRepo) Deactivate(ctx context.Context, merchantID, customerID uuid.UUID, reason string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g := r.activeLocked(merchantID, customerID)
	if g == nil {
		return false, nil
	}
	now := time.Now().UTC()
	g.Active = false
	g.DeactivatedAt = &now
	g.DeactivationReason = &reason
	return true, nil
}

// ListByCustomer returns every grant over the customer, newest first.
func (r *AccessGrantRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.AccessGrant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AccessGrant
	for _, g := range r.s.grants {
		if g.CustomerID == customerID {
			out = append(out, *g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}
