package memory

import (
	"context"

	"wallet-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates an AuditRepo over store.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{s: store}
}

// Create appends an audit entry.
func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	c := *log
	r.s.mu.Lock()
	r.s.auditLogs = append(r.s.auditLogs, &c)
	r.s.mu.Unlock()
	return nil
}

// List returns every audit entry in insertion order.
func (r *AuditRepo) List() []domain.AuditLog {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditLog, len(r.s.auditLogs))
	for i, l := range r.s.auditLogs {
		out[i] = *l
	}
	return out
}
