package service

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const auditWriteTimeout = 5 * time.Second

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an administrative action without blocking the request.
func (s *auditService) Log(ctx context.Context, entry *domain.AuditLog) {
	e := *entry
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	go func() {
		ev := s.log.Info().
			Str("action", string(e.Action)).
			Str("actor_role", string(e.ActorRole)).
			Str("resource_type", e.ResourceType).
			Str("resource_id", e.ResourceID).
			Str("ip", e.IPAddress)
		if e.ActorID != nil {
			ev = ev.Str("actor_id", e.ActorID.String())
		}
		ev.Msg("audit")

		if s.repo == nil {
			return
		}
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
		defer cancel()
		if err := s.repo.Create(writeCtx, &e); err != nil {
			s.log.Warn().Err(err).Str("action", string(e.Action)).Msg("failed to persist audit log")
		}
	}()
}
