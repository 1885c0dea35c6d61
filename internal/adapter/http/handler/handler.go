package handler

import (
	"context"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// actor returns the authenticated principal, writing a 401 when absent.
func actor(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Principal{}, false
	}
	return p, true
}

// uuidParam parses a path parameter, writing a 400 when malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and sanitizes a request body, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// mustUUID parses an identifier that binding already checked.
func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}

// publisher wraps the event sink so handlers need not nil-check it.
type publisher struct {
	events ports.EventPublisher
}

func (p publisher) publish(ctx context.Context, events []domain.Event) {
	if p.events == nil || len(events) == 0 {
		return
	}
	p.events.Publish(ctx, events...)
}
