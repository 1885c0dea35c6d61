package handler

import (
	"context"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccessHandler handles merchant access grant endpoints.
type AccessHandler struct {
	accessSvc ports.AccessService
	publisher
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(accessSvc ports.AccessService, events ports.EventPublisher) *AccessHandler {
	return &AccessHandler{accessSvc: accessSvc, publisher: publisher{events: events}}
}

// Grant handles POST /api/v1/access/grants (admin).
func (h *AccessHandler) Grant(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	var req dto.GrantRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.accessSvc.Grant(c.Request.Context(), p, ports.GrantRequest{
		MerchantID: mustUUID(req.MerchantID),
		CustomerID: mustUUID(req.CustomerID),
		Capability: domain.Capability(req.Capability),
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	response.Created(c, toGrantResponse(result.Grant))
}

// Revoke handles POST /api/v1/access/revoke (admin).
func (h *AccessHandler) Revoke(c *gin.Context) {
	h.deactivate(c, h.accessSvc.Revoke, "revoked")
}

// Suspend handles POST /api/v1/access/suspend (admin).
func (h *AccessHandler) Suspend(c *gin.Context) {
	h.deactivate(c, h.accessSvc.Suspend, "suspended")
}

type deactivateFunc func(ctx context.Context, actor domain.Principal, merchantID, customerID uuid.UUID, reason string) ([]domain.Event, error)

func (h *AccessHandler) deactivate(c *gin.Context, fn deactivateFunc, outcome string) {
	p, ok := actor(c)
	if !ok {
		return
	}

	var req dto.DeactivateGrantRequest
	if !bindJSON(c, &req) {
		return
	}

	events, err := fn(c.Request.Context(), p, mustUUID(req.MerchantID), mustUUID(req.CustomerID), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), events)

	response.OK(c, gin.H{"merchant_id": req.MerchantID, "customer_id": req.CustomerID, "status": outcome})
}

// Check handles GET /api/v1/access/check. Merchants may only ask about
// themselves; merchant_id defaults to the caller.
func (h *AccessHandler) Check(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	customerID, err := uuid.Parse(c.Query("customer_id"))
	if err != nil {
		response.Error(c, apperror.Validation("customer_id is required"))
		return
	}

	merchantID := p.ID
	if raw := c.Query("merchant_id"); raw != "" {
		merchantID, err = uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("invalid merchant_id"))
			return
		}
	}
	if !p.IsAdmin() && merchantID != p.ID {
		response.Error(c, apperror.ErrAdminRequired())
		return
	}

	required := domain.Capability(c.DefaultQuery("capability", string(domain.CapabilityViewOnly)))
	if !required.Valid() {
		response.Error(c, apperror.Validation("invalid capability"))
		return
	}

	allowed, err := h.accessSvc.Check(c.Request.Context(), merchantID, customerID, required)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AccessCheckResponse{
		MerchantID: merchantID.String(),
		CustomerID: customerID.String(),
		Capability: string(required),
		Allowed:    allowed,
	})
}

// List handles GET /api/v1/access/grants?customer_id=.
func (h *AccessHandler) List(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	customerID, err := uuid.Parse(c.Query("customer_id"))
	if err != nil {
		response.Error(c, apperror.Validation("customer_id is required"))
		return
	}

	grants, err := h.accessSvc.List(c.Request.Context(), p, customerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.GrantResponse, 0, len(grants))
	for i := range grants {
		items = append(items, toGrantResponse(&grants[i]))
	}
	response.OK(c, items)
}
