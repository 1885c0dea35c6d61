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

// EFTHandler handles bank top-up endpoints.
type EFTHandler struct {
	eftSvc ports.EFTService
	publisher
}

// NewEFTHandler creates a new EFTHandler.
func NewEFTHandler(eftSvc ports.EFTService, events ports.EventPublisher) *EFTHandler {
	return &EFTHandler{eftSvc: eftSvc, publisher: publisher{events: events}}
}

// Banks handles GET /api/v1/eft/banks.
func (h *EFTHandler) Banks(c *gin.Context) {
	banks := h.eftSvc.Banks()
	items := make([]dto.BankResponse, 0, len(banks))
	for _, b := range banks {
		items = append(items, toBankResponse(b))
	}
	response.OK(c, items)
}

// Initiate handles POST /api/v1/eft. The answer is 201 once the bank has
// acknowledged the submission and 202 while the outcome is still open.
func (h *EFTHandler) Initiate(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	var req dto.InitiateEFTRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.eftSvc.Initiate(c.Request.Context(), ports.InitiateEFTRequest{
		Actor:         p,
		CustomerID:    mustUUID(req.CustomerID),
		WalletID:      mustUUID(req.WalletID),
		Amount:        amount,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		Reference:     req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	resp := toEFTResponse(result.Payment, result.Note)
	if result.Pending {
		response.Accepted(c, resp)
		return
	}
	response.Created(c, resp)
}

// Get handles GET /api/v1/eft/:id.
func (h *EFTHandler) Get(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.eftSvc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toEFTResponse(payment, ""))
}

// Cancel handles POST /api/v1/eft/:id/cancel (admin).
func (h *EFTHandler) Cancel(c *gin.Context) {
	h.resolve(c, h.eftSvc.Cancel)
}

// Refund handles POST /api/v1/eft/:id/refund (admin).
func (h *EFTHandler) Refund(c *gin.Context) {
	h.resolve(c, h.eftSvc.Refund)
}

type resolveFunc func(ctx context.Context, actor domain.Principal, id uuid.UUID, reason string) (*ports.EFTResult, error)

func (h *EFTHandler) resolve(c *gin.Context, fn resolveFunc) {
	p, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// the reason is optional, so an empty body is fine
	var req dto.ReasonRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	result, err := fn(c.Request.Context(), p, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	resp := gin.H{"payment": toEFTResponse(result.Payment, result.Note)}
	if result.Transaction != nil {
		resp["transaction"] = toTransactionResponse(result.Transaction)
	}
	response.OK(c, resp)
}
