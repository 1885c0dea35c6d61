package handler

import (
	"context"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	publisher
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, events ports.EventPublisher) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, publisher: publisher{events: events}}
}

// CreateOrGet handles POST /api/v1/wallets. A new wallet answers 201, an
// existing one 200.
func (h *WalletHandler) CreateOrGet(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.walletSvc.CreateOrGet(c.Request.Context(), p, mustUUID(req.CustomerID))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	resp := dto.CreateWalletResponse{
		Wallet:      toWalletResponse(result.Wallet),
		Created:     result.Created,
		AccessLevel: string(result.Capability),
	}
	if result.Created {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toWalletResponse(wallet))
}

// Debit handles POST /api/v1/wallets/:id/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.mutate(c, h.walletSvc.Debit)
}

// Credit handles POST /api/v1/wallets/:id/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.mutate(c, h.walletSvc.Credit)
}

type mutationFunc func(ctx context.Context, req ports.WalletMutationRequest) (*ports.MutationResult, error)

func (h *WalletHandler) mutate(c *gin.Context, fn mutationFunc) {
	p, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.WalletMutationRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := fn(c.Request.Context(), ports.WalletMutationRequest{
		Actor:       p,
		WalletID:    id,
		Amount:      amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	response.Created(c, toTransactionResponse(result.Transaction))
}

// SetStatus handles PUT /api/v1/wallets/:id/status (admin).
func (h *WalletHandler) SetStatus(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.WalletStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.walletSvc.SetStatus(c.Request.Context(), p, id, domain.WalletStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	response.OK(c, toWalletResponse(result.Wallet))
}
