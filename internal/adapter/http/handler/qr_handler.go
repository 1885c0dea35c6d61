package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// QRHandler handles QR payment endpoints.
type QRHandler struct {
	qrSvc ports.QRService
	publisher
}

// NewQRHandler creates a new QRHandler.
func NewQRHandler(qrSvc ports.QRService, events ports.EventPublisher) *QRHandler {
	return &QRHandler{qrSvc: qrSvc, publisher: publisher{events: events}}
}

// Create handles POST /api/v1/qr.
func (h *QRHandler) Create(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateQRRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.qrSvc.Create(c.Request.Context(), ports.CreateQRRequest{
		Actor:       p,
		MerchantID:  optionalUUID(req.MerchantID),
		Amount:      amount,
		Description: req.Description,
		Reference:   req.Reference,
		TTLMinutes:  req.TTLMinutes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	response.Created(c, toQRResponse(result.QR, result.Payload))
}

// Get handles GET /api/v1/qr/:token.
func (h *QRHandler) Get(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}

	qr, err := h.qrSvc.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toQRResponse(qr, ""))
}

// Redeem handles POST /api/v1/qr/:token/redeem.
func (h *QRHandler) Redeem(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	var req dto.RedeemQRRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.qrSvc.Redeem(c.Request.Context(), ports.RedeemRequest{
		Actor:      p,
		Token:      c.Param("token"),
		CustomerID: mustUUID(req.CustomerID),
		WalletID:   optionalUUID(req.WalletID),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	resp := dto.RedeemResponse{
		QR:          toQRResponse(result.QR, ""),
		Transaction: toTransactionResponse(result.Payment),
		Balance:     result.Balance.StringFixed(2),
	}
	if result.Fee != nil {
		fee := toTransactionResponse(result.Fee)
		resp.Fee = &fee
	}
	response.OK(c, resp)
}

// Cancel handles POST /api/v1/qr/id/:id/cancel.
func (h *QRHandler) Cancel(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.qrSvc.Cancel(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.publish(c.Request.Context(), result.Events)

	response.OK(c, toQRResponse(result.QR, ""))
}
