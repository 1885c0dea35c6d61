package handler

import (
	"net/http"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
)

// WebhookHandler receives bank outcome reports. Signature and replay checks
// run in middleware before it.
type WebhookHandler struct {
	eftSvc ports.EFTService
	log    zerolog.Logger
	publisher
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(eftSvc ports.EFTService, events ports.EventPublisher, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{eftSvc: eftSvc, log: log, publisher: publisher{events: events}}
}

// Handle handles POST /eft/webhook. Unknown references and rejected
// payloads are acknowledged with status "error" and 200 so the bank stops
// retrying; only server faults answer 5xx.
func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.WebhookResponse{Status: "error", Message: "unreadable body"})
		return
	}

	var req dto.WebhookRequest
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, dto.WebhookResponse{Status: "error", Message: err.Error()})
		return
	}

	result, err := h.eftSvc.HandleWebhook(c.Request.Context(), ports.WebhookRequest{
		Reference:     req.Reference,
		Status:        req.Status,
		Fee:           req.Fee,
		TransactionID: req.TransactionID,
		ErrorCode:     req.ErrorCode,
		ErrorMessage:  req.ErrorMessage,
		Timestamp:     req.Timestamp,
		Raw:           raw,
	})
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindNotFound:
			h.log.Warn().Str("reference", req.Reference).Msg("webhook for unknown payment reference")
			c.JSON(http.StatusOK, dto.WebhookResponse{Status: "error", Message: "unknown reference"})
		case apperror.KindValidation:
			h.log.Warn().Err(err).Str("reference", req.Reference).Msg("webhook rejected")
			c.JSON(http.StatusOK, dto.WebhookResponse{Status: "error", Message: err.Error()})
		default:
			h.log.Error().Err(err).Str("reference", req.Reference).Msg("webhook processing failed")
			c.JSON(http.StatusInternalServerError, dto.WebhookResponse{Status: "error", Message: "internal error"})
		}
		return
	}
	h.publish(c.Request.Context(), result.Events)

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Status:        "success",
		Processed:     result.Processed,
		PaymentStatus: string(result.Status),
	})
}
