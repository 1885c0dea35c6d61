package handler

import (
	"strconv"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler serves ledger queries.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// List handles GET /api/v1/transactions.
// Query: customer_id, merchant_id, wallet_id, kind, status, from, to
// (RFC 3339), page, page_size.
func (h *LedgerHandler) List(c *gin.Context) {
	p, ok := actor(c)
	if !ok {
		return
	}

	q, err := parseLedgerQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.ledgerSvc.Query(c.Request.Context(), p, q)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toTransactionResponse(&page.Items[i]))
	}

	totalPages := 0
	if page.PageSize > 0 {
		totalPages = int((page.Total + int64(page.PageSize) - 1) / int64(page.PageSize))
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: totalPages,
	})
}

func parseLedgerQuery(c *gin.Context) (ports.LedgerQuery, error) {
	var q ports.LedgerQuery
	var err error

	ids := map[string]**uuid.UUID{
		"customer_id": &q.CustomerID,
		"merchant_id": &q.MerchantID,
		"wallet_id":   &q.WalletID,
	}
	for name, dst := range ids {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, perr := uuid.Parse(raw)
		if perr != nil {
			return q, apperror.Validation("invalid " + name)
		}
		*dst = &id
	}

	if raw := c.Query("kind"); raw != "" {
		kind := domain.TransactionKind(raw)
		q.Kind = &kind
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TransactionStatus(raw)
		q.Status = &status
	}

	if q.From, err = timeQuery(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = timeQuery(c, "to"); err != nil {
		return q, err
	}

	if q.Page, err = intQuery(c, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intQuery(c, "page_size"); err != nil {
		return q, err
	}
	return q, nil
}

func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation(name + " must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(name + " must be an integer")
	}
	return n, nil
}
