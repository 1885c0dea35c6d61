package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps "METHOD route-template" to the administrative action
// it performs.
var auditedRoutes = map[string]auditRoute{
	"POST /api/v1/access/grants":     {domain.AuditActionGrantAccess, "access_grant"},
	"POST /api/v1/access/revoke":     {domain.AuditActionRevokeAccess, "access_grant"},
	"POST /api/v1/access/suspend":    {domain.AuditActionSuspendAccess, "access_grant"},
	"PUT /api/v1/wallets/:id/status": {domain.AuditActionWalletStatus, "wallet"},
	"POST /api/v1/eft/:id/cancel":    {domain.AuditActionCancelEFT, "eft_payment"},
	"POST /api/v1/eft/:id/refund":    {domain.AuditActionRefundEFT, "eft_payment"},
}

// AuditLog records successful administrative writes after the handler runs.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if p, ok := PrincipalFrom(c); ok {
			id := p.ID
			entry.ActorID = &id
			entry.ActorRole = p.Role
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}
