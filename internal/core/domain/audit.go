package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited administrative action.
type AuditAction string

const (
	AuditActionGrantAccess   AuditAction = "GRANT_ACCESS"
	AuditActionRevokeAccess  AuditAction = "REVOKE_ACCESS"
	AuditActionSuspendAccess AuditAction = "SUSPEND_ACCESS"
	AuditActionWalletStatus  AuditAction = "WALLET_STATUS"
	AuditActionCancelEFT     AuditAction = "CANCEL_EFT"
	AuditActionRefundEFT     AuditAction = "REFUND_EFT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    Role        `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
