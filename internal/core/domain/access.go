package domain

import (
	"time"

	"github.com/google/uuid"
)

// Capability is the level of access a merchant holds on a customer's
// wallet. Each level implies every lower one.
type Capability string

const (
	CapabilityNone       Capability = "none"
	CapabilityViewOnly   Capability = "view_only"
	CapabilityCreditOnly Capability = "credit_only"
	CapabilityFull       Capability = "full"
)

// Rank orders capabilities; unknown values rank below none.
func (c Capability) Rank() int {
	switch c {
	case CapabilityNone:
		return 0
	case CapabilityViewOnly:
		return 1
	case CapabilityCreditOnly:
		return 2
	case CapabilityFull:
		return 3
	}
	return -1
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	return c.Rank() >= 0
}

// Allows reports whether holding c satisfies required.
func (c Capability) Allows(required Capability) bool {
	return c.Valid() && required.Valid() && c.Rank() >= required.Rank()
}

// Grant reasons.
const (
	GrantReasonWalletCreation = "wallet_creation"
	GrantReasonAdmin          = "admin_grant"
)

// Deactivation reasons.
const (
	DeactivationRevoked   = "revoked"
	DeactivationSuspended = "suspended"
)

// AccessGrant links one merchant to one customer's wallet.
// At most one active grant exists per (merchant, customer) pair.
type AccessGrant struct {
	ID                 uuid.UUID  `json:"id"`
	MerchantID         uuid.UUID  `json:"merchant_id"`
	CustomerID         uuid.UUID  `json:"customer_id"`
	Capability         Capability `json:"capability"`
	Reason             string     `json:"reason"`
	GrantedBy          *uuid.UUID `json:"granted_by,omitempty"` // nil for the creator auto-grant
	GrantedAt          time.Time  `json:"granted_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Active             bool       `json:"active"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason *string    `json:"deactivation_reason,omitempty"`
}

// IsValid reports whether the grant is in force at now.
func (g *AccessGrant) IsValid(now time.Time) bool {
	if g == nil || !g.Active {
		return false
	}
	return g.ExpiresAt == nil || now.Before(*g.ExpiresAt)
}

// Effective returns the capability in force at now.
func (g *AccessGrant) Effective(now time.Time) Capability {
	if !g.IsValid(now) {
		return CapabilityNone
	}
	return g.Capability
}
