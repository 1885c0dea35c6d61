package domain

import "github.com/google/uuid"

// Role identifies what kind of caller is acting.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMerchant Role = "merchant"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin returns true for administrative callers.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsMerchant returns true for merchant callers.
func (p Principal) IsMerchant() bool {
	return p.Role == RoleMerchant
}

// Valid reports whether the role is one the system knows.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMerchant
}
