package token

import (
	"github.com/golang-jwt/jwt/v5"

	"drouple.org/internal/authz"
)

// AccessClaims is the only supported access token claims shape.
// Multi-tenant invariant: TenantID must be present for everyone except
// SUPER_ADMIN principals, which roam across tenants.
type AccessClaims struct {
	jwt.RegisteredClaims

	TenantID string       `json:"tenant_id,omitempty"`
	Roles    []authz.Role `json:"roles"`
	ChurchID string       `json:"church_id,omitempty"`
}

// PrimaryRole returns the first role carried by the token. Tokens are
// minted with exactly one role today; the slice exists for forward
// compatibility with multi-role assignments.
func (c *AccessClaims) PrimaryRole() (authz.Role, bool) {
	if len(c.Roles) == 0 {
		return "", false
	}
	return c.Roles[0], true
}

// Identity is the verified input to access token signing. It is produced
// by credential verification, never from client-supplied fields.
type Identity struct {
	UserID   string
	Role     authz.Role
	TenantID string
	ChurchID string
}
