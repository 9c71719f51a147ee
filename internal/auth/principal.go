package auth

import (
	"context"
	"time"

	"drouple.org/internal/authz"
	"drouple.org/internal/token"
)

// Principal is the authenticated identity behind a request. It is only
// ever produced by credential verification or access token verification,
// never assembled from unverified client input.
type Principal struct {
	ID       string
	Role     authz.Role
	TenantID string
	ChurchID string
}

// IsSuperAdmin reports whether the principal roams across tenants.
func (p Principal) IsSuperAdmin() bool { return p.Role == authz.RoleSuperAdmin }

// PrincipalFromClaims rebuilds the principal carried by verified access
// token claims.
func PrincipalFromClaims(claims *token.AccessClaims) (Principal, error) {
	if claims == nil {
		return Principal{}, ErrUnauthenticated
	}
	role, ok := claims.PrimaryRole()
	if !ok || !role.Valid() {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{
		ID:       claims.Subject,
		Role:     role,
		TenantID: claims.TenantID,
		ChurchID: claims.ChurchID,
	}, nil
}

// User is the persisted account record consumed from the directory.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         authz.Role
	TenantID     string
	ChurchID     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// UserDirectory is the persistence collaborator for account lookup.
type UserDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}
