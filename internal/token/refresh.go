package token

import (
	"context"
	"time"
)

// RefreshToken is the persisted half of an opaque refresh credential.
// Only the SHA-256 hash of the client-held secret is stored. Rotation
// creates a successor record linked through RotatedFrom; successive
// rotations form a chain that can be revoked as a unit.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	Revoked     bool
	RotatedFrom string
}

// RefreshTokenStore manages refresh token lifecycle. Implementations:
// in-memory (this package) and PostgreSQL (internal/store/pg).
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)

	// Rotate atomically marks id revoked and creates successor. When id is
	// already revoked it returns ErrAlreadyRotated and must not create the
	// successor; two racing rotations of the same token yield exactly one
	// success.
	Rotate(ctx context.Context, id string, successor *RefreshToken) error

	// RevokeChain revokes every token linked to id through RotatedFrom,
	// walking both directions.
	RevokeChain(ctx context.Context, id string) error

	// RevokeAllForUser revokes every live token of one user (logout).
	RevokeAllForUser(ctx context.Context, userID string) error
}
