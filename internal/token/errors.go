package token

import "errors"

var (
	// ErrTokenInvalid covers structural, signature and lookup failures.
	// Callers must not learn which of the three it was.
	ErrTokenInvalid = errors.New("token: invalid token")

	// ErrTokenExpired is returned for a well-formed token past its expiry.
	// Distinct from ErrTokenInvalid so the boundary can steer clients to
	// the refresh flow.
	ErrTokenExpired = errors.New("token: token expired")

	// ErrTokenRevoked is returned when a token's id is on the deny-list.
	ErrTokenRevoked = errors.New("token: token revoked")

	// ErrTokenReused signals a refresh token presented after it was already
	// rotated. Treated as a security event: the whole rotation chain is
	// revoked as a side effect.
	ErrTokenReused = errors.New("token: refresh token reused")

	// ErrConfiguration signals a missing or weak signing secret.
	ErrConfiguration = errors.New("token: configuration error")

	// ErrUnavailable signals a collaborator store failure, never a denial.
	ErrUnavailable = errors.New("token: store unavailable")

	// ErrNotFound is returned by refresh token stores for unknown ids.
	ErrNotFound = errors.New("token: refresh token not found")

	// ErrAlreadyRotated is returned by refresh token stores when the record
	// to rotate is already revoked. Exactly one of two racing rotations
	// observes it.
	ErrAlreadyRotated = errors.New("token: refresh token already rotated")
)
