package auth

import "errors"

var (
	// ErrInvalidCredentials is the single failure returned for any bad
	// login: unknown identifier, disabled account or wrong password. The
	// caller never learns which.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUnauthenticated means no usable principal accompanied the request.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrForbidden means a valid principal lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrInvalidPrincipal is returned when scope resolution is attempted
	// without a principal.
	ErrInvalidPrincipal = errors.New("auth: invalid principal")

	// ErrNotFound is returned by user directories for unknown identifiers.
	ErrNotFound = errors.New("auth: not found")

	// ErrUnavailable signals a collaborator I/O failure, never a denial.
	ErrUnavailable = errors.New("auth: unavailable")
)
