package token

import (
	"fmt"
	"strings"
)

// MinSecretLength is the minimum accepted signing secret size in bytes.
const MinSecretLength = 32

// SigningSecret wraps the HS256 key and enforces the minimum-length
// invariant at construction, so a weak secret can never reach a signing
// routine.
type SigningSecret struct {
	key []byte
}

// NewSigningSecret validates and wraps a raw secret.
func NewSigningSecret(raw string) (SigningSecret, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SigningSecret{}, fmt.Errorf("%w: signing secret is required", ErrConfiguration)
	}
	if len(raw) < MinSecretLength {
		return SigningSecret{}, fmt.Errorf("%w: signing secret must be at least %d bytes", ErrConfiguration, MinSecretLength)
	}
	return SigningSecret{key: []byte(raw)}, nil
}

// IsZero reports whether the secret was never constructed.
func (s SigningSecret) IsZero() bool { return len(s.key) == 0 }

func (s SigningSecret) bytes() []byte { return s.key }

// String keeps the secret out of logs and %v formatting.
func (s SigningSecret) String() string { return "token.SigningSecret(redacted)" }
