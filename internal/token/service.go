package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"drouple.org/internal/authz"
	"drouple.org/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service issues and verifies short-lived access tokens and manages the
// refresh token rotation lifecycle.
type Service struct {
	secret   SigningSecret
	issuer   string
	now      func() time.Time
	denyList DenyList
	refresh  RefreshTokenStore

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Option configures Service behavior.
type Option func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. The signing secret is validated here,
// eagerly, so a weak configuration fails at startup instead of surfacing
// later as a forged-token-looking verification failure.
func NewService(secret SigningSecret, refresh RefreshTokenStore, denyList DenyList, opts ...Option) (*Service, error) {
	if secret.IsZero() {
		return nil, fmt.Errorf("%w: signing secret is not configured", ErrConfiguration)
	}
	if refresh == nil {
		return nil, errors.New("token: refresh token store is required")
	}
	if denyList == nil {
		return nil, errors.New("token: deny list is required")
	}
	svc := &Service{
		secret:     secret,
		now:        time.Now,
		denyList:   denyList,
		refresh:    refresh,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// SignAccessToken mints an HS256 JWT for the verified identity.
func (s *Service) SignAccessToken(identity Identity) (string, *AccessClaims, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", nil, fmt.Errorf("%w: subject is required", ErrTokenInvalid)
	}
	now := s.now().UTC()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
		TenantID: identity.TenantID,
		Roles:    []authz.Role{identity.Role},
		ChurchID: identity.ChurchID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret.bytes())
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// VerifyAccessToken checks signature, expiry and the deny-list. The three
// failure kinds stay distinct: expired tokens are retried via refresh,
// revoked and invalid ones are not.
func (s *Service) VerifyAccessToken(ctx context.Context, raw string) (*AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
		jwt.WithLeeway(30*time.Second),
	)

	var claims AccessClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret.bytes(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}
	if len(claims.Roles) == 0 {
		return nil, ErrTokenInvalid
	}

	revoked, err := s.denyList.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: deny list: %v", ErrUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return &claims, nil
}

// CreateRefreshToken generates an opaque refresh credential for a user
// and persists only its hash. The returned string is the single copy of
// the secret.
func (s *Service) CreateRefreshToken(ctx context.Context, userID string) (string, *RefreshToken, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, fmt.Errorf("%w: user id is required", ErrTokenInvalid)
	}
	opaque, rec, err := s.generateRefreshToken(userID, "")
	if err != nil {
		return "", nil, err
	}
	if err := s.refresh.Create(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("%w: create refresh token: %v", ErrUnavailable, err)
	}
	return opaque, rec, nil
}

// RotateRefreshToken exchanges a presented refresh token for a successor.
// Presenting an already-rotated token is a reuse signal: the whole chain
// is revoked and ErrTokenReused is returned.
func (s *Service) RotateRefreshToken(ctx context.Context, presented string) (string, *RefreshToken, error) {
	id, secret, err := splitOpaque(presented)
	if err != nil {
		return "", nil, ErrTokenInvalid
	}

	rec, err := s.refresh.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrTokenInvalid
		}
		return "", nil, fmt.Errorf("%w: find refresh token: %v", ErrUnavailable, err)
	}
	if s.now().After(rec.ExpiresAt) {
		return "", nil, ErrTokenInvalid
	}
	if !hashMatches(rec.TokenHash, secret) {
		return "", nil, ErrTokenInvalid
	}
	if rec.Revoked {
		if err := s.refresh.RevokeChain(ctx, rec.ID); err != nil {
			return "", nil, fmt.Errorf("%w: revoke chain: %v", ErrUnavailable, err)
		}
		return "", nil, ErrTokenReused
	}

	opaque, successor, err := s.generateRefreshToken(rec.UserID, rec.ID)
	if err != nil {
		return "", nil, err
	}
	if err := s.refresh.Rotate(ctx, rec.ID, successor); err != nil {
		if errors.Is(err, ErrAlreadyRotated) {
			// Lost a rotation race: the other caller already rotated past
			// this record. Same treatment as replay.
			if err := s.refresh.RevokeChain(ctx, rec.ID); err != nil {
				return "", nil, fmt.Errorf("%w: revoke chain: %v", ErrUnavailable, err)
			}
			return "", nil, ErrTokenReused
		}
		return "", nil, fmt.Errorf("%w: rotate refresh token: %v", ErrUnavailable, err)
	}
	return opaque, successor, nil
}

// RevokeRefreshToken revokes the chain of the presented refresh token.
func (s *Service) RevokeRefreshToken(ctx context.Context, presented string) error {
	id, secret, err := splitOpaque(presented)
	if err != nil {
		return ErrTokenInvalid
	}
	rec, err := s.refresh.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("%w: find refresh token: %v", ErrUnavailable, err)
	}
	if !hashMatches(rec.TokenHash, secret) {
		return ErrTokenInvalid
	}
	if err := s.refresh.RevokeChain(ctx, rec.ID); err != nil {
		return fmt.Errorf("%w: revoke chain: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAccessToken deny-lists a token id until its natural expiry.
func (s *Service) RevokeAccessToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if strings.TrimSpace(tokenID) == "" {
		return ErrTokenInvalid
	}
	if err := s.denyList.Insert(ctx, tokenID, expiresAt); err != nil {
		return fmt.Errorf("%w: deny list: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForUser revokes every live refresh token of one user.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("%w: revoke user tokens: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Service) generateRefreshToken(userID, rotatedFrom string) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	now := s.now().UTC()
	sum := sha256.Sum256([]byte(secret))
	rec := &RefreshToken{
		ID:          ids.New(),
		UserID:      userID,
		TokenHash:   hex.EncodeToString(sum[:]),
		ExpiresAt:   now.Add(s.refreshTTL),
		CreatedAt:   now,
		RotatedFrom: rotatedFrom,
	}
	return rec.ID + "." + secret, rec, nil
}

func splitOpaque(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func hashMatches(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
