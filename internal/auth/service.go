package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drouple.org/internal/ratelimit"
	"drouple.org/internal/token"
)

// Service orchestrates credential login, token refresh and logout. The
// rate limiter runs before any password work; all credential failures
// collapse into ErrInvalidCredentials.
type Service struct {
	users   UserDirectory
	limiter *ratelimit.Limiter
	tokens  *token.Service
}

// NewService wires the login flow dependencies.
func NewService(users UserDirectory, limiter *ratelimit.Limiter, tokens *token.Service) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user directory is required")
	}
	if limiter == nil {
		return nil, errors.New("auth: rate limiter is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	return &Service{users: users, limiter: limiter, tokens: tokens}, nil
}

// TokenPair carries freshly minted credentials.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	ExpiresIn        time.Duration
}

// Login authenticates an identifier/secret pair from a source address.
func (s *Service) Login(ctx context.Context, source, identifier, secret string) (TokenPair, Principal, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || secret == "" {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	decision, err := s.limiter.Check(ctx, source, identifier)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if !decision.Allowed {
		return TokenPair{}, Principal{}, ratelimit.ErrRateLimited
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, s.failAttempt(ctx, source, identifier)
		}
		return TokenPair{}, Principal{}, fmt.Errorf("%w: user lookup: %v", ErrUnavailable, err)
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Principal{}, s.failAttempt(ctx, source, identifier)
	}
	if err := VerifyPassword(user.PasswordHash, secret); err != nil {
		return TokenPair{}, Principal{}, s.failAttempt(ctx, source, identifier)
	}

	if err := s.limiter.Reset(ctx, source, identifier); err != nil {
		return TokenPair{}, Principal{}, err
	}

	principal := Principal{ID: user.ID, Role: user.Role, TenantID: user.TenantID, ChurchID: user.ChurchID}
	pair, err := s.mint(ctx, principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Refresh rotates the presented refresh token and mints a new pair.
// Token-kind errors (invalid, reused) pass through untouched so the
// boundary can distinguish them.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	opaque, successor, err := s.tokens.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	user, err := s.users.FindByID(ctx, successor.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, token.ErrTokenInvalid
		}
		return TokenPair{}, Principal{}, fmt.Errorf("%w: user lookup: %v", ErrUnavailable, err)
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Principal{}, token.ErrTokenInvalid
	}

	principal := Principal{ID: user.ID, Role: user.Role, TenantID: user.TenantID, ChurchID: user.ChurchID}
	access, claims, err := s.tokens.SignAccessToken(token.Identity{
		UserID:   principal.ID,
		Role:     principal.Role,
		TenantID: principal.TenantID,
		ChurchID: principal.ChurchID,
	})
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     opaque,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: successor.ExpiresAt,
		ExpiresIn:        s.tokens.AccessTTL(),
	}, principal, nil
}

// Authenticate verifies a bearer access token and rebuilds its principal.
func (s *Service) Authenticate(ctx context.Context, bearer string) (Principal, *token.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(ctx, bearer)
	if err != nil {
		return Principal{}, nil, err
	}
	principal, err := PrincipalFromClaims(claims)
	if err != nil {
		return Principal{}, nil, err
	}
	return principal, claims, nil
}

// Logout deny-lists the access token and revokes the presented refresh
// token's chain.
func (s *Service) Logout(ctx context.Context, claims *token.AccessClaims, refreshToken string) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	if err := s.tokens.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

// LogoutEverywhere additionally revokes every refresh token of the user.
func (s *Service) LogoutEverywhere(ctx context.Context, claims *token.AccessClaims) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	if err := s.tokens.RevokeAccessToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, claims.Subject)
}

func (s *Service) mint(ctx context.Context, principal Principal) (TokenPair, error) {
	access, claims, err := s.tokens.SignAccessToken(token.Identity{
		UserID:   principal.ID,
		Role:     principal.Role,
		TenantID: principal.TenantID,
		ChurchID: principal.ChurchID,
	})
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rec, err := s.tokens.CreateRefreshToken(ctx, principal.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: rec.ExpiresAt,
		ExpiresIn:        s.tokens.AccessTTL(),
	}, nil
}

// failAttempt records a failed attempt and returns the generic
// credentials error regardless of what actually failed.
func (s *Service) failAttempt(ctx context.Context, source, identifier string) error {
	if err := s.limiter.RecordAttempt(ctx, source, identifier); err != nil {
		return err
	}
	return ErrInvalidCredentials
}
