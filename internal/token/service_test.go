package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"drouple.org/internal/authz"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryRefreshTokenStore, *MemoryDenyList) {
	t.Helper()
	secret, err := NewSigningSecret(strings.Repeat("s", MinSecretLength))
	if err != nil {
		t.Fatalf("NewSigningSecret: %v", err)
	}
	store := NewMemoryRefreshTokenStore()
	deny := NewMemoryDenyList()
	svc, err := NewService(secret, store, deny, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, deny
}

func TestSigningSecretMinimumLength(t *testing.T) {
	if _, err := NewSigningSecret("short"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewSigningSecret(""); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty secret, got %v", err)
	}
	if _, err := NewService(SigningSecret{}, NewMemoryRefreshTokenStore(), NewMemoryDenyList()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for zero secret, got %v", err)
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t, WithIssuer("drouple"))

	signed, minted, err := svc.SignAccessToken(Identity{
		UserID:   "user-1",
		Role:     authz.RoleAdmin,
		TenantID: "church-1",
		ChurchID: "church-1",
	})
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	if minted.ID == "" {
		t.Fatal("expected a fresh jti")
	}

	claims, err := svc.VerifyAccessToken(context.Background(), signed)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.TenantID != "church-1" {
		t.Fatalf("unexpected tenant: %s", claims.TenantID)
	}
	role, ok := claims.PrimaryRole()
	if !ok || role != authz.RoleAdmin {
		t.Fatalf("unexpected role: %s", role)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	current := time.Now().UTC()
	svc, _, _ := newTestService(t,
		WithAccessTTL(time.Minute),
		WithClock(func() time.Time { return current }),
	)

	signed, _, err := svc.SignAccessToken(Identity{UserID: "user-1", Role: authz.RoleMember, TenantID: "church-1"})
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := svc.VerifyAccessToken(context.Background(), signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsGarbageAndWrongKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.VerifyAccessToken(context.Background(), "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	other, _, _ := newTestService(t)
	otherSecret, _ := NewSigningSecret(strings.Repeat("x", MinSecretLength))
	forged, err := NewService(otherSecret, NewMemoryRefreshTokenStore(), NewMemoryDenyList())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	signed, _, err := forged.SignAccessToken(Identity{UserID: "user-1", Role: authz.RoleMember, TenantID: "church-1"})
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	if _, err := other.VerifyAccessToken(context.Background(), signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong key, got %v", err)
	}
}

func TestRevokedTokenFailsBeforeExpiry(t *testing.T) {
	svc, _, _ := newTestService(t)

	signed, claims, err := svc.SignAccessToken(Identity{UserID: "user-1", Role: authz.RoleMember, TenantID: "church-1"})
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	if err := svc.RevokeAccessToken(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("RevokeAccessToken: %v", err)
	}
	if _, err := svc.VerifyAccessToken(context.Background(), signed); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	original, _, err := svc.CreateRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	rotated, successor, err := svc.RotateRefreshToken(ctx, original)
	if err != nil {
		t.Fatalf("RotateRefreshToken: %v", err)
	}
	if rotated == original {
		t.Fatal("rotation must yield a new opaque value")
	}
	if successor.UserID != "user-1" {
		t.Fatalf("successor user mismatch: %s", successor.UserID)
	}
	if successor.RotatedFrom == "" {
		t.Fatal("successor must link back to its predecessor")
	}
}

func TestRefreshReuseRevokesChain(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	original, _, err := svc.CreateRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}
	_, successor, err := svc.RotateRefreshToken(ctx, original)
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Replaying the original is theft-or-bug; either way the whole chain dies.
	if _, _, err := svc.RotateRefreshToken(ctx, original); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused, got %v", err)
	}

	rec, err := store.Find(ctx, successor.ID)
	if err != nil {
		t.Fatalf("Find successor: %v", err)
	}
	if !rec.Revoked {
		t.Fatal("successor must be revoked after reuse detection")
	}
}

func TestRefreshRejectsUnknownExpiredAndTampered(t *testing.T) {
	current := time.Now().UTC()
	svc, _, _ := newTestService(t, WithClock(func() time.Time { return current }))
	ctx := context.Background()

	if _, _, err := svc.RotateRefreshToken(ctx, "missing.secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for unknown id, got %v", err)
	}
	if _, _, err := svc.RotateRefreshToken(ctx, "malformed"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for malformed token, got %v", err)
	}

	opaque, rec, err := svc.CreateRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}
	if _, _, err := svc.RotateRefreshToken(ctx, rec.ID+".wrong-secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered secret, got %v", err)
	}

	current = rec.ExpiresAt.Add(time.Hour)
	if _, _, err := svc.RotateRefreshToken(ctx, opaque); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	opaque, rec, err := svc.CreateRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}
	if err := svc.RevokeAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	got, err := store.Find(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !got.Revoked {
		t.Fatal("token must be revoked after RevokeAllForUser")
	}
	if _, _, err := svc.RotateRefreshToken(ctx, opaque); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("rotating a revoked token reports reuse, got %v", err)
	}
}

func TestMemoryDenyListExpiry(t *testing.T) {
	deny := NewMemoryDenyList()
	current := time.Now().UTC()
	deny.now = func() time.Time { return current }
	ctx := context.Background()

	if err := deny.Insert(ctx, "jti-1", current.Add(time.Minute)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if ok, _ := deny.Contains(ctx, "jti-1"); !ok {
		t.Fatal("entry must be present before expiry")
	}
	current = current.Add(2 * time.Minute)
	if ok, _ := deny.Contains(ctx, "jti-1"); ok {
		t.Fatal("entry must age out after its expiry")
	}
}
