package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"drouple.org/internal/auth"
	"drouple.org/internal/authz"
	"drouple.org/internal/obs"
	"drouple.org/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

type claimsKey struct{}

func contextWithClaims(ctx context.Context, claims *token.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func claimsFromRequest(r *http.Request) (*token.AccessClaims, bool) {
	claims, ok := r.Context().Value(claimsKey{}).(*token.AccessClaims)
	return claims, ok && claims != nil
}

// withAuth verifies the bearer token on every non-public path and
// attaches the principal and claims to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r)
			return
		}

		principal, claims, err := a.auth.Authenticate(r.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrUnavailable):
				obs.ObserveTokenVerification("error")
				writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
			default:
				obs.ObserveTokenVerification("invalid")
				unauthorized(w, r)
			}
			return
		}
		obs.ObserveTokenVerification("valid")

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, raw)
		ctx = contextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireMinRole gates a handler behind a minimum role in the hierarchy.
func (a *API) requireMinRole(min authz.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			unauthorized(w, r)
			return
		}
		if !authz.HasMinRole(principal.Role, min) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="drouple"`)
	writeError(w, r, http.StatusUnauthorized, "unauthorized")
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	raw := strings.TrimSpace(header[len(bearer):])
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	return raw, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
