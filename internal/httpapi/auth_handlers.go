package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"drouple.org/internal/audit"
	"drouple.org/internal/auth"
	"drouple.org/internal/authz"
	"drouple.org/internal/obs"
	"drouple.org/internal/ratelimit"
	"drouple.org/internal/tenancy"
	"drouple.org/internal/token"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func pairResponse(pair auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(pair.ExpiresIn.Seconds()),
		AccessExpiresAt:  pair.AccessExpiresAt.UTC(),
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	source := clientIP(r)
	pair, principal, err := a.auth.Login(r.Context(), source, req.Email, req.Password)
	if err != nil {
		a.handleLoginError(w, r, source, req.Email, err)
		return
	}

	obs.ObserveLogin("success")
	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	_ = audit.LogEvent(ctx, audit.EventLoginSuccess, map[string]any{
		"source": source,
	})
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// handleLoginError maps login failures. Credential failures answer a
// uniform 401 so the response cannot distinguish a wrong password from
// an unknown account or a disabled one.
func (a *API) handleLoginError(w http.ResponseWriter, r *http.Request, source, email string, err error) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		obs.ObserveRateLimited()
		_ = audit.LogEvent(r.Context(), audit.EventRateLimited, map[string]any{
			"source": source,
		})
		w.Header().Set("Retry-After", "900")
		writeError(w, r, http.StatusTooManyRequests, "too many login attempts, try again later")
	case errors.Is(err, auth.ErrInvalidCredentials):
		obs.ObserveLogin("invalid")
		_ = audit.LogEvent(r.Context(), audit.EventLoginFailure, map[string]any{
			"source": source,
		})
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		obs.ObserveLogin("error")
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
	}
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, _, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.handleTokenError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// handleTokenError maps refresh and verification failures. A detected
// replay still answers a plain 401; the chain revocation it triggered is
// recorded server-side only.
func (a *API) handleTokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, token.ErrTokenReused):
		obs.ObserveTokenReuse()
		_ = audit.LogEvent(r.Context(), audit.EventTokenReused, nil)
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenRevoked),
		errors.Is(err, token.ErrTokenInvalid):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
	}
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := claimsFromRequest(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.auth.Logout(r.Context(), claims, req.RefreshToken); err != nil {
		a.handleTokenError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := claimsFromRequest(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	if err := a.auth.LogoutEverywhere(r.Context(), claims); err != nil {
		a.handleTokenError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventLogoutEverywhere, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   principal.ID,
		"role":      string(principal.Role),
		"tenant_id": principal.TenantID,
		"church_id": principal.ChurchID,
	})
}

// handleScope answers the tenant ids the caller may query, honoring the
// optional ?tenant= override the same way list endpoints would.
func (a *API) handleScope(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	accessible, err := a.tenants.AccessibleTenantIDs(r.Context(), &principal)
	if err != nil {
		a.handleScopeError(w, r, err)
		return
	}

	filter, err := a.tenants.BuildTenantFilter(r.Context(), &principal, nil, r.URL.Query().Get("tenant"))
	if err != nil {
		a.handleScopeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessible_tenant_ids": accessible,
		"filter":                filter,
	})
}

// handleCan probes the permission table for the caller's own role.
// Unknown entities and actions read as denied, never as errors.
func (a *API) handleCan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	entity := authz.Entity(strings.TrimSpace(r.URL.Query().Get("entity")))
	action := authz.Action(strings.TrimSpace(r.URL.Query().Get("action")))
	if entity == "" || action == "" {
		writeError(w, r, http.StatusBadRequest, "entity and action are required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity":  string(entity),
		"action":  string(action),
		"allowed": authz.CanManageEntity(principal.Role, entity, action),
	})
}

// handleAdminTenants lists the tenants visible to the caller; the route
// is gated at ADMIN and scoping still applies, so a local admin sees
// only their own church.
func (a *API) handleAdminTenants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	accessible, err := a.tenants.AccessibleTenantIDs(r.Context(), &principal)
	if err != nil {
		a.handleScopeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_ids": accessible,
	})
}

func (a *API) handleScopeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenancy.ErrTenantMismatch):
		writeError(w, r, http.StatusForbidden, "tenant not accessible")
	case errors.Is(err, auth.ErrInvalidPrincipal):
		unauthorized(w, r)
	default:
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
	}
}
