// Package tenancy computes which tenant partitions a principal may touch
// and builds the tenant constraint every scoped query must carry. No other
// code path may construct a tenant filter.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"drouple.org/internal/auth"
)

var (
	// ErrTenantMismatch is returned when a requested tenant override falls
	// outside the principal's accessible scope.
	ErrTenantMismatch = errors.New("tenancy: tenant outside accessible scope")

	// ErrUnavailable signals a tenant directory I/O failure, never a denial.
	ErrUnavailable = errors.New("tenancy: directory unavailable")
)

// TenantDirectory is the persistence collaborator that knows every tenant.
type TenantDirectory interface {
	ListAllTenantIDs(ctx context.Context) ([]string, error)
}

// Filter is the query constraint handed to the persistence layer. Keys
// other than the tenant constraint pass through from the caller's base
// filter; the tenant keys are owned by this package.
type Filter map[string]any

const (
	// FilterTenantID pins the filter to exactly one tenant.
	FilterTenantID = "tenant_id"
	// FilterTenantIDIn constrains the filter to a set of tenants.
	FilterTenantIDIn = "tenant_id_in"
)

// Resolver derives tenant scopes from principals.
type Resolver struct {
	directory TenantDirectory
}

func NewResolver(directory TenantDirectory) (*Resolver, error) {
	if directory == nil {
		return nil, errors.New("tenancy: tenant directory is required")
	}
	return &Resolver{directory: directory}, nil
}

// AccessibleTenantIDs computes the set of tenants the principal may act
// within. SUPER_ADMIN sees the whole directory; everyone else sees their
// own tenant or nothing.
func (r *Resolver) AccessibleTenantIDs(ctx context.Context, principal *auth.Principal) ([]string, error) {
	if principal == nil || principal.ID == "" {
		return nil, auth.ErrInvalidPrincipal
	}
	if principal.IsSuperAdmin() {
		ids, err := r.directory.ListAllTenantIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		return sorted, nil
	}
	if principal.TenantID != "" {
		return []string{principal.TenantID}, nil
	}
	return []string{}, nil
}

// BuildTenantFilter merges the principal's tenant constraint into base.
// The tenant constraint always wins over any tenant value already present
// in base: a caller cannot widen its own scope through the base filter.
//
// An override pins the filter to one tenant and must be inside the
// accessible set; a non-super principal asking for another tenant and a
// super-admin asking for a tenant missing from the directory are both
// rejected with ErrTenantMismatch.
func (r *Resolver) BuildTenantFilter(ctx context.Context, principal *auth.Principal, base Filter, overrideTenantID string) (Filter, error) {
	accessible, err := r.AccessibleTenantIDs(ctx, principal)
	if err != nil {
		return nil, err
	}

	merged := make(Filter, len(base)+1)
	for k, v := range base {
		if k == FilterTenantID || k == FilterTenantIDIn {
			continue
		}
		merged[k] = v
	}

	if overrideTenantID != "" {
		if !contains(accessible, overrideTenantID) {
			return nil, fmt.Errorf("%w: %q", ErrTenantMismatch, overrideTenantID)
		}
		merged[FilterTenantID] = overrideTenantID
		return merged, nil
	}

	switch len(accessible) {
	case 1:
		merged[FilterTenantID] = accessible[0]
	default:
		// Covers the empty set too: an empty membership list matches
		// nothing, which is exactly what a tenant-less principal gets.
		merged[FilterTenantIDIn] = accessible
	}
	return merged, nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
