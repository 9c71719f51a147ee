package tenancy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"drouple.org/internal/auth"
	"drouple.org/internal/authz"
)

type stubDirectory struct {
	ids []string
	err error
}

func (d *stubDirectory) ListAllTenantIDs(context.Context) ([]string, error) {
	return d.ids, d.err
}

func newTestResolver(t *testing.T, dir TenantDirectory) *Resolver {
	t.Helper()
	r, err := NewResolver(dir)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestNilPrincipalFails(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{})
	if _, err := r.AccessibleTenantIDs(context.Background(), nil); !errors.Is(err, auth.ErrInvalidPrincipal) {
		t.Fatalf("expected ErrInvalidPrincipal, got %v", err)
	}
	if _, err := r.BuildTenantFilter(context.Background(), nil, nil, ""); !errors.Is(err, auth.ErrInvalidPrincipal) {
		t.Fatalf("expected ErrInvalidPrincipal, got %v", err)
	}
}

func TestSuperAdminSeesWholeDirectory(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{ids: []string{"t2", "t1", "t3"}})
	p := &auth.Principal{ID: "root", Role: authz.RoleSuperAdmin}

	ids, err := r.AccessibleTenantIDs(context.Background(), p)
	if err != nil {
		t.Fatalf("AccessibleTenantIDs: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"t1", "t2", "t3"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	f, err := r.BuildTenantFilter(context.Background(), p, nil, "")
	if err != nil {
		t.Fatalf("BuildTenantFilter: %v", err)
	}
	if !reflect.DeepEqual(f[FilterTenantIDIn], []string{"t1", "t2", "t3"}) {
		t.Fatalf("expected membership constraint, got %+v", f)
	}
}

func TestTenantBoundPrincipalPinsOwnTenant(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{ids: []string{"t1", "t9"}})
	p := &auth.Principal{ID: "user-1", Role: authz.RoleAdmin, TenantID: "church-1"}

	f, err := r.BuildTenantFilter(context.Background(), p, Filter{"status": "active"}, "")
	if err != nil {
		t.Fatalf("BuildTenantFilter: %v", err)
	}
	if f[FilterTenantID] != "church-1" {
		t.Fatalf("expected pinned tenant, got %+v", f)
	}
	if f["status"] != "active" {
		t.Fatal("base filter keys must survive the merge")
	}
}

func TestOverrideOutsideScopeIsRejected(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{ids: []string{"church-1", "church-9"}})

	admin := &auth.Principal{ID: "user-1", Role: authz.RoleAdmin, TenantID: "church-1"}
	if _, err := r.BuildTenantFilter(context.Background(), admin, nil, "church-9"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}

	// A super-admin override must still name a tenant the directory knows.
	root := &auth.Principal{ID: "root", Role: authz.RoleSuperAdmin}
	if _, err := r.BuildTenantFilter(context.Background(), root, nil, "church-404"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch for unknown tenant, got %v", err)
	}

	f, err := r.BuildTenantFilter(context.Background(), root, nil, "church-9")
	if err != nil {
		t.Fatalf("BuildTenantFilter: %v", err)
	}
	if f[FilterTenantID] != "church-9" {
		t.Fatalf("expected pinned override, got %+v", f)
	}
}

func TestTenantlessPrincipalMatchesNothing(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{ids: []string{"t1"}})
	p := &auth.Principal{ID: "user-1", Role: authz.RoleMember}

	f, err := r.BuildTenantFilter(context.Background(), p, nil, "")
	if err != nil {
		t.Fatalf("BuildTenantFilter: %v", err)
	}
	in, ok := f[FilterTenantIDIn].([]string)
	if !ok || len(in) != 0 {
		t.Fatalf("expected empty membership constraint, got %+v", f)
	}
	if _, err := r.BuildTenantFilter(context.Background(), p, nil, "t1"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("tenant-less principal cannot use overrides, got %v", err)
	}
}

func TestBaseFilterCannotWidenScope(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{ids: []string{"t1", "t2"}})
	p := &auth.Principal{ID: "user-1", Role: authz.RoleAdmin, TenantID: "church-1"}

	base := Filter{FilterTenantID: "church-9", FilterTenantIDIn: []string{"church-9"}}
	f, err := r.BuildTenantFilter(context.Background(), p, base, "")
	if err != nil {
		t.Fatalf("BuildTenantFilter: %v", err)
	}
	if f[FilterTenantID] != "church-1" {
		t.Fatalf("tenant constraint must win over base filter, got %+v", f)
	}
	if _, ok := f[FilterTenantIDIn]; ok {
		t.Fatal("stale membership constraint must be dropped")
	}
}

func TestDirectoryFailureIsUnavailable(t *testing.T) {
	r := newTestResolver(t, &stubDirectory{err: errors.New("connection refused")})
	p := &auth.Principal{ID: "root", Role: authz.RoleSuperAdmin}

	if _, err := r.AccessibleTenantIDs(context.Background(), p); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
