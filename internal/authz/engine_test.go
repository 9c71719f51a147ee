package authz

import "testing"

func TestChurchMutationIsSuperAdminOnly(t *testing.T) {
	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		if !CanManageEntity(RoleSuperAdmin, EntityChurch, action) {
			t.Fatalf("SUPER_ADMIN must be able to %s a church", action)
		}
		for _, role := range []Role{RolePastor, RoleAdmin, RoleVIP, RoleLeader, RoleMember} {
			if CanManageEntity(role, EntityChurch, action) {
				t.Fatalf("%s must not be able to %s a church", role, action)
			}
		}
	}
}

func TestChurchReadRoles(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RolePastor, RoleAdmin} {
		if !CanManageEntity(role, EntityChurch, ActionRead) {
			t.Fatalf("%s must be able to read a church", role)
		}
	}
	for _, role := range []Role{RoleVIP, RoleLeader, RoleMember} {
		if CanManageEntity(role, EntityChurch, ActionRead) {
			t.Fatalf("%s must not be able to read a church", role)
		}
	}
}

func TestCapabilityTableUsesRank(t *testing.T) {
	if !CanManageEntity(RolePastor, EntityMember, ActionCreate) {
		t.Fatal("PASTOR outranks ADMIN and may create members")
	}
	if CanManageEntity(RoleMember, EntityMember, ActionRead) {
		t.Fatal("MEMBER may not list other members")
	}
	if !CanManageEntity(RoleVIP, EntityFirstTimer, ActionUpdate) {
		t.Fatal("VIP team manages first timers")
	}
	if CanManageEntity(RoleVIP, EntityFirstTimer, ActionDelete) {
		t.Fatal("deleting a first timer requires ADMIN")
	}
}

func TestUnknownEntityOrActionDenies(t *testing.T) {
	if CanManageEntity(RoleSuperAdmin, "sermon", ActionRead) {
		t.Fatal("unknown entity must deny, even for SUPER_ADMIN")
	}
	if CanManageEntity(RoleAdmin, EntityEvent, "archive") {
		t.Fatal("unknown action must deny")
	}
	if CanManageEntity("INTERN", EntityEvent, ActionRead) {
		t.Fatal("unknown role must deny")
	}
}
