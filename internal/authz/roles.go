package authz

// Role identifies one of the platform's fixed user roles.
type Role string

// Role names. Keep these stable; they are part of token and API contracts.
const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RolePastor     Role = "PASTOR"
	RoleAdmin      Role = "ADMIN"
	RoleVIP        Role = "VIP"
	RoleLeader     Role = "LEADER"
	RoleMember     Role = "MEMBER"
)

// roleRank is the canonical ordering. A higher rank means more privilege.
// VIP sits above LEADER; see DESIGN.md for the decision record.
var roleRank = map[Role]int{
	RoleMember:     1,
	RoleLeader:     2,
	RoleVIP:        3,
	RoleAdmin:      4,
	RolePastor:     5,
	RoleSuperAdmin: 6,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the role's privilege rank and whether the role is known.
func (r Role) Rank() (int, bool) {
	rank, ok := roleRank[r]
	return rank, ok
}

// HasMinRole reports whether role is at least as privileged as min.
// SUPER_ADMIN passes every check. Unknown roles fail closed.
func HasMinRole(role, min Role) bool {
	if role == RoleSuperAdmin {
		return true
	}
	rank, ok := roleRank[role]
	if !ok {
		return false
	}
	minRank, ok := roleRank[min]
	if !ok {
		return false
	}
	return rank >= minRank
}

// HasAnyRole reports whether role is one of the candidates.
// SUPER_ADMIN passes every check.
func HasAnyRole(role Role, candidates ...Role) bool {
	if role == RoleSuperAdmin {
		return true
	}
	if !role.Valid() {
		return false
	}
	for _, c := range candidates {
		if role == c {
			return true
		}
	}
	return false
}
