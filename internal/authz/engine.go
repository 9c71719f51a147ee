package authz

// Entity identifies a managed entity type.
type Entity string

const (
	EntityChurch     Entity = "church"
	EntityMember     Entity = "member"
	EntityEvent      Entity = "event"
	EntityLifeGroup  Entity = "lifegroup"
	EntityPathway    Entity = "pathway"
	EntityFirstTimer Entity = "firsttimer"
	EntityCheckin    Entity = "checkin"
)

// Action identifies an operation on an entity type.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type capability struct {
	entity Entity
	action Action
}

// capabilities maps (entity, action) to the minimum role required.
// Entries absent from the table are denied.
var capabilities = map[capability]Role{
	{EntityMember, ActionCreate}: RoleAdmin,
	{EntityMember, ActionRead}:   RoleLeader,
	{EntityMember, ActionUpdate}: RoleAdmin,
	{EntityMember, ActionDelete}: RoleAdmin,

	{EntityEvent, ActionCreate}: RoleAdmin,
	{EntityEvent, ActionRead}:   RoleMember,
	{EntityEvent, ActionUpdate}: RoleAdmin,
	{EntityEvent, ActionDelete}: RoleAdmin,

	{EntityLifeGroup, ActionCreate}: RoleAdmin,
	{EntityLifeGroup, ActionRead}:   RoleMember,
	{EntityLifeGroup, ActionUpdate}: RoleLeader,
	{EntityLifeGroup, ActionDelete}: RoleAdmin,

	{EntityPathway, ActionCreate}: RoleAdmin,
	{EntityPathway, ActionRead}:   RoleMember,
	{EntityPathway, ActionUpdate}: RoleAdmin,
	{EntityPathway, ActionDelete}: RoleAdmin,

	{EntityFirstTimer, ActionCreate}: RoleVIP,
	{EntityFirstTimer, ActionRead}:   RoleVIP,
	{EntityFirstTimer, ActionUpdate}: RoleVIP,
	{EntityFirstTimer, ActionDelete}: RoleAdmin,

	{EntityCheckin, ActionCreate}: RoleMember,
	{EntityCheckin, ActionRead}:   RoleLeader,
	{EntityCheckin, ActionUpdate}: RoleAdmin,
	{EntityCheckin, ActionDelete}: RoleAdmin,
}

// CanManageEntity reports whether role may perform action on entity.
//
// The church entity is special: mutating a church is reserved for
// SUPER_ADMIN exactly (rank does not help), while reading one is open to
// SUPER_ADMIN, PASTOR and ADMIN. Everything else is a plain minimum-rank
// lookup. Unknown roles, entities and actions are denied.
func CanManageEntity(role Role, entity Entity, action Action) bool {
	if !role.Valid() {
		return false
	}
	if entity == EntityChurch {
		switch action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return role == RoleSuperAdmin
		case ActionRead:
			return HasAnyRole(role, RoleSuperAdmin, RolePastor, RoleAdmin)
		default:
			return false
		}
	}
	min, ok := capabilities[capability{entity, action}]
	if !ok {
		return false
	}
	return HasMinRole(role, min)
}
