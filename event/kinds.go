package event

import "slices"

// Name identifies an event kind. Only the constants below are accepted by
// the registry and by New.
type Name string

// Identity domain event names.
const (
	UserCreatedName       Name = "user.created"
	UserUpdatedName       Name = "user.updated"
	UserDeletedName       Name = "user.deleted"
	UserLoggedInName      Name = "user.logged_in"
	TenantCreatedName     Name = "tenant.created"
	TenantUpdatedName     Name = "tenant.updated"
	TenantDeletedName     Name = "tenant.deleted"
	RoleCreatedName       Name = "role.created"
	RoleDeletedName       Name = "role.deleted"
	RoleAssignedName      Name = "role.assigned"
	RoleRevokedName       Name = "role.revoked"
	PermissionGrantedName Name = "permission.granted"
	PermissionRevokedName Name = "permission.revoked"
)

var known = map[Name]struct{}{
	UserCreatedName:       {},
	UserUpdatedName:       {},
	UserDeletedName:       {},
	UserLoggedInName:      {},
	TenantCreatedName:     {},
	TenantUpdatedName:     {},
	TenantDeletedName:     {},
	RoleCreatedName:       {},
	RoleDeletedName:       {},
	RoleAssignedName:      {},
	RoleRevokedName:       {},
	PermissionGrantedName: {},
	PermissionRevokedName: {},
}

// Known reports whether n is one of the declared event names.
func (n Name) Known() bool {
	_, ok := known[n]
	return ok
}

func (n Name) String() string { return string(n) }

// All returns every declared event name in sorted order.
func All() []Name {
	names := make([]Name, 0, len(known))
	for n := range known {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ─────────────────────────────────────────────────
// User
// ─────────────────────────────────────────────────

// UserCreated is raised after a user row is committed.
type UserCreated struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

func (UserCreated) EventName() Name  { return UserCreatedName }
func (p UserCreated) Tenant() string { return p.TenantID }

// UserUpdated lists the fields that changed.
type UserUpdated struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id"`
	Fields   []string `json:"fields,omitempty"`
}

func (UserUpdated) EventName() Name  { return UserUpdatedName }
func (p UserUpdated) Tenant() string { return p.TenantID }

type UserDeleted struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

func (UserDeleted) EventName() Name  { return UserDeletedName }
func (p UserDeleted) Tenant() string { return p.TenantID }

type UserLoggedIn struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (UserLoggedIn) EventName() Name  { return UserLoggedInName }
func (p UserLoggedIn) Tenant() string { return p.TenantID }

// ─────────────────────────────────────────────────
// Tenant
// ─────────────────────────────────────────────────

type TenantCreated struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
}

func (TenantCreated) EventName() Name  { return TenantCreatedName }
func (p TenantCreated) Tenant() string { return p.TenantID }

type TenantUpdated struct {
	TenantID string   `json:"tenant_id"`
	Fields   []string `json:"fields,omitempty"`
}

func (TenantUpdated) EventName() Name  { return TenantUpdatedName }
func (p TenantUpdated) Tenant() string { return p.TenantID }

type TenantDeleted struct {
	TenantID string `json:"tenant_id"`
}

func (TenantDeleted) EventName() Name  { return TenantDeletedName }
func (p TenantDeleted) Tenant() string { return p.TenantID }

// ─────────────────────────────────────────────────
// Roles and permissions
// ─────────────────────────────────────────────────

type RoleCreated struct {
	RoleID   string `json:"role_id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

func (RoleCreated) EventName() Name  { return RoleCreatedName }
func (p RoleCreated) Tenant() string { return p.TenantID }

type RoleDeleted struct {
	RoleID   string `json:"role_id"`
	TenantID string `json:"tenant_id"`
}

func (RoleDeleted) EventName() Name  { return RoleDeletedName }
func (p RoleDeleted) Tenant() string { return p.TenantID }

// RoleAssigned is raised when a role is bound to a user.
type RoleAssigned struct {
	UserID     string `json:"user_id"`
	RoleID     string `json:"role_id"`
	TenantID   string `json:"tenant_id"`
	AssignedBy string `json:"assigned_by,omitempty"`
}

func (RoleAssigned) EventName() Name  { return RoleAssignedName }
func (p RoleAssigned) Tenant() string { return p.TenantID }

type RoleRevoked struct {
	UserID    string `json:"user_id"`
	RoleID    string `json:"role_id"`
	TenantID  string `json:"tenant_id"`
	RevokedBy string `json:"revoked_by,omitempty"`
}

func (RoleRevoked) EventName() Name  { return RoleRevokedName }
func (p RoleRevoked) Tenant() string { return p.TenantID }

type PermissionGranted struct {
	RoleID     string `json:"role_id"`
	TenantID   string `json:"tenant_id"`
	Permission string `json:"permission"`
}

func (PermissionGranted) EventName() Name  { return PermissionGrantedName }
func (p PermissionGranted) Tenant() string { return p.TenantID }

type PermissionRevoked struct {
	RoleID     string `json:"role_id"`
	TenantID   string `json:"tenant_id"`
	Permission string `json:"permission"`
}

func (PermissionRevoked) EventName() Name  { return PermissionRevokedName }
func (p PermissionRevoked) Tenant() string { return p.TenantID }
