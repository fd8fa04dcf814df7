package rbac

import "context"

// Store persists roles, permissions and their join rows. Implementations
// return ErrNotFound, ErrDuplicateName and ErrDuplicateRoute (possibly
// wrapped) for the matching conditions. Grant and Assign are idempotent; a
// repeated call leaves a single join row.
type Store interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	// EnsureRole creates the role unless the name is taken and reports
	// whether it did. It never fails on a concurrent insert of the same name.
	EnsureRole(ctx context.Context, name, description string) (Role, bool, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	ListPermissionsByCategory(ctx context.Context, category string) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionByRoute(ctx context.Context, method, path string) (Permission, error)
	CreatePermission(ctx context.Context, in PermissionInput) (Permission, error)
	// EnsurePermission is EnsureRole for a (method, path) route.
	EnsurePermission(ctx context.Context, in PermissionInput) (Permission, bool, error)
	UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	GrantPermission(ctx context.Context, roleID, permissionID int64) error
	RevokePermission(ctx context.Context, roleID, permissionID int64) error
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)

	AssignRole(ctx context.Context, userID, roleID int64) error
	UnassignRole(ctx context.Context, userID, roleID int64) error
	UserRoles(ctx context.Context, userID int64) ([]Role, error)
	// UserPermissions returns the distinct union of permissions granted to
	// every role the user holds.
	UserPermissions(ctx context.Context, userID int64) ([]Permission, error)

	// InTx runs fn against a Store whose writes commit together.
	InTx(ctx context.Context, fn func(Store) error) error
}
