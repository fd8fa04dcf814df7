package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// UserLookup reports whether a user id exists.
type UserLookup interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// Service orchestrates RBAC operations.
type Service struct {
	store  Store
	users  UserLookup
	logger *slog.Logger
}

// NewService constructs a Service. users may be nil, in which case user ids
// are not checked before a role is assigned.
func NewService(store Store, users UserLookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, users: users, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// GetRoleByName fetches a role by its unique name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.store.GetRoleByName(ctx, name)
}

// CreateRole inserts a new role. A taken name yields ErrDuplicateName.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in = in.normalize()
	if err := shared.ValidateStruct(in); err != nil {
		return Role{}, fmt.Errorf("rbac: %w", err)
	}
	return s.store.CreateRole(ctx, in.Name, in.Description)
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	in = in.normalize()
	if err := shared.ValidateStruct(in); err != nil {
		return Role{}, fmt.Errorf("rbac: %w", err)
	}
	return s.store.UpdateRole(ctx, id, in.Name, in.Description)
}

// DeleteRole removes a role together with its grants and assignments.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.store.DeleteRole(ctx, id)
}

// ListPermissions returns all permissions ordered by path.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// PermissionsByCategory filters permissions by category.
func (s *Service) PermissionsByCategory(ctx context.Context, category string) ([]Permission, error) {
	return s.store.ListPermissionsByCategory(ctx, category)
}

// GetPermission fetches a permission by ID.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.store.GetPermission(ctx, id)
}

// CreatePermission inserts a permission. A taken (method, path) yields
// ErrDuplicateRoute.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in = in.normalize()
	if err := shared.ValidateStruct(in); err != nil {
		return Permission{}, fmt.Errorf("rbac: %w", err)
	}
	return s.store.CreatePermission(ctx, in)
}

// UpdatePermission rewrites a permission.
func (s *Service) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	in = in.normalize()
	if err := shared.ValidateStruct(in); err != nil {
		return Permission{}, fmt.Errorf("rbac: %w", err)
	}
	return s.store.UpdatePermission(ctx, id, in)
}

// DeletePermission removes a permission and its grants.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.store.DeletePermission(ctx, id)
}

// AssignPermissionToRole grants a permission. Granting twice is a no-op.
func (s *Service) AssignPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	return s.store.InTx(ctx, func(st Store) error {
		if err := requireRoleAndPermission(ctx, st, roleID, permissionID); err != nil {
			return err
		}
		return st.GrantPermission(ctx, roleID, permissionID)
	})
}

// RemovePermissionFromRole revokes a permission. Revoking an absent grant is
// a no-op; unknown ids are not.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	return s.store.InTx(ctx, func(st Store) error {
		if err := requireRoleAndPermission(ctx, st, roleID, permissionID); err != nil {
			return err
		}
		return st.RevokePermission(ctx, roleID, permissionID)
	})
}

// RolePermissions lists the permissions granted to a role.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.RolePermissions(ctx, roleID)
}

// AssignRoleToUser gives a user a role. Assigning twice is a no-op.
func (s *Service) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(st Store) error {
		if _, err := st.GetRole(ctx, roleID); err != nil {
			return err
		}
		return st.AssignRole(ctx, userID, roleID)
	})
}

// RemoveRoleFromUser takes a role away from a user.
func (s *Service) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(st Store) error {
		if _, err := st.GetRole(ctx, roleID); err != nil {
			return err
		}
		return st.UnassignRole(ctx, userID, roleID)
	})
}

// UserRoles lists the roles a user holds.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return s.store.UserRoles(ctx, userID)
}

// RoleNames returns the names of the roles a user holds; these are the
// user's authorities.
func (s *Service) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names, nil
}

// EffectivePermissions returns the union of permissions across the user's
// current roles, read fresh from the store.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	return s.store.UserPermissions(ctx, userID)
}

// CanAccess reports whether any of the user's roles grants the route.
func (s *Service) CanAccess(ctx context.Context, userID int64, method, path string) (bool, error) {
	perms, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(perms, func(p Permission) bool {
		return p.Matches(method, path)
	}), nil
}

// InitializeDefaults makes sure the core roles and the baseline permission
// catalog exist. Existing rows are left untouched, so it is safe to call on
// every startup. Newly created permissions are granted to their baseline
// roles.
func (s *Service) InitializeDefaults(ctx context.Context) (DefaultsReport, error) {
	var report DefaultsReport
	err := s.store.InTx(ctx, func(st Store) error {
		report = DefaultsReport{}
		roles := make(map[string]Role, len(shared.CoreAuthorities()))
		for _, name := range shared.CoreAuthorities() {
			role, created, err := st.EnsureRole(ctx, name, "Built-in "+name+" role")
			if err != nil {
				return err
			}
			if created {
				report.RolesCreated++
			}
			roles[name] = role
		}
		for _, entry := range baseline {
			perm, created, err := st.EnsurePermission(ctx, entry.PermissionInput)
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			report.PermissionsCreated++
			for _, name := range entry.Roles {
				if err := st.GrantPermission(ctx, roles[name].ID, perm.ID); err != nil {
					return fmt.Errorf("rbac: grant %s to %s: %w", perm.Route(), name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return DefaultsReport{}, err
	}
	if report.RolesCreated > 0 || report.PermissionsCreated > 0 {
		s.logger.Info("rbac defaults initialized",
			slog.Int("roles_created", report.RolesCreated),
			slog.Int("permissions_created", report.PermissionsCreated))
	}
	return report, nil
}

func requireRoleAndPermission(ctx context.Context, st Store, roleID, permissionID int64) error {
	if _, err := st.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := st.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return nil
}
