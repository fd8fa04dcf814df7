package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/gatekeeper/internal/platform/db"
)

const (
	roleColumns       = `id, name, description, created_at, updated_at`
	permissionColumns = `id, method, path, category, description, created_at, updated_at`
)

// PostgresStore persists the role graph in PostgreSQL.
type PostgresStore struct {
	q    db.Querier
	pool db.TxBeginner
}

// NewPostgresStore constructs a store. pool is usually a *pgxpool.Pool and
// serves as both querier and transaction source.
func NewPostgresStore(pool interface {
	db.Querier
	db.TxBeginner
}) *PostgresStore {
	return &PostgresStore{q: pool, pool: pool}
}

// InTx runs fn inside a read-committed transaction, so an ON CONFLICT insert
// that waited on a concurrent writer sees its row in the next statement.
// Calls made on a store that is already transactional reuse the open
// transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return db.WithTxIsolation(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(&PostgresStore{q: tx})
	})
}

func (s *PostgresStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.q.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

func (s *PostgresStore) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(s.q.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, roleNotFound(id)
	}
	return role, err
}

func (s *PostgresStore) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(s.q.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("%w: role %q", ErrNotFound, name)
	}
	return role, err
}

func (s *PostgresStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	role, err := scanRole(s.q.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2)
RETURNING `+roleColumns, name, description))
	if db.IsUniqueViolation(err, "roles_name_key") {
		return Role{}, ErrDuplicateName
	}
	return role, err
}

func (s *PostgresStore) EnsureRole(ctx context.Context, name, description string) (Role, bool, error) {
	role, err := scanRole(s.q.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING
RETURNING `+roleColumns, name, description))
	if err == nil {
		return role, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Role{}, false, err
	}
	role, err = s.GetRoleByName(ctx, name)
	return role, false, err
}

func (s *PostgresStore) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	role, err := scanRole(s.q.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = now()
WHERE id = $1 RETURNING `+roleColumns, id, name, description))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Role{}, roleNotFound(id)
	case db.IsUniqueViolation(err, "roles_name_key"):
		return Role{}, ErrDuplicateName
	}
	return role, err
}

func (s *PostgresStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return roleNotFound(id)
	}
	return nil
}

func (s *PostgresStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY path, method`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *PostgresStore) ListPermissionsByCategory(ctx context.Context, category string) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE category = $1 ORDER BY path, method`, category)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *PostgresStore) GetPermission(ctx context.Context, id int64) (Permission, error) {
	perm, err := scanPermission(s.q.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, permissionNotFound(id)
	}
	return perm, err
}

func (s *PostgresStore) GetPermissionByRoute(ctx context.Context, method, path string) (Permission, error) {
	perm, err := scanPermission(s.q.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE method = $1 AND path = $2`, method, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, fmt.Errorf("%w: permission %s %s", ErrNotFound, method, path)
	}
	return perm, err
}

func (s *PostgresStore) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	perm, err := scanPermission(s.q.QueryRow(ctx, `INSERT INTO permissions (method, path, category, description)
VALUES ($1, $2, $3, $4) RETURNING `+permissionColumns, in.Method, in.Path, in.Category, in.Description))
	if db.IsUniqueViolation(err, "permissions_method_path_key") {
		return Permission{}, ErrDuplicateRoute
	}
	return perm, err
}

func (s *PostgresStore) EnsurePermission(ctx context.Context, in PermissionInput) (Permission, bool, error) {
	perm, err := scanPermission(s.q.QueryRow(ctx, `INSERT INTO permissions (method, path, category, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT permissions_method_path_key DO NOTHING
RETURNING `+permissionColumns, in.Method, in.Path, in.Category, in.Description))
	if err == nil {
		return perm, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, false, err
	}
	perm, err = s.GetPermissionByRoute(ctx, in.Method, in.Path)
	return perm, false, err
}

func (s *PostgresStore) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	perm, err := scanPermission(s.q.QueryRow(ctx, `UPDATE permissions
SET method = $2, path = $3, category = $4, description = $5, updated_at = now()
WHERE id = $1 RETURNING `+permissionColumns, id, in.Method, in.Path, in.Category, in.Description))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Permission{}, permissionNotFound(id)
	case db.IsUniqueViolation(err, "permissions_method_path_key"):
		return Permission{}, ErrDuplicateRoute
	}
	return perm, err
}

func (s *PostgresStore) DeletePermission(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return permissionNotFound(id)
	}
	return nil
}

func (s *PostgresStore) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.q.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: role %d or permission %d", ErrNotFound, roleID, permissionID)
	}
	return err
}

func (s *PostgresStore) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

func (s *PostgresStore) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `SELECT p.id, p.method, p.path, p.category, p.description, p.created_at, p.updated_at
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
WHERE rp.role_id = $1
ORDER BY p.path, p.method`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *PostgresStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.q.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: user %d or role %d", ErrNotFound, userID, roleID)
	}
	return err
}

func (s *PostgresStore) UnassignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func (s *PostgresStore) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.q.Query(ctx, `SELECT r.id, r.name, r.description, r.created_at, r.updated_at
FROM roles r
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

func (s *PostgresStore) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `SELECT DISTINCT p.id, p.method, p.path, p.category, p.description, p.created_at, p.updated_at
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = $1
ORDER BY p.path, p.method`, userID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Method, &p.Path, &p.Category, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
