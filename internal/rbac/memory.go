package rbac

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type pair struct{ a, b int64 }

// MemoryStore keeps the role graph in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	nextRole    int64
	nextPerm    int64
	roles       map[int64]Role
	permissions map[int64]Permission
	grants      map[pair]time.Time // role, permission
	assignments map[pair]time.Time // user, role
	now         func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:       make(map[int64]Role),
		permissions: make(map[int64]Permission),
		grants:      make(map[pair]time.Time),
		assignments: make(map[pair]time.Time),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// InTx serialises fn against other InTx callers. Individual calls are already
// atomic, so there is no rollback.
func (m *MemoryStore) InTx(_ context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *MemoryStore) ListRoles(_ context.Context) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sortRoles(out)
	return out, nil
}

func (m *MemoryStore) GetRole(_ context.Context, id int64) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, roleNotFound(id)
	}
	return r, nil
}

func (m *MemoryStore) GetRoleByName(_ context.Context, name string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *MemoryStore) CreateRole(_ context.Context, name, description string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roleNameTaken(name, 0) {
		return Role{}, ErrDuplicateName
	}
	m.nextRole++
	now := m.now()
	r := Role{ID: m.nextRole, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	m.roles[r.ID] = r
	return r, nil
}

func (m *MemoryStore) EnsureRole(ctx context.Context, name, description string) (Role, bool, error) {
	role, err := m.CreateRole(ctx, name, description)
	if errors.Is(err, ErrDuplicateName) {
		role, err = m.GetRoleByName(ctx, name)
		return role, false, err
	}
	return role, err == nil, err
}

func (m *MemoryStore) UpdateRole(_ context.Context, id int64, name, description string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, roleNotFound(id)
	}
	if m.roleNameTaken(name, id) {
		return Role{}, ErrDuplicateName
	}
	r.Name = name
	r.Description = description
	r.UpdatedAt = m.now()
	m.roles[id] = r
	return r, nil
}

func (m *MemoryStore) DeleteRole(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return roleNotFound(id)
	}
	delete(m.roles, id)
	for k := range m.grants {
		if k.a == id {
			delete(m.grants, k)
		}
	}
	for k := range m.assignments {
		if k.b == id {
			delete(m.assignments, k)
		}
	}
	return nil
}

func (m *MemoryStore) ListPermissions(_ context.Context) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sortPermissions(out)
	return out, nil
}

func (m *MemoryStore) ListPermissionsByCategory(_ context.Context, category string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0)
	for _, p := range m.permissions {
		if p.Category == category {
			out = append(out, p)
		}
	}
	sortPermissions(out)
	return out, nil
}

func (m *MemoryStore) GetPermission(_ context.Context, id int64) (Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.permissions[id]
	if !ok {
		return Permission{}, permissionNotFound(id)
	}
	return p, nil
}

func (m *MemoryStore) GetPermissionByRoute(_ context.Context, method, path string) (Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.permissions {
		if p.Method == method && p.Path == path {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (m *MemoryStore) CreatePermission(_ context.Context, in PermissionInput) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.routeTaken(in.Method, in.Path, 0) {
		return Permission{}, ErrDuplicateRoute
	}
	m.nextPerm++
	now := m.now()
	p := Permission{
		ID:          m.nextPerm,
		Method:      in.Method,
		Path:        in.Path,
		Category:    in.Category,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.permissions[p.ID] = p
	return p, nil
}

func (m *MemoryStore) EnsurePermission(ctx context.Context, in PermissionInput) (Permission, bool, error) {
	perm, err := m.CreatePermission(ctx, in)
	if errors.Is(err, ErrDuplicateRoute) {
		perm, err = m.GetPermissionByRoute(ctx, in.Method, in.Path)
		return perm, false, err
	}
	return perm, err == nil, err
}

func (m *MemoryStore) UpdatePermission(_ context.Context, id int64, in PermissionInput) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.permissions[id]
	if !ok {
		return Permission{}, permissionNotFound(id)
	}
	if m.routeTaken(in.Method, in.Path, id) {
		return Permission{}, ErrDuplicateRoute
	}
	p.Method = in.Method
	p.Path = in.Path
	p.Category = in.Category
	p.Description = in.Description
	p.UpdatedAt = m.now()
	m.permissions[id] = p
	return p, nil
}

func (m *MemoryStore) DeletePermission(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.permissions[id]; !ok {
		return permissionNotFound(id)
	}
	delete(m.permissions, id)
	for k := range m.grants {
		if k.b == id {
			delete(m.grants, k)
		}
	}
	return nil
}

func (m *MemoryStore) GrantPermission(_ context.Context, roleID, permissionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return roleNotFound(roleID)
	}
	if _, ok := m.permissions[permissionID]; !ok {
		return permissionNotFound(permissionID)
	}
	key := pair{roleID, permissionID}
	if _, ok := m.grants[key]; !ok {
		m.grants[key] = m.now()
	}
	return nil
}

func (m *MemoryStore) RevokePermission(_ context.Context, roleID, permissionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, pair{roleID, permissionID})
	return nil
}

func (m *MemoryStore) RolePermissions(_ context.Context, roleID int64) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0)
	for k := range m.grants {
		if k.a == roleID {
			out = append(out, m.permissions[k.b])
		}
	}
	sortPermissions(out)
	return out, nil
}

func (m *MemoryStore) AssignRole(_ context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return roleNotFound(roleID)
	}
	key := pair{userID, roleID}
	if _, ok := m.assignments[key]; !ok {
		m.assignments[key] = m.now()
	}
	return nil
}

func (m *MemoryStore) UnassignRole(_ context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, pair{userID, roleID})
	return nil
}

func (m *MemoryStore) UserRoles(_ context.Context, userID int64) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0)
	for k := range m.assignments {
		if k.a == userID {
			out = append(out, m.roles[k.b])
		}
	}
	sortRoles(out)
	return out, nil
}

func (m *MemoryStore) UserPermissions(_ context.Context, userID int64) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]struct{})
	out := make([]Permission, 0)
	for a := range m.assignments {
		if a.a != userID {
			continue
		}
		for g := range m.grants {
			if g.a != a.b {
				continue
			}
			if _, dup := seen[g.b]; dup {
				continue
			}
			seen[g.b] = struct{}{}
			out = append(out, m.permissions[g.b])
		}
	}
	sortPermissions(out)
	return out, nil
}

func (m *MemoryStore) roleNameTaken(name string, except int64) bool {
	for id, r := range m.roles {
		if id != except && r.Name == name {
			return true
		}
	}
	return false
}

func (m *MemoryStore) routeTaken(method, path string, except int64) bool {
	for id, p := range m.permissions {
		if id != except && p.Method == method && p.Path == path {
			return true
		}
	}
	return false
}

func sortRoles(roles []Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Path != perms[j].Path {
			return perms[i].Path < perms[j].Path
		}
		return perms[i].Method < perms[j].Method
	})
}

var _ Store = (*MemoryStore)(nil)
