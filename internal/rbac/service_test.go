package rbac

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

type stubUsers map[int64]bool

func (s stubUsers) UserExists(_ context.Context, id int64) (bool, error) {
	return s[id], nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryStore(), stubUsers{1: true, 2: true}, nil)
}

func mustRole(t *testing.T, svc *Service, name string) Role {
	t.Helper()
	role, err := svc.CreateRole(context.Background(), RoleInput{Name: name})
	require.NoError(t, err)
	return role
}

func mustPermission(t *testing.T, svc *Service, method, path string) Permission {
	t.Helper()
	perm, err := svc.CreatePermission(context.Background(), PermissionInput{Method: method, Path: path, Category: "Test"})
	require.NoError(t, err)
	return perm
}

func permissionIDs(perms []Permission) []int64 {
	ids := make([]int64, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t)
	mustRole(t, svc, "AUDITOR")

	_, err := svc.CreateRole(context.Background(), RoleInput{Name: "  AUDITOR "})
	require.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRoleValidatesInput(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateRole(context.Background(), RoleInput{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "name is required")
}

func TestCreatePermissionRejectsDuplicateRoute(t *testing.T) {
	svc := newTestService(t)
	mustPermission(t, svc, http.MethodGet, "/reports")

	_, err := svc.CreatePermission(context.Background(), PermissionInput{Method: "get", Path: "/reports"})
	require.ErrorIs(t, err, ErrDuplicateRoute)

	_, err = svc.CreatePermission(context.Background(), PermissionInput{Method: http.MethodPost, Path: "/reports"})
	assert.NoError(t, err)
}

func TestCreatePermissionValidatesInput(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreatePermission(context.Background(), PermissionInput{Method: "FETCH", Path: "reports"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAssignPermissionToRoleIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	role := mustRole(t, svc, "AUDITOR")
	perm := mustPermission(t, svc, http.MethodGet, "/reports")

	require.NoError(t, svc.AssignPermissionToRole(ctx, role.ID, perm.ID))
	require.NoError(t, svc.AssignPermissionToRole(ctx, role.ID, perm.ID))

	perms, err := svc.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestAssignmentsRejectUnknownIDs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	role := mustRole(t, svc, "AUDITOR")
	perm := mustPermission(t, svc, http.MethodGet, "/reports")

	assert.ErrorIs(t, svc.AssignPermissionToRole(ctx, 99, perm.ID), ErrNotFound)
	assert.ErrorIs(t, svc.AssignPermissionToRole(ctx, role.ID, 99), ErrNotFound)
	assert.ErrorIs(t, svc.RemovePermissionFromRole(ctx, 99, perm.ID), ErrNotFound)
	assert.ErrorIs(t, svc.RemovePermissionFromRole(ctx, role.ID, 99), ErrNotFound)
	assert.ErrorIs(t, svc.AssignRoleToUser(ctx, 1, 99), ErrNotFound)
	assert.ErrorIs(t, svc.AssignRoleToUser(ctx, 42, role.ID), ErrNotFound)
	assert.ErrorIs(t, svc.RemoveRoleFromUser(ctx, 42, role.ID), ErrNotFound)
	assert.ErrorIs(t, svc.RemoveRoleFromUser(ctx, 1, 99), shared.ErrNotFound)
}

func TestRemoveAbsentGrantIsNoop(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	role := mustRole(t, svc, "AUDITOR")
	perm := mustPermission(t, svc, http.MethodGet, "/reports")

	assert.NoError(t, svc.RemovePermissionFromRole(ctx, role.ID, perm.ID))
	assert.NoError(t, svc.RemoveRoleFromUser(ctx, 1, role.ID))
}

func TestAssignRoleToUserIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	role := mustRole(t, svc, "AUDITOR")

	require.NoError(t, svc.AssignRoleToUser(ctx, 1, role.ID))
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, role.ID))

	roles, err := svc.UserRoles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, roles, 1)

	names, err := svc.RoleNames(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"AUDITOR"}, names)
}

func TestEffectivePermissionsIsUnionOfRoles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	reader := mustRole(t, svc, "READER")
	writer := mustRole(t, svc, "WRITER")
	list := mustPermission(t, svc, http.MethodGet, "/docs")
	common := mustPermission(t, svc, http.MethodGet, "/docs/{id}")
	edit := mustPermission(t, svc, http.MethodPut, "/docs/{id}")

	require.NoError(t, svc.AssignPermissionToRole(ctx, reader.ID, list.ID))
	require.NoError(t, svc.AssignPermissionToRole(ctx, reader.ID, common.ID))
	require.NoError(t, svc.AssignPermissionToRole(ctx, writer.ID, common.ID))
	require.NoError(t, svc.AssignPermissionToRole(ctx, writer.ID, edit.ID))

	require.NoError(t, svc.AssignRoleToUser(ctx, 1, reader.ID))
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, writer.ID))

	perms, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{list.ID, common.ID, edit.ID}, permissionIDs(perms))

	require.NoError(t, svc.RemoveRoleFromUser(ctx, 1, writer.ID))

	perms, err = svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{list.ID, common.ID}, permissionIDs(perms))

	ok, err := svc.CanAccess(ctx, 1, http.MethodPut, "/docs/{id}")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.CanAccess(ctx, 1, http.MethodGet, "/docs/{id}")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteRoleDropsItsGrantsAndAssignments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	role := mustRole(t, svc, "TEMP")
	perm := mustPermission(t, svc, http.MethodGet, "/tmp")
	require.NoError(t, svc.AssignPermissionToRole(ctx, role.ID, perm.ID))
	require.NoError(t, svc.AssignRoleToUser(ctx, 2, role.ID))

	require.NoError(t, svc.DeleteRole(ctx, role.ID))

	perms, err := svc.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.ErrorIs(t, svc.DeleteRole(ctx, role.ID), ErrNotFound)
}

func TestUpdateRoleAndPermission(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mustRole(t, svc, "TAKEN")
	role := mustRole(t, svc, "OLD")
	perm := mustPermission(t, svc, http.MethodGet, "/a")
	mustPermission(t, svc, http.MethodGet, "/b")

	updated, err := svc.UpdateRole(ctx, role.ID, RoleInput{Name: "NEW", Description: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "NEW", updated.Name)

	_, err = svc.UpdateRole(ctx, role.ID, RoleInput{Name: "TAKEN"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = svc.UpdateRole(ctx, 99, RoleInput{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdatePermission(ctx, perm.ID, PermissionInput{Method: http.MethodGet, Path: "/b"})
	assert.ErrorIs(t, err, ErrDuplicateRoute)
	p, err := svc.UpdatePermission(ctx, perm.ID, PermissionInput{Method: http.MethodPost, Path: "/a", Category: "Moved"})
	require.NoError(t, err)
	assert.Equal(t, "POST /a", p.Route())

	byCat, err := svc.PermissionsByCategory(ctx, "Moved")
	require.NoError(t, err)
	assert.Equal(t, []int64{perm.ID}, permissionIDs(byCat))

	require.NoError(t, svc.DeletePermission(ctx, perm.ID))
	assert.ErrorIs(t, svc.DeletePermission(ctx, perm.ID), ErrNotFound)
}

func TestInitializeDefaultsIsRepeatable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.InitializeDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.RolesCreated)
	assert.Equal(t, len(DefaultCatalog()), first.PermissionsCreated)

	second, err := svc.InitializeDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultsReport{}, second)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
	perms, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(DefaultCatalog()))

	admin, err := svc.GetRoleByName(ctx, shared.AuthorityAdmin)
	require.NoError(t, err)
	adminPerms, err := svc.RolePermissions(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, adminPerms, len(DefaultCatalog()))

	user, err := svc.GetRoleByName(ctx, shared.AuthorityUser)
	require.NoError(t, err)
	userPerms, err := svc.RolePermissions(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, userPerms)
	assert.Less(t, len(userPerms), len(adminPerms))
}

func TestInitializeDefaultsKeepsCustomisedGrants(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.InitializeDefaults(ctx)
	require.NoError(t, err)

	user, err := svc.GetRoleByName(ctx, shared.AuthorityUser)
	require.NoError(t, err)
	perms, err := svc.RolePermissions(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, perms)
	require.NoError(t, svc.RemovePermissionFromRole(ctx, user.ID, perms[0].ID))

	_, err = svc.InitializeDefaults(ctx)
	require.NoError(t, err)

	after, err := svc.RolePermissions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(perms)-1)
}

func TestConcurrentGrantsLeaveSingleRow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	role := mustRole(t, svc, "AUDITOR")
	perm := mustPermission(t, svc, http.MethodGet, "/reports")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.AssignPermissionToRole(ctx, role.ID, perm.ID))
		}()
	}
	wg.Wait()

	perms, err := svc.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestEnsureRoleAndPermissionReturnExisting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	role, created, err := store.EnsureRole(ctx, "AUDITOR", "")
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := store.EnsureRole(ctx, "AUDITOR", "ignored")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, role.ID, again.ID)

	in := PermissionInput{Method: http.MethodGet, Path: "/reports", Category: "Test"}
	perm, created, err := store.EnsurePermission(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	samePerm, created, err := store.EnsurePermission(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, perm.ID, samePerm.ID)
}

func TestConcurrentInitializeDefaultsCreatesOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created DefaultsReport
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := svc.InitializeDefaults(ctx)
			assert.NoError(t, err)
			mu.Lock()
			created.RolesCreated += report.RolesCreated
			created.PermissionsCreated += report.PermissionsCreated
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultsReport{RolesCreated: 2, PermissionsCreated: len(DefaultCatalog())}, created)
}
