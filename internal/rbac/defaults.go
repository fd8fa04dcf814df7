package rbac

import (
	"net/http"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

const categoryUserManagement = "User Management"

// catalogEntry is a baseline permission and the core roles it is granted to
// when first created.
type catalogEntry struct {
	PermissionInput
	Roles []string
}

// DefaultCatalog returns the baseline permission set.
func DefaultCatalog() []PermissionInput {
	out := make([]PermissionInput, 0, len(baseline))
	for _, e := range baseline {
		out = append(out, e.PermissionInput)
	}
	return out
}

var (
	adminOnly = []string{shared.AuthorityAdmin}
	everyone  = []string{shared.AuthorityAdmin, shared.AuthorityUser}
)

var baseline = []catalogEntry{
	{PermissionInput{Method: http.MethodGet, Path: "/user/list", Category: categoryUserManagement, Description: "List users"}, adminOnly},
	{PermissionInput{Method: http.MethodGet, Path: "/user/{id}", Category: categoryUserManagement, Description: "View user details"}, everyone},
	{PermissionInput{Method: http.MethodPost, Path: "/user/add", Category: categoryUserManagement, Description: "Create user"}, adminOnly},
	{PermissionInput{Method: http.MethodPut, Path: "/user/update", Category: categoryUserManagement, Description: "Update user"}, everyone},
	{PermissionInput{Method: http.MethodPatch, Path: "/user/{id}/activate", Category: categoryUserManagement, Description: "Activate user"}, adminOnly},
	{PermissionInput{Method: http.MethodDelete, Path: "/user/{id}/del", Category: categoryUserManagement, Description: "Delete user"}, adminOnly},
	{PermissionInput{Method: http.MethodPatch, Path: "/user/change-pwd", Category: categoryUserManagement, Description: "Change password"}, everyone},
}
