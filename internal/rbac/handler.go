package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
)

// Handler exposes role and permission management over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/list", h.listRoles)
	r.Post("/create", h.createRole)
	r.Post("/initialize", h.initialize)

	r.Get("/permissions", h.listPermissions)
	r.Post("/permissions", h.createPermission)
	r.Get("/permissions/category/{category}", h.permissionsByCategory)
	r.Put("/permissions/{permissionId}", h.updatePermission)
	r.Delete("/permissions/{permissionId}", h.deletePermission)

	r.Post("/assign/{userId}/{roleId}", h.assignRole)
	r.Delete("/assign/{userId}/{roleId}", h.removeRole)
	r.Get("/user/{userId}/roles", h.userRoles)
	r.Get("/user/{userId}/permissions", h.userPermissions)

	r.Get("/{roleId}", h.getRole)
	r.Put("/{roleId}", h.updateRole)
	r.Delete("/{roleId}", h.deleteRole)
	r.Get("/{roleId}/permissions", h.rolePermissions)
	r.Post("/{roleId}/permissions/{permissionId}", h.grant)
	r.Delete("/{roleId}/permissions/{permissionId}", h.revoke)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Roles retrieved", roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Role retrieved", role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if !decode(w, r, &in) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, "Role created", role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	var in RoleInput
	if !decode(w, r, &in) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Role updated", role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Role deleted", nil)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Permissions retrieved", perms)
}

func (h *Handler) permissionsByCategory(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.PermissionsByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Permissions retrieved", perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in PermissionInput
	if !decode(w, r, &in) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, "Permission created", perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "permissionId")
	if !ok {
		return
	}
	var in PermissionInput
	if !decode(w, r, &in) {
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Permission updated", perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "permissionId")
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Permission deleted", nil)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Role permissions retrieved", perms)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permissionId")
	if !ok {
		return
	}
	if err := h.service.AssignPermissionToRole(r.Context(), roleID, permID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Permission assigned to role", nil)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permissionId")
	if !ok {
		return
	}
	if err := h.service.RemovePermissionFromRole(r.Context(), roleID, permID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Permission removed from role", nil)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	if err := h.service.AssignRoleToUser(r.Context(), userID, roleID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Role assigned to user", nil)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}
	if err := h.service.RemoveRoleFromUser(r.Context(), userID, roleID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Role removed from user", nil)
}

func (h *Handler) userRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	roles, err := h.service.UserRoles(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "User roles retrieved", roles)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "User permissions retrieved", perms)
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.InitializeDefaults(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Default roles and permissions initialized", report)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error("rbac request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, r, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
