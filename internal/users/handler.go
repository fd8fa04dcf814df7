package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-erp/gatekeeper/internal/rbac"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes. Every route is checked against the
// caller's route permissions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoute())
		r.Get("/list", h.listUsers)
		r.Post("/add", h.createUser)
		r.Put("/update", h.updateUser)
		r.Patch("/change-pwd", h.changePassword)
		r.Get("/{id}", h.getUser)
		r.Patch("/{id}/activate", h.activateUser)
		r.Delete("/{id}/del", h.deactivateUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Users retrieved", users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "User retrieved", u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, "User created", u)
}

// updateUser lets members edit their own profile; admins may edit anyone.
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID != identity.UserID && !identity.HasAuthority(shared.AuthorityAdmin) {
		httpx.Error(w, r, http.StatusForbidden, "Access denied")
		return
	}
	u, err := h.service.Update(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusAccepted, "User updated", u)
}

func (h *Handler) activateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Activate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "User activated", u)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Deactivate(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "User deleted", nil)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	var in ChangePasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ChangePassword(r.Context(), identity.UserID, in); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Respond(w, http.StatusOK, "Password changed", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error("users request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
