package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/access-token", h.signIn)
	r.Post("/refresh-token", h.refresh)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in SignInInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := h.service.SignIn(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var in RefreshInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := h.service.Refresh(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error("auth request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	} else {
		h.logger.Warn("auth request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}
