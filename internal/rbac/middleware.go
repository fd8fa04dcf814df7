package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireRoute lets the request through when one of the caller's roles is
// granted the matched route, identified by method and chi route pattern
// (for example "GET /user/{id}"). It must wrap endpoints registered with
// With or inside Group so the full pattern is known.
func (m Middleware) RequireRoute() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Error(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			route := routePattern(r)
			allowed, err := m.Service.CanAccess(r.Context(), id.UserID, r.Method, route)
			if err != nil {
				m.logger().Error("rbac require route", slog.String("route", route), slog.Any("error", err))
				httpx.Error(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}
			if !allowed {
				m.logger().Warn("rbac denied",
					slog.String("subject", id.Subject),
					slog.String("method", r.Method),
					slog.String("route", route))
				httpx.Error(w, r, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
