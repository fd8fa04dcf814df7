package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gatekeeper/internal/platform/db"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// Bootstrap prepares the credential store: schema (postgres only), default
// roles and permissions, and the optional bootstrap administrator.
func (s *Server) Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if s.cfg.CredentialStore == BackendPostgres && pool != nil {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}
	report, err := s.RBAC.InitializeDefaults(ctx)
	if err != nil {
		return fmt.Errorf("app: initialize defaults: %w", err)
	}
	s.logger.Info("rbac defaults ready",
		slog.Int("roles_created", report.RolesCreated),
		slog.Int("permissions_created", report.PermissionsCreated))

	if s.cfg.BootstrapAdminUsername == "" {
		return nil
	}
	admin, err := s.ensureAdmin(ctx)
	if err != nil {
		return fmt.Errorf("app: bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin ready", slog.Int64("user_id", admin.ID), slog.String("username", admin.Username))
	return nil
}

func (s *Server) ensureAdmin(ctx context.Context) (users.User, error) {
	admin, err := s.Users.FindByUsername(ctx, s.cfg.BootstrapAdminUsername)
	switch {
	case errors.Is(err, users.ErrNotFound):
		admin, err = s.Users.Create(ctx, users.CreateInput{
			Username: s.cfg.BootstrapAdminUsername,
			Email:    s.cfg.BootstrapAdminEmail,
			Password: s.cfg.BootstrapAdminPassword,
		})
		if err != nil {
			return users.User{}, err
		}
	case err != nil:
		return users.User{}, err
	}
	if admin, err = s.Users.Activate(ctx, admin.ID); err != nil {
		return users.User{}, err
	}
	role, err := s.RBAC.GetRoleByName(ctx, shared.AuthorityAdmin)
	if err != nil {
		return users.User{}, err
	}
	if err := s.RBAC.AssignRoleToUser(ctx, admin.ID, role.ID); err != nil {
		return users.User{}, err
	}
	return admin, nil
}
