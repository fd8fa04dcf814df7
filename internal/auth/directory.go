package auth

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// ErrUserInactive is returned when a deactivated account is looked up.
var ErrUserInactive = fmt.Errorf("auth: user inactive: %w", shared.ErrUnauthorized)

// Principal is the identity and authority set resolved for a token subject.
type Principal struct {
	UserID      int64
	Subject     string
	Authorities []string
}

// PrincipalLoader resolves a token subject to its current authorities.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, subject string) (Principal, error)
}

// UserFinder looks users up by username.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (users.User, error)
}

// RoleResolver lists the role names held by a user.
type RoleResolver interface {
	RoleNames(ctx context.Context, userID int64) ([]string, error)
}

// Directory loads principals from the user and role stores. Authorities are
// the names of the roles the user currently holds.
type Directory struct {
	users UserFinder
	roles RoleResolver
}

// NewDirectory constructs a Directory.
func NewDirectory(users UserFinder, roles RoleResolver) *Directory {
	return &Directory{users: users, roles: roles}
}

// LoadPrincipal implements PrincipalLoader.
func (d *Directory) LoadPrincipal(ctx context.Context, subject string) (Principal, error) {
	u, err := d.users.FindByUsername(ctx, subject)
	if err != nil {
		return Principal{}, fmt.Errorf("auth: load principal %q: %w", subject, err)
	}
	if !u.CanSignIn() {
		return Principal{}, ErrUserInactive
	}
	names, err := d.roles.RoleNames(ctx, u.ID)
	if err != nil {
		return Principal{}, fmt.Errorf("auth: load authorities for %q: %w", subject, err)
	}
	return Principal{UserID: u.ID, Subject: u.Username, Authorities: names}, nil
}
