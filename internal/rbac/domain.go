package rbac

import (
	"strings"
	"time"
)

// Role groups permissions. Its name doubles as the authority string carried
// in access tokens.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission grants access to one HTTP route. (Method, Path) is unique.
type Permission struct {
	ID          int64     `json:"id"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Route renders the permission as "METHOD /path".
func (p Permission) Route() string {
	return p.Method + " " + p.Path
}

// Matches reports whether the permission covers the method and path.
func (p Permission) Matches(method, path string) bool {
	return strings.EqualFold(p.Method, method) && p.Path == path
}

// Assignment ties a permission to a role.
type Assignment struct {
	RoleID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// RoleInput is the payload for creating or updating a role.
type RoleInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// PermissionInput is the payload for creating or updating a permission.
type PermissionInput struct {
	Method      string `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Path        string `json:"path" validate:"required,startswith=/"`
	Category    string `json:"category" validate:"max=100"`
	Description string `json:"description"`
}

func (in RoleInput) normalize() RoleInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in PermissionInput) normalize() PermissionInput {
	in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
	in.Path = strings.TrimSpace(in.Path)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// DefaultsReport counts what InitializeDefaults had to create.
type DefaultsReport struct {
	RolesCreated       int `json:"roles_created"`
	PermissionsCreated int `json:"permissions_created"`
}
