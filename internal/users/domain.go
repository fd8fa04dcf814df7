package users

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Status is the account lifecycle state.
type Status string

const (
	// StatusNone marks an account that has never been activated.
	StatusNone     Status = "NONE"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// User is a principal that can sign in.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanSignIn reports whether the account may obtain tokens. Deactivated
// accounts are the only ones refused.
func (u User) CanSignIn() bool {
	return u.Status != StatusInactive
}

// CreateInput is the payload for registering a user.
type CreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

// UpdateInput is the payload for editing a user's profile.
type UpdateInput struct {
	ID       int64  `json:"id" validate:"required,gt=0"`
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// ChangePasswordInput is the payload for a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,maxbytes=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// Errors returned by the store and service.
var (
	ErrNotFound          = fmt.Errorf("users: %w", shared.ErrNotFound)
	ErrDuplicateUsername = fmt.Errorf("users: username %w", shared.ErrConflict)
	ErrDuplicateEmail    = fmt.Errorf("users: email %w", shared.ErrConflict)
	ErrPasswordMismatch  = fmt.Errorf("users: %w: passwords do not match", shared.ErrValidation)
	ErrWrongPassword     = fmt.Errorf("users: %w: current password is incorrect", shared.ErrValidation)
)
