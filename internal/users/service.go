package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Service handles user business logic.
type Service struct {
	store  Store
	logger *slog.Logger
	cost   int
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService builds Service instance.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a user with a hashed password and status NONE.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, fmt.Errorf("users: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u, err := s.store.Create(ctx, User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Status:       StatusNone,
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return u, nil
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.store.Get(ctx, id)
}

// FindByUsername fetches a user by exact username.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.store.FindByUsername(ctx, username)
}

// FindByEmail fetches a user by email, ignoring case.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.store.FindByEmail(ctx, email)
}

// FindByLogin resolves a sign-in name, which may be a username or an email.
func (s *Service) FindByLogin(ctx context.Context, login string) (User, error) {
	login = strings.TrimSpace(login)
	u, err := s.store.FindByUsername(ctx, login)
	if err == nil || !errors.Is(err, ErrNotFound) || !strings.Contains(login, "@") {
		return u, err
	}
	return s.store.FindByEmail(ctx, login)
}

// List returns all users ordered by ID.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// UserExists reports whether id names a stored user.
func (s *Service) UserExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Authenticate checks a login and password. Unknown users, wrong passwords
// and deactivated accounts all yield shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	u, err := s.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		return User{}, err
	}
	if !u.CanSignIn() {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return u, nil
}

// Update changes a user's username and email.
func (s *Service) Update(ctx context.Context, in UpdateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, fmt.Errorf("users: %w", err)
	}
	u, err := s.store.Update(ctx, in.ID, in.Username, in.Email)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user updated", slog.Int64("user_id", u.ID))
	return u, nil
}

// Activate marks the account ACTIVE.
func (s *Service) Activate(ctx context.Context, id int64) (User, error) {
	return s.setStatus(ctx, id, StatusActive)
}

// Deactivate soft-deletes the account; it can no longer sign in.
func (s *Service) Deactivate(ctx context.Context, id int64) (User, error) {
	return s.setStatus(ctx, id, StatusInactive)
}

func (s *Service) setStatus(ctx context.Context, id int64, status Status) (User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Status == status {
		return u, nil
	}
	u, err = s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user status changed", slog.Int64("user_id", id), slog.String("status", string(status)))
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id int64, in ChangePasswordInput) error {
	if err := shared.ValidateStruct(in); err != nil {
		return fmt.Errorf("users: %w", err)
	}
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.store.UpdatePassword(ctx, id, string(hash))
}
