package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/token"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// ErrInvalidRefreshToken is returned when a refresh token cannot be exchanged.
var ErrInvalidRefreshToken = fmt.Errorf("auth: invalid refresh token: %w", shared.ErrUnauthorized)

// Authenticator verifies sign-in credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (users.User, error)
}

// TokenIssuer signs and verifies token pairs.
type TokenIssuer interface {
	TokenVerifier
	IssueAccessToken(userID int64, subject string, authorities []string) (string, error)
	IssueRefreshToken(userID int64, subject string) (string, error)
}

// SignInInput carries sign-in credentials. Username may also be an email.
type SignInInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshInput carries the refresh token to exchange.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is returned by sign-in and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       int64  `json:"user_id"`
}

// Service wraps authentication business rules.
type Service struct {
	users      Authenticator
	principals PrincipalLoader
	tokens     TokenIssuer
	logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(users Authenticator, principals PrincipalLoader, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, principals: principals, tokens: tokens, logger: logger}
}

// SignIn checks credentials and issues an access and a refresh token.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (TokenPair, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return TokenPair{}, fmt.Errorf("auth: %w", err)
	}
	u, err := s.users.Authenticate(ctx, in.Username, in.Password)
	if err != nil {
		return TokenPair{}, err
	}
	principal, err := s.principals.LoadPrincipal(ctx, u.Username)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.tokens.IssueAccessToken(principal.UserID, principal.Subject, principal.Authorities)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(principal.UserID, principal.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	s.logger.Info("sign in", slog.String("subject", principal.Subject))
	return TokenPair{AccessToken: access, RefreshToken: refresh, UserID: principal.UserID}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is returned unchanged.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (TokenPair, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return TokenPair{}, fmt.Errorf("auth: %w", err)
	}
	subject, err := s.tokens.ExtractSubject(in.RefreshToken, token.Refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	principal, err := s.principals.LoadPrincipal(ctx, subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, ErrUserInactive) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	if !s.tokens.IsValid(in.RefreshToken, principal.Subject, token.Refresh) {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	access, err := s.tokens.IssueAccessToken(principal.UserID, principal.Subject, principal.Authorities)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: in.RefreshToken, UserID: principal.UserID}, nil
}
