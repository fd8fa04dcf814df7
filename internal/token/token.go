// Package token issues and verifies the signed bearer credentials used by
// the HTTP API.
//
// Access and refresh tokens live in two separate key domains. Each domain
// has its own HMAC secret, so a token signed for one domain never verifies
// in the other; there is no "type" claim that a forger could flip.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeyDomain selects the signing key a token is bound to.
type KeyDomain int

const (
	// Access tokens authorize API calls directly.
	Access KeyDomain = iota + 1
	// Refresh tokens are only exchanged for new access tokens.
	Refresh
)

func (d KeyDomain) String() string {
	switch d {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Default lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// minKeyBytes is the smallest secret accepted for HS256.
const minKeyBytes = 32

// Sentinel errors.
var (
	ErrInvalidToken = errors.New("token: invalid")
	ErrExpiredToken = errors.New("token: expired")
	ErrInvalidKey   = errors.New("token: invalid signing key")
)

// Claims is the payload carried by both token kinds. Authorities is empty
// on refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID      int64  `json:"userId"`
	Authorities string `json:"authorities,omitempty"`
}

// AuthorityList splits the comma-joined authorities claim.
func (c *Claims) AuthorityList() []string {
	if c.Authorities == "" {
		return nil
	}
	return strings.Split(c.Authorities, ",")
}

// Config holds the base64 encoded secrets and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service generates and verifies tokens. It is safe for concurrent use; its
// keys are fixed at construction.
type Service struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService decodes both secrets and builds a Service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	accessKey, err := decodeKey(cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: access: %w", ErrInvalidKey, err)
	}
	refreshKey, err := decodeKey(cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh: %w", ErrInvalidKey, err)
	}
	if string(accessKey) == string(refreshKey) {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrInvalidKey)
	}
	s := &Service{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func decodeKey(secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, err
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("need at least %d bytes, got %d", minKeyBytes, len(key))
	}
	return key, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccessToken signs a short-lived token with the access key.
func (s *Service) IssueAccessToken(userID int64, subject string, authorities []string) (string, error) {
	return s.sign(Access, Claims{
		RegisteredClaims: s.registered(subject, s.accessTTL),
		UserID:           userID,
		Authorities:      strings.Join(authorities, ","),
	})
}

// IssueRefreshToken signs a long-lived token with the refresh key.
func (s *Service) IssueRefreshToken(userID int64, subject string) (string, error) {
	return s.sign(Refresh, Claims{
		RegisteredClaims: s.registered(subject, s.refreshTTL),
		UserID:           userID,
	})
}

// ExtractSubject verifies the token under the domain's key and returns its
// subject. Every decoding, signature, or expiry failure is reported as an
// error wrapping ErrInvalidToken or ErrExpiredToken.
func (s *Service) ExtractSubject(tokenString string, domain KeyDomain) (string, error) {
	claims, err := s.Parse(tokenString, domain)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// IsValid reports whether the token verifies under domain, names exactly
// expectedSubject, and has not expired.
func (s *Service) IsValid(tokenString, expectedSubject string, domain KeyDomain) bool {
	claims, err := s.Parse(tokenString, domain)
	if err != nil {
		return false
	}
	if claims.Subject != expectedSubject {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Time.After(s.now())
}

// Parse verifies the token and returns its claims.
func (s *Service) Parse(tokenString string, domain KeyDomain) (*Claims, error) {
	key, err := s.key(domain)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (s *Service) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (s *Service) sign(domain KeyDomain, claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("token: signing %s token: empty subject", domain)
	}
	key, err := s.key(domain)
	if err != nil {
		return "", err
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("token: signing %s token: %w", domain, err)
	}
	return signed, nil
}

func (s *Service) key(domain KeyDomain) ([]byte, error) {
	switch domain {
	case Access:
		return s.accessKey, nil
	case Refresh:
		return s.refreshKey, nil
	default:
		return nil, fmt.Errorf("%w: unknown key domain %d", ErrInvalidToken, domain)
	}
}
