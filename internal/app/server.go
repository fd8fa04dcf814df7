package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/gatekeeper/internal/auth"
	"github.com/odyssey-erp/gatekeeper/internal/observability"
	"github.com/odyssey-erp/gatekeeper/internal/ratelimit"
	"github.com/odyssey-erp/gatekeeper/internal/rbac"
	"github.com/odyssey-erp/gatekeeper/internal/token"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// Backends carries the external connections selected by configuration.
// Pool is required for the postgres credential store, Redis for the redis
// rate-limit backend.
type Backends struct {
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	UserOptions []users.Option
}

// Server is the fully wired application.
type Server struct {
	Handler http.Handler
	Metrics *observability.Metrics
	Tokens  *token.Service
	Users   *users.Service
	RBAC    *rbac.Service
	Limiter *ratelimit.Limiter

	memoryLimits *ratelimit.MemoryStore
	cfg          *Config
	logger       *slog.Logger
}

// NewServer builds stores, services and the router from configuration.
func NewServer(cfg *Config, logger *slog.Logger, backends Backends) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := token.NewService(token.Config{
		AccessSecret:  cfg.JWTAccessKey,
		RefreshSecret: cfg.JWTRefreshKey,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("app: token service: %w", err)
	}

	var (
		userStore users.Store
		rbacStore rbac.Store
	)
	switch cfg.CredentialStore {
	case BackendPostgres:
		if backends.Pool == nil {
			return nil, errors.New("app: postgres credential store needs a pool")
		}
		userStore = users.NewPostgresStore(backends.Pool)
		rbacStore = rbac.NewPostgresStore(backends.Pool)
	default:
		userStore = users.NewMemoryStore()
		rbacStore = rbac.NewMemoryStore()
	}

	var (
		limitStore   ratelimit.Store
		memoryLimits *ratelimit.MemoryStore
	)
	switch cfg.RateLimitBackend {
	case BackendRedis:
		if backends.Redis == nil {
			return nil, errors.New("app: redis rate limit backend needs a client")
		}
		limitStore = ratelimit.NewRedisStore(backends.Redis, "")
	default:
		memoryLimits = ratelimit.NewMemoryStore()
		limitStore = memoryLimits
	}

	metrics := observability.NewMetrics()

	userService := users.NewService(userStore, logger, backends.UserOptions...)
	rbacService := rbac.NewService(rbacStore, userService, logger)
	directory := auth.NewDirectory(userService, rbacService)
	authService := auth.NewService(userService, directory, tokens, logger)

	limiter := ratelimit.NewLimiter(limitStore, cfg.RateLimitWindow, cfg.RateLimitMax)
	interceptor := ratelimit.NewInterceptor(limiter, ratelimit.InterceptorConfig{
		Guarded:    cfg.RateLimitGuarded,
		Exempt:     cfg.RateLimitExempt,
		Logger:     logger,
		Registerer: metrics.Registerer(),
	})
	filter := auth.NewFilter(tokens, directory, logger, metrics.Registerer())
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	router := NewRouter(RouterParams{
		Logger:       logger,
		Config:       cfg,
		Interceptor:  interceptor,
		Filter:       filter,
		Metrics:      metrics,
		AuthHandler:  auth.NewHandler(logger, authService),
		UsersHandler: users.NewHandler(logger, userService, rbacMiddleware),
		RolesHandler: rbac.NewHandler(logger, rbacService),
	})

	return &Server{
		Handler:      router,
		Metrics:      metrics,
		Tokens:       tokens,
		Users:        userService,
		RBAC:         rbacService,
		Limiter:      limiter,
		memoryLimits: memoryLimits,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// RunSweeper evicts idle in-memory rate-limit buckets until ctx is done.
// With the redis backend keys expire on their own and it returns at once.
func (s *Server) RunSweeper(ctx context.Context) error {
	if s.memoryLimits == nil {
		return nil
	}
	return s.memoryLimits.RunSweeper(ctx, s.cfg.RateLimitWindow, s.cfg.RateLimitWindow, nil)
}
