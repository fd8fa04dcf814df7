package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
)

// RejectionMessage is the body text of every throttled response.
const RejectionMessage = "Rate limit exceeded. Please try again later."

// Interceptor throttles requests to guarded path prefixes.
type Interceptor struct {
	limiter  *Limiter
	guarded  []string
	exempt   []string
	logger   *slog.Logger
	rejected prometheus.Counter
}

// InterceptorConfig lists the path prefixes handled by the interceptor.
type InterceptorConfig struct {
	Guarded []string
	Exempt  []string
	Logger  *slog.Logger
	// Registerer receives the rejection counter when set.
	Registerer prometheus.Registerer
}

// NewInterceptor wires a limiter into HTTP middleware.
func NewInterceptor(limiter *Limiter, cfg InterceptorConfig) *Interceptor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_ratelimit_rejections_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(rejected)
	}
	return &Interceptor{
		limiter:  limiter,
		guarded:  cleanPrefixes(cfg.Guarded),
		exempt:   cleanPrefixes(cfg.Exempt),
		logger:   logger,
		rejected: rejected,
	}
}

// Guards reports whether path is subject to limiting.
func (i *Interceptor) Guards(path string) bool {
	if hasAnyPrefix(path, i.exempt) {
		return false
	}
	return hasAnyPrefix(path, i.guarded)
}

// Middleware returns the http middleware.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !i.Guards(path) {
			next.ServeHTTP(w, r)
			return
		}
		key := ClientIP(r) + ":" + path
		decision, err := i.limiter.Allow(r.Context(), key)
		if err != nil {
			// Store outages must not take the API down with them.
			i.logger.Warn("rate limit store unavailable", slog.String("key", key), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			i.rejected.Inc()
			i.logger.Warn("rate limit exceeded", slog.String("key", key))
			httpx.JSON(w, http.StatusTooManyRequests, map[string]string{"error": RejectionMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the caller address: first X-Forwarded-For entry, then
// X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func cleanPrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
