package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/token"
)

const bearerPrefix = "Bearer "

// InvalidTokenMessage is the 401 message for tokens that fail verification.
const InvalidTokenMessage = "Invalid or expired JWT token"

// TokenVerifier is the subset of token.Service the filter needs.
type TokenVerifier interface {
	ExtractSubject(tokenString string, domain token.KeyDomain) (string, error)
	IsValid(tokenString, expectedSubject string, domain token.KeyDomain) bool
}

// Filter outcomes recorded in gatekeeper_auth_filter_results_total.
const (
	resultAnonymous     = "anonymous"
	resultRejected      = "rejected"
	resultReentered     = "reentered"
	resultLookupFailed  = "lookup_failed"
	resultInvalid       = "invalid"
	resultAuthenticated = "authenticated"
)

// Filter attaches the caller identity to the request context when a valid
// access token is presented.
type Filter struct {
	tokens     TokenVerifier
	principals PrincipalLoader
	logger     *slog.Logger
	results    *prometheus.CounterVec
}

// NewFilter builds a Filter. reg may be nil.
func NewFilter(tokens TokenVerifier, principals PrincipalLoader, logger *slog.Logger, reg prometheus.Registerer) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_auth_filter_results_total",
		Help: "Authorization filter outcomes by result.",
	}, []string{"result"})
	if reg != nil {
		reg.MustRegister(results)
	}
	return &Filter{tokens: tokens, principals: principals, logger: logger, results: results}
}

// Middleware runs the filter. Requests without a bearer credential pass
// through anonymously; a credential that fails verification ends the request
// with 401. Everything else is forwarded, with or without an identity.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			f.record(resultAnonymous)
			next.ServeHTTP(w, r)
			return
		}
		raw := header[len(bearerPrefix):]

		subject, err := f.tokens.ExtractSubject(raw, token.Access)
		if err != nil {
			f.record(resultRejected)
			f.logger.Warn("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.Error(w, r, http.StatusUnauthorized, InvalidTokenMessage)
			return
		}

		ctx := r.Context()
		if _, ok := shared.IdentityFromContext(ctx); ok {
			f.record(resultReentered)
			next.ServeHTTP(w, r)
			return
		}

		principal, err := f.principals.LoadPrincipal(ctx, subject)
		if err != nil {
			f.record(resultLookupFailed)
			f.logger.Warn("principal lookup failed", slog.String("subject", subject), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		if !f.tokens.IsValid(raw, principal.Subject, token.Access) {
			f.record(resultInvalid)
			f.logger.Warn("bearer token does not match principal", slog.String("subject", subject))
			next.ServeHTTP(w, r)
			return
		}

		f.record(resultAuthenticated)
		ctx = shared.WithIdentity(ctx, shared.Identity{
			UserID:      principal.UserID,
			Subject:     principal.Subject,
			Authorities: principal.Authorities,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *Filter) record(result string) {
	f.results.WithLabelValues(result).Inc()
}
