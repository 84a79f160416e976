package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/service"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/telemetry"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated API key
	// principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"

	// AdminPrincipalKey is the context key for the authenticated admin
	// operator.
	AdminPrincipalKey contextKeyAuth = "admin_principal"
)

// DefaultHeader is the request header API keys are read from.
const DefaultHeader = "X-API-Key"

// Rejection kinds, surfaced in error bodies so callers can branch
// without parsing messages.
const (
	KindAuthRequired      = "authentication_required"
	KindInvalidFormat     = "invalid_key_format"
	KindProjectMismatch   = "project_mismatch"
	KindInvalidCredential = "invalid_credential"
)

// Principal is the authenticated API key identity exposed to handlers.
type Principal struct {
	KeyID     string
	Name      string
	Prefix    string
	ProjectID string
}

type apiKeyConfig struct {
	header       string
	enforceMatch bool
	optional     bool
	trackUsage   bool
	logger       *slog.Logger
	metrics      *telemetry.Metrics
}

// APIKeyOption adjusts how APIKeyAuth treats requests.
type APIKeyOption func(*apiKeyConfig)

// WithHeader changes the header the key is read from.
func WithHeader(name string) APIKeyOption {
	return func(c *apiKeyConfig) { c.header = name }
}

// Optional lets requests without a credential through unauthenticated
// instead of rejecting them. Requests that do carry a key are still
// fully validated.
func Optional() APIKeyOption {
	return func(c *apiKeyConfig) { c.optional = true }
}

// WithoutProjectMatch disables the check that the key's embedded project
// matches the route's project.
func WithoutProjectMatch() APIKeyOption {
	return func(c *apiKeyConfig) { c.enforceMatch = false }
}

// WithoutUsageTracking disables the asynchronous last-used update.
func WithoutUsageTracking() APIKeyOption {
	return func(c *apiKeyConfig) { c.trackUsage = false }
}

// WithLogger sets the logger for backend failures and usage-tracking
// errors.
func WithLogger(logger *slog.Logger) APIKeyOption {
	return func(c *apiKeyConfig) { c.logger = logger }
}

// WithMetrics records validation outcomes on the given instruments.
func WithMetrics(metrics *telemetry.Metrics) APIKeyOption {
	return func(c *apiKeyConfig) { c.metrics = metrics }
}

// APIKeyAuth returns middleware that authenticates requests with a
// project-scoped API key.
//
// The order of checks is fixed: header presence, then key format, then
// the project-match against the route's {projectID}, and only then the
// store. A malformed key or a project mismatch never reaches the store;
// the mismatch case is guaranteed to fail validation anyway, and asking
// the store would leak timing about whether the key's real project
// exists.
//
// A nil store disables authentication entirely. That is the escape
// hatch for deployments that have not wired a credential backend yet,
// not an error.
func APIKeyAuth(store apikey.Store, opts ...APIKeyOption) func(http.Handler) http.Handler {
	cfg := apiKeyConfig{
		header:       DefaultHeader,
		enforceMatch: true,
		trackUsage:   true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			rawKey := r.Header.Get(cfg.header)
			if rawKey == "" {
				if cfg.optional {
					next.ServeHTTP(w, r)
					return
				}
				cfg.count(r, "missing")
				writeAuthError(w, http.StatusUnauthorized, KindAuthRequired,
					"Authentication required. Provide the "+cfg.header+" header.")
				return
			}

			projectID, ok := apikey.ProjectID(rawKey)
			if !ok {
				cfg.count(r, "malformed")
				writeAuthError(w, http.StatusUnauthorized, KindInvalidFormat,
					"API key format not recognized")
				return
			}

			if cfg.enforceMatch {
				if routeProject := chi.URLParam(r, "projectID"); routeProject != "" && routeProject != projectID {
					cfg.count(r, "project_mismatch")
					writeAuthError(w, http.StatusForbidden, KindProjectMismatch,
						"API key does not belong to this project")
					return
				}
			}

			rec, err := store.Validate(r.Context(), projectID, rawKey)
			if err != nil {
				switch {
				case errors.Is(err, apikey.ErrMalformedKey),
					errors.Is(err, apikey.ErrKeyInvalid),
					errors.Is(err, apikey.ErrKeyExpired):
					cfg.count(r, "invalid")
					writeAuthError(w, http.StatusUnauthorized, KindInvalidCredential, "Invalid API key")
				default:
					cfg.logger.Error("api key validation failed",
						"error", err,
						"request_id", GetRequestID(r.Context()),
					)
					cfg.count(r, "error")
					writeAuthError(w, http.StatusInternalServerError, "", "Credential check failed")
				}
				return
			}

			principal := &Principal{
				KeyID:     rec.ID,
				Name:      rec.DisplayName,
				Prefix:    rec.Prefix,
				ProjectID: projectID,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)

			if cfg.trackUsage {
				// Off the request path. The request context is about to
				// end, so the update gets its own deadline, and failures
				// are logged rather than surfaced.
				go func() {
					tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := store.TouchLastUsed(tctx, principal.ProjectID, principal.KeyID); err != nil {
						cfg.logger.Warn("record key usage",
							"error", err,
							"key_prefix", principal.Prefix,
						)
					}
				}()
			}

			cfg.count(r, "ok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (c *apiKeyConfig) count(r *http.Request, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.KeyValidations.Add(r.Context(), 1,
		otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// GetPrincipal extracts the authenticated API key principal from the
// context. Returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// RequireAdmin returns middleware that admits only requests carrying a
// valid admin bearer token.
func RequireAdmin(auth *service.AdminAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, KindAuthRequired, "Admin token required")
				return
			}

			principal, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, KindInvalidCredential, "Invalid admin token")
				return
			}

			ctx := context.WithValue(r.Context(), AdminPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminPrincipal extracts the authenticated operator from the
// context. Returns nil when the request did not pass RequireAdmin.
func GetAdminPrincipal(ctx context.Context) *service.AdminPrincipal {
	if p, ok := ctx.Value(AdminPrincipalKey).(*service.AdminPrincipal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Kind: kind, Message: message},
	})
}
