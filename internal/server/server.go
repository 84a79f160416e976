package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/handler"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/server/middleware"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/service"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/storage"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/telemetry"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// ReadTimeout covers the whole request including the body, so it is
	// sized for large bundle uploads rather than typical API calls.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	CORSOrigins    []string
	MaxUploadBytes int64

	// RateLimitPerMin caps requests per client IP across all routes.
	// UploadRatePerMin caps requests per API key on the upload routes.
	// Zero disables the respective limiter.
	RateLimitPerMin  int
	UploadRatePerMin int

	// PublicDownloads lets the viewer routes serve without a credential.
	// Requests that do present a key are still validated.
	PublicDownloads bool

	// BaseURL is the externally visible URL advertised in the OpenAPI
	// document. May be empty.
	BaseURL string
	Version string
}

// DefaultConfig returns a Config with the defaults a fresh deployment gets.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		ReadTimeout:     15 * time.Minute,
		WriteTimeout:    15 * time.Minute,
		IdleTimeout:     120 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxUploadBytes:  handler.DefaultMaxUploadBytes,
		Version:         "dev",
	}
}

// Server is the top-level HTTP server for Scry. It owns the chi router and
// wires the credential store, object storage and admin auth into the route
// groups.
type Server struct {
	cfg        Config
	router     chi.Router
	keys       apikey.Store
	objects    storage.ObjectStore
	adminAuth  *service.AdminAuth
	telemetry  *telemetry.Module
	metrics    *telemetry.Metrics
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. adminAuth may be nil, which disables the management
// API; tel may be nil, which disables /metrics and instrument recording.
func New(cfg Config, keys apikey.Store, objects storage.ObjectStore, adminAuth *service.AdminAuth, tel *telemetry.Module, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		keys:      keys,
		objects:   objects,
		adminAuth: adminAuth,
		telemetry: tel,
		logger:    logger,
	}

	if tel != nil {
		metrics, err := telemetry.NewMetrics(tel.Meter())
		if err != nil {
			return nil, fmt.Errorf("create metric instruments: %w", err)
		}
		s.metrics = metrics
	}

	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	r.Use(telemetry.HTTPMetrics(s.metrics))
	if s.cfg.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimitPerMin))
	}

	sysHandler := handler.NewSystemHandler(s.keys, s.objects, s.cfg.Version)
	keyHandler := handler.NewKeyHandler(s.keys, s.logger)
	buildHandler := handler.NewBuildHandler(s.objects, s.logger, s.metrics, s.cfg.MaxUploadBytes)
	specHandler := handler.NewOpenAPIHandler(s.cfg.BaseURL, s.cfg.Version)

	// --- Unauthenticated service endpoints ---
	r.Get("/healthz", sysHandler.Healthz)
	r.Get("/readyz", sysHandler.Readyz)
	r.Get("/openapi.json", specHandler.ServeSpec)
	if s.telemetry != nil {
		r.Method(http.MethodGet, "/metrics", s.telemetry.MetricsHandler())
	}

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Identity echo. Any valid key of any project; there is no
		// project id in the route to match against.
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.keys,
				middleware.WithLogger(s.logger),
				middleware.WithMetrics(s.metrics),
			))
			r.Get("/me", sysHandler.Me)
		})

		r.Route("/projects/{projectID}", func(r chi.Router) {

			// Management surface: admin bearer tokens only.
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin())
				r.Post("/keys", keyHandler.CreateKey)
				r.Get("/keys", keyHandler.ListKeys)
				r.Post("/keys/{keyID}/revoke", keyHandler.RevokeKey)
				r.Delete("/keys/{keyID}", keyHandler.DeleteKey)
			})

			// Upload surface: project-scoped API keys.
			r.Group(func(r chi.Router) {
				r.Use(middleware.APIKeyAuth(s.keys,
					middleware.WithLogger(s.logger),
					middleware.WithMetrics(s.metrics),
				))
				if s.cfg.UploadRatePerMin > 0 {
					r.Use(middleware.RateLimitByKey(middleware.DefaultHeader, s.cfg.UploadRatePerMin))
				}
				r.Post("/builds", buildHandler.CreateBuild)
				r.Get("/builds", buildHandler.ListBuilds)
				r.Put("/builds/{buildID}/files/*", buildHandler.UploadFile)
				r.Get("/builds/{buildID}/files", buildHandler.ListFiles)
				r.Get("/builds/{buildID}/files/*", buildHandler.GetFile)
				r.Delete("/builds/{buildID}", buildHandler.DeleteBuild)
			})
		})
	})

	// --- Viewer ---
	viewerOpts := []middleware.APIKeyOption{
		middleware.WithLogger(s.logger),
		middleware.WithMetrics(s.metrics),
	}
	if s.cfg.PublicDownloads {
		viewerOpts = append(viewerOpts, middleware.Optional())
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.keys, viewerOpts...))
		// The wildcard pattern does not match the bare build path, so the
		// fallback to index.html needs both routes.
		r.Get("/storybooks/{projectID}/{buildID}", buildHandler.ServeViewer)
		r.Get("/storybooks/{projectID}/{buildID}/*", buildHandler.ServeViewer)
	})

	s.router = r
}

// requireAdmin gates the management routes. Without a configured admin
// secret the surface stays mounted but answers 503, so a misconfigured
// deployment is distinguishable from a missing route.
func (s *Server) requireAdmin() func(http.Handler) http.Handler {
	if s.adminAuth == nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONError(w, http.StatusServiceUnavailable,
					"Admin API disabled: no admin secret configured")
			})
		}
	}
	return middleware.RequireAdmin(s.adminAuth)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the credential store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if s.keys != nil {
		if err := s.keys.Close(); err != nil {
			s.logger.Warn("close key store", "error", err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
