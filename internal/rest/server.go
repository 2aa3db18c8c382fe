// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibahoops/courtside/pkg/logging"
	"github.com/ibahoops/courtside/pkg/metrics"
	"github.com/ibahoops/courtside/pkg/ratelimit"
	"github.com/ibahoops/courtside/pkg/webauthn"
)

// Server is the HTTP server for the admin login API.
type Server struct {
	server         *http.Server
	handlers       *HandlerContext
	port           int
	tlsConfig      *tls.Config
	identitySecret []byte
	limiter        *ratelimit.Limiter
	exposeMetrics  bool
	logger         *logging.Logger
}

// Config holds the REST server configuration.
type Config struct {
	// Port is the HTTP port to listen on (default: 8443)
	Port int

	// Version is the API version string
	Version string

	// Registration completes credential enrollment ceremonies (required)
	Registration *webauthn.RegistrationService

	// Authentication completes login ceremonies (required)
	Authentication *webauthn.AuthenticationService

	// Sessions redeems session tokens (required)
	Sessions *webauthn.SessionValidator

	// IdentitySecret verifies the HS256 identity tokens on the
	// registration endpoints (required)
	IdentitySecret []byte

	// RateLimiter throttles the public authentication endpoints (optional)
	RateLimiter *ratelimit.Limiter

	// ExposeMetrics serves Prometheus metrics on GET /metrics
	ExposeMetrics bool

	// TLSConfig is the TLS configuration for HTTPS (optional)
	TLSConfig *tls.Config

	// Logger is the logger to use (optional)
	Logger *logging.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Registration == nil {
		return nil, fmt.Errorf("registration service is required")
	}
	if cfg.Authentication == nil {
		return nil, fmt.Errorf("authentication service is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session validator is required")
	}
	if len(cfg.IdentitySecret) == 0 {
		return nil, fmt.Errorf("identity secret is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = ratelimit.New(&ratelimit.Config{Enabled: false})
	}

	server := &Server{
		handlers:       NewHandlerContext(cfg.Registration, cfg.Authentication, cfg.Sessions, cfg.Version, log),
		port:           cfg.Port,
		tlsConfig:      cfg.TLSConfig,
		identitySecret: cfg.IdentitySecret,
		limiter:        limiter,
		exposeMetrics:  cfg.ExposeMetrics,
		logger:         log,
	}

	router := server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)

	if s.exposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Enrollment requires a proven identity from the site's login flow.
		r.Group(func(r chi.Router) {
			r.Use(s.IdentityMiddleware())
			r.Post("/registration/challenge", s.handlers.RegistrationChallengeHandler)
			r.Post("/registration/verify", s.handlers.RegistrationVerifyHandler)
		})

		// Login is anonymous until the assertion proves key possession.
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(s.limiter))
			r.Post("/auth/challenge", s.handlers.AuthChallengeHandler)
			r.Post("/auth/verify", s.handlers.AuthVerifyHandler)
		})

		r.Post("/session/validate", s.handlers.SessionValidateHandler)
	})

	return r
}

// Router returns the configured HTTP handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.server.Handler
}

// Start starts the REST API server.
func (s *Server) Start() error {
	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server", "port", s.port)
		if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
	} else {
		s.logger.Info("Starting HTTP server", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err.Error())
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}
