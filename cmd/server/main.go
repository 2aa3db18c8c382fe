// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// The courtside server hosts the WebAuthn admin login API for the
// tournament site.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibahoops/courtside/internal/config"
	"github.com/ibahoops/courtside/internal/rest"
	"github.com/ibahoops/courtside/internal/storage/postgres"
	"github.com/ibahoops/courtside/pkg/admin"
	"github.com/ibahoops/courtside/pkg/logging"
	"github.com/ibahoops/courtside/pkg/metrics"
	"github.com/ibahoops/courtside/pkg/ratelimit"
	"github.com/ibahoops/courtside/pkg/webauthn"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/courtside/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("courtside server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	if envConfig := os.Getenv("COURTSIDE_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.DefaultLogger().Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.Debug())
	logger.Info("Starting courtside server",
		"config", *configPath,
		"version", version,
		"rp_id", cfg.WebAuthn.RPID,
		"storage", cfg.Storage.Backend)

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx := context.Background()

	var challenges webauthn.ChallengeStore
	var credentials webauthn.CredentialStore
	var tokens webauthn.TokenStore
	var requests admin.RequestStore

	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.Open(cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}

		challenges = postgres.NewChallengeStore(db)
		credentials = postgres.NewCredentialStore(db)
		tokens = postgres.NewTokenStore(db)
		requests = postgres.NewRequestStore(db)
	default:
		challenges = webauthn.NewMemoryChallengeStore()
		credentials = webauthn.NewMemoryCredentialStore()
		tokens = webauthn.NewMemoryTokenStore()
		requests = admin.NewMemoryRequestStore()
	}

	policy := admin.NewPolicy(admin.PolicyParams{
		AllowedEmails: cfg.Auth.AllowedEmails,
		Requests:      requests,
	})

	registration, err := webauthn.NewRegistrationService(webauthn.RegistrationParams{
		Config:      &cfg.WebAuthn,
		Challenges:  challenges,
		Credentials: credentials,
		Policy:      policy,
	})
	if err != nil {
		return fmt.Errorf("create registration service: %w", err)
	}

	authentication, err := webauthn.NewAuthenticationService(webauthn.AuthenticationParams{
		Config:      &cfg.WebAuthn,
		Challenges:  challenges,
		Credentials: credentials,
		Tokens:      tokens,
		Policy:      policy,
	})
	if err != nil {
		return fmt.Errorf("create authentication service: %w", err)
	}

	sessions, err := webauthn.NewSessionValidator(tokens)
	if err != nil {
		return fmt.Errorf("create session validator: %w", err)
	}

	if interval := parseCleanupInterval(cfg.Storage.CleanupInterval, logger); interval > 0 {
		janitor := webauthn.NewJanitor(challenges, tokens)
		stop := janitor.Start(ctx, interval)
		defer stop()
		logger.Info("Cleanup routine started", "interval", interval.String())
	}

	limiter := ratelimit.New(&cfg.RateLimit)
	defer limiter.Stop()

	metrics.SetEnabled(cfg.Metrics.Enabled)

	tlsConfig, err := cfg.TLS.CreateTLSConfig()
	if err != nil {
		return err
	}

	server, err := rest.NewServer(&rest.Config{
		Port:           cfg.Server.Port,
		Version:        version,
		Registration:   registration,
		Authentication: authentication,
		Sessions:       sessions,
		IdentitySecret: []byte(cfg.Auth.IdentitySecret),
		RateLimiter:    limiter,
		ExposeMetrics:  cfg.Metrics.Enabled,
		TLSConfig:      tlsConfig,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	shutdownCtx := setupSignalHandler(logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Stop(shutdownTimeout)
}

func parseCleanupInterval(value string, logger *logging.Logger) time.Duration {
	if value == "" {
		return time.Minute
	}
	interval, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid cleanup_interval, using default", "value", value, "error", err.Error())
		return time.Minute
	}
	return interval
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *logging.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
