// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package config loads the server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ibahoops/courtside/pkg/ratelimit"
	"github.com/ibahoops/courtside/pkg/webauthn"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	WebAuthn  webauthn.Config  `yaml:"webauthn"`
	Auth      AuthConfig       `yaml:"auth"`
	Storage   StorageConfig    `yaml:"storage"`
	RateLimit ratelimit.Config `yaml:"ratelimit"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Logging   LoggingConfig    `yaml:"logging"`
	TLS       TLSConfig        `yaml:"tls"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig controls caller identity and admin approval
type AuthConfig struct {
	// IdentitySecret is the HS256 secret shared with the site's login flow
	IdentitySecret string `yaml:"identity_secret"`

	// AllowedEmails is the admin email allow list
	AllowedEmails []string `yaml:"allowed_emails"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	// Backend is one of: memory, postgres
	Backend string `yaml:"backend"`

	// DSN is the PostgreSQL connection string (postgres backend only)
	DSN string `yaml:"dsn"`

	// CleanupInterval controls how often expired challenges and session
	// tokens are swept. Zero disables the sweeper.
	CleanupInterval string `yaml:"cleanup_interval"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TLSConfig controls TLS/SSL settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("COURTSIDE_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portValue := os.Getenv("COURTSIDE_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil {
			log.Printf("Warning: invalid COURTSIDE_PORT value %q, using default %d: %v",
				portValue, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid COURTSIDE_PORT value %q (out of range 1-65535), using default %d",
				portValue, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if rpID := os.Getenv("COURTSIDE_RP_ID"); rpID != "" {
		cfg.WebAuthn.RPID = rpID
	}
	if origins := os.Getenv("COURTSIDE_RP_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		cfg.WebAuthn.RPOrigins = cfg.WebAuthn.RPOrigins[:0]
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cfg.WebAuthn.RPOrigins = append(cfg.WebAuthn.RPOrigins, trimmed)
			}
		}
	}

	if secret := os.Getenv("COURTSIDE_IDENTITY_SECRET"); secret != "" {
		cfg.Auth.IdentitySecret = secret
	}
	if dsn := os.Getenv("COURTSIDE_DATABASE_URL"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if level := os.Getenv("COURTSIDE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// SetDefaults fills in defaults for unset values
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8443
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.WebAuthn.SetDefaults()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if err := c.WebAuthn.Validate(); err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}

	if c.Auth.IdentitySecret == "" {
		return fmt.Errorf("auth identity_secret must be specified")
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	return nil
}

// Debug reports whether debug logging is enabled
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}
