// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config configures the WebAuthn services.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	// Example: "ibahoops.com"
	RPID string `yaml:"id" json:"id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name"`

	// RPOrigins are the allowed origins for WebAuthn operations.
	// Example: []string{"https://ibahoops.com"}
	RPOrigins []string `yaml:"origins" json:"origins"`

	// ChallengeTTL is how long an issued challenge stays redeemable.
	// Default: 5 minutes
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`

	// SessionTokenTTL is how long a minted session token stays valid.
	// Default: 24 hours
	SessionTokenTTL time.Duration `yaml:"session_token_ttl" json:"session_token_ttl"`

	// CeremonyTimeout is the client-side ceremony timeout conveyed in the
	// credential options. Default: 60 seconds
	CeremonyTimeout time.Duration `yaml:"ceremony_timeout" json:"ceremony_timeout"`

	// Debug enables debug logging in the underlying webauthn library.
	Debug bool `yaml:"debug" json:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	if c.ChallengeTTL < 0 {
		return fmt.Errorf("ChallengeTTL must not be negative")
	}
	if c.SessionTokenTTL < 0 {
		return fmt.Errorf("SessionTokenTTL must not be negative")
	}
	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.SessionTokenTTL == 0 {
		c.SessionTokenTTL = 24 * time.Hour
	}
	if c.CeremonyTimeout == 0 {
		c.CeremonyTimeout = 60 * time.Second
	}
}

// ToWebAuthnConfig converts the Config to the go-webauthn library's
// configuration. Admin login is restricted to platform authenticators with
// required user verification; discoverable credentials are not requested
// since the server always supplies an allow list.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	return &webauthn.Config{
		RPID:                  c.RPID,
		RPDisplayName:         c.RPDisplayName,
		RPOrigins:             c.RPOrigins,
		Debug:                 c.Debug,
		AttestationPreference: protocol.PreferNoAttestation,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			UserVerification:        protocol.VerificationRequired,
			ResidentKey:             protocol.ResidentKeyRequirementDiscouraged,
		},
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    c.CeremonyTimeout,
				TimeoutUVD: c.CeremonyTimeout,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    c.CeremonyTimeout,
				TimeoutUVD: c.CeremonyTimeout,
			},
		},
	}
}
