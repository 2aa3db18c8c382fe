// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.SetDefaults()

	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTokenTTL)
	assert.Equal(t, 60*time.Second, cfg.CeremonyTimeout)
}

func TestConfig_SetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := testConfig()
	cfg.ChallengeTTL = time.Minute
	cfg.SetDefaults()

	assert.Equal(t, time.Minute, cfg.ChallengeTTL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing rpid", func(c *Config) { c.RPID = "" }, "RPID is required"},
		{"missing display name", func(c *Config) { c.RPDisplayName = "" }, "RPDisplayName is required"},
		{"missing origins", func(c *Config) { c.RPOrigins = nil }, "at least one RPOrigin is required"},
		{"negative challenge ttl", func(c *Config) { c.ChallengeTTL = -time.Second }, "ChallengeTTL must not be negative"},
		{"negative token ttl", func(c *Config) { c.SessionTokenTTL = -time.Second }, "SessionTokenTTL must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_ToWebAuthnConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SetDefaults()

	wa := cfg.ToWebAuthnConfig()
	assert.Equal(t, cfg.RPID, wa.RPID)
	assert.Equal(t, cfg.RPDisplayName, wa.RPDisplayName)
	assert.Equal(t, cfg.RPOrigins, wa.RPOrigins)

	// Admin login policy: platform authenticator, verified user.
	assert.Equal(t, protocol.Platform, wa.AuthenticatorSelection.AuthenticatorAttachment)
	assert.Equal(t, protocol.VerificationRequired, wa.AuthenticatorSelection.UserVerification)
	assert.Equal(t, protocol.ResidentKeyRequirementDiscouraged, wa.AuthenticatorSelection.ResidentKey)
	assert.Equal(t, 60*time.Second, wa.Timeouts.Login.Timeout)
	assert.True(t, wa.Timeouts.Registration.Enforce)
}
