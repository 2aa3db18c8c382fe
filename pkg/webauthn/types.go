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

	"github.com/ibahoops/courtside/pkg/encoding/base64url"
)

// Identity describes the authenticated caller of a registration ceremony.
// It is established by the transport layer (for example from a verified
// bearer token) before the service is invoked.
type Identity struct {
	// ID is the stable account identifier.
	ID string `json:"id"`

	// Email is the account email address, used by the admin policy.
	Email string `json:"email"`

	// DisplayName is the human-readable account name.
	DisplayName string `json:"display_name,omitempty"`
}

// Challenge is a single-use random value binding one WebAuthn ceremony.
type Challenge struct {
	// ID uniquely identifies the challenge record.
	ID string `json:"id"`

	// Value is the challenge in canonical URL-safe unpadded base64.
	Value string `json:"value"`

	// OwnerID scopes a registration challenge to its caller.
	// Empty for authentication challenges, which are issued anonymously.
	OwnerID string `json:"owner_id,omitempty"`

	// CreatedAt is when the challenge was issued.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the challenge stops being redeemable.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its deadline at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Credential is a registered platform credential belonging to an admin.
// CredentialID and PublicKey are stored in canonical URL-safe unpadded
// base64 so that store lookups never depend on encoding variants.
type Credential struct {
	// CredentialID is the identifier assigned by the authenticator.
	CredentialID string `json:"credential_id"`

	// PublicKey is the credential public key in COSE format.
	PublicKey string `json:"public_key"`

	// SignCount is the signature counter for clone detection.
	SignCount uint32 `json:"sign_count"`

	// DeviceType records whether the credential is bound to a single
	// device or syncable across devices ("singleDevice" or "multiDevice").
	DeviceType string `json:"device_type"`

	// BackedUp indicates the credential is currently backed up.
	BackedUp bool `json:"backed_up"`

	// Transports lists the transports supported by the authenticator.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`

	// OwnerID is the account identifier the credential belongs to.
	OwnerID string `json:"owner_id"`

	// OwnerEmail is retained so the admin policy can be re-evaluated at
	// login time, when only the credential record is at hand.
	OwnerEmail string `json:"owner_email"`

	// RegisteredAt is when the credential was registered.
	RegisteredAt time.Time `json:"registered_at"`

	// LastUsedAt is when the credential last completed an authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// Device type values stored on a Credential.
const (
	DeviceTypeSingle = "singleDevice"
	DeviceTypeMulti  = "multiDevice"
)

// AuthMethodWebAuthn is the authentication method recorded on session
// tokens minted by the AuthenticationService.
const AuthMethodWebAuthn = "webauthn"

// toWebAuthn converts the stored record to the go-webauthn library's
// credential type for assertion verification.
func (c *Credential) toWebAuthn() (webauthn.Credential, error) {
	id, err := base64url.Decode(c.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id: %w", err)
	}
	publicKey, err := base64url.Decode(c.PublicKey)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode public key: %w", err)
	}
	return webauthn.Credential{
		ID:        id,
		PublicKey: publicKey,
		Transport: c.Transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: c.DeviceType == DeviceTypeMulti,
			BackupState:    c.BackedUp,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: c.SignCount,
		},
	}, nil
}

// newCredentialRecord builds the stored record from a verified registration.
func newCredentialRecord(owner Identity, wc *webauthn.Credential, now time.Time) *Credential {
	deviceType := DeviceTypeSingle
	if wc.Flags.BackupEligible {
		deviceType = DeviceTypeMulti
	}
	transports := wc.Transport
	if len(transports) == 0 {
		// Platform authenticators commonly omit transports in the
		// attestation response.
		transports = []protocol.AuthenticatorTransport{protocol.Internal}
	}
	return &Credential{
		CredentialID: base64url.Encode(wc.ID),
		PublicKey:    base64url.Encode(wc.PublicKey),
		SignCount:    wc.Authenticator.SignCount,
		DeviceType:   deviceType,
		BackedUp:     wc.Flags.BackupState,
		Transports:   transports,
		OwnerID:      owner.ID,
		OwnerEmail:   owner.Email,
		RegisteredAt: now.UTC(),
	}
}

// SessionToken is a single-use bearer token minted after a successful
// authentication ceremony.
type SessionToken struct {
	// Token is the random token value in URL-safe unpadded base64.
	Token string `json:"token"`

	// OwnerID is the authenticated account identifier.
	OwnerID string `json:"owner_id"`

	// AuthMethod records how the token was obtained.
	AuthMethod string `json:"auth_method"`

	// CreatedAt is when the token was minted.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the token stops being redeemable.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its deadline at now.
func (t *SessionToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AuthResult is the outcome of a successful authentication ceremony.
type AuthResult struct {
	// Verified is true when the assertion was accepted.
	Verified bool `json:"verified"`

	// SessionToken is the minted single-use token.
	SessionToken string `json:"session_token"`

	// OwnerID is the authenticated account identifier.
	OwnerID string `json:"owner_id"`

	// ExpiresAt is the token deadline.
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionInfo is the outcome of redeeming a session token.
type SessionInfo struct {
	// Valid is true when the token was redeemed.
	Valid bool `json:"valid"`

	// OwnerID is the account the token was minted for.
	OwnerID string `json:"owner_id,omitempty"`

	// AuthMethod records how the token was obtained.
	AuthMethod string `json:"auth_method,omitempty"`
}

// ceremonyUser adapts an Identity and its credentials to the go-webauthn
// user model for the duration of a single ceremony. Nothing user-shaped is
// persisted; credentials are the unit of storage.
type ceremonyUser struct {
	id          string
	email       string
	displayName string
	credentials []webauthn.Credential
}

// WebAuthnID returns the user handle.
func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.id)
}

// WebAuthnName returns the account name shown by the authenticator.
func (u *ceremonyUser) WebAuthnName() string {
	return u.email
}

// WebAuthnDisplayName returns the display name shown by the authenticator.
func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.displayName == "" {
		return u.email
	}
	return u.displayName
}

// WebAuthnCredentials returns the credentials usable in this ceremony.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
