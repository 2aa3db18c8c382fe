// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/ibahoops/courtside/pkg/encoding/base64url"
)

// challengeSize is the number of random bytes in an authentication
// challenge and in a session token.
const challengeSize = 32

// AuthenticationService issues anonymous authentication challenges and
// verifies assertion responses, minting a single-use session token on
// success.
type AuthenticationService struct {
	webauthn    *webauthn.WebAuthn
	config      *Config
	challenges  ChallengeStore
	credentials CredentialStore
	tokens      TokenStore
	policy      AdminPolicy
}

// AuthenticationParams contains dependencies for creating an
// AuthenticationService.
type AuthenticationParams struct {
	// Config is the WebAuthn configuration (required).
	Config *Config

	// Challenges is the challenge persistence layer (required).
	Challenges ChallengeStore

	// Credentials is the credential persistence layer (required).
	Credentials CredentialStore

	// Tokens is the session token persistence layer (required).
	Tokens TokenStore

	// Policy is the admin authorization policy (required).
	Policy AdminPolicy
}

// NewAuthenticationService creates a new authentication service with the
// provided dependencies.
func NewAuthenticationService(params AuthenticationParams) (*AuthenticationService, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("admin policy is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &AuthenticationService{
		webauthn:    wa,
		config:      params.Config,
		challenges:  params.Challenges,
		credentials: params.Credentials,
		tokens:      params.Tokens,
		policy:      params.Policy,
	}, nil
}

// GenerateChallenge starts an authentication ceremony. The caller is
// anonymous at this point, so the options carry an allow list spanning
// every registered credential. Concurrent ceremonies each get their own
// challenge.
func (s *AuthenticationService) GenerateChallenge(ctx context.Context) (*protocol.CredentialAssertion, error) {
	const op = "generate authentication challenge"

	creds, err := s.credentials.ListAll(ctx)
	if err != nil {
		return nil, failf(op, ErrInternal, "list credentials: %v", err)
	}
	if len(creds) == 0 {
		return nil, failf(op, ErrFailedPrecondition, "no credentials registered")
	}

	allowed := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, cred := range creds {
		id, decodeErr := base64url.Decode(cred.CredentialID)
		if decodeErr != nil {
			return nil, failf(op, ErrInternal, "stored credential id is not valid base64url: %v", decodeErr)
		}
		allowed = append(allowed, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
			Transport:    cred.Transports,
		})
	}

	raw := make([]byte, challengeSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, failf(op, ErrInternal, "generate challenge: %v", err)
	}

	now := time.Now().UTC()
	challenge := &Challenge{
		ID:        uuid.NewString(),
		Value:     base64url.Encode(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.ChallengeTTL),
	}
	if err := s.challenges.AddAuthentication(ctx, challenge); err != nil {
		return nil, failf(op, ErrInternal, "store challenge: %v", err)
	}

	return &protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:          protocol.URLEncodedBase64(raw),
			Timeout:            int(s.config.CeremonyTimeout.Milliseconds()),
			RelyingPartyID:     s.config.RPID,
			UserVerification:   protocol.VerificationRequired,
			AllowedCredentials: allowed,
		},
	}, nil
}

// VerifyResponse completes an authentication ceremony. The challenge is
// read out of the signed client data and matched against the store, the
// assertion is cryptographically verified against the stored credential,
// admin approval is re-checked, and only then is the challenge consumed
// and a session token minted.
func (s *AuthenticationService) VerifyResponse(ctx context.Context, response *protocol.ParsedCredentialAssertionData) (*AuthResult, error) {
	const op = "verify authentication response"

	if response == nil {
		return nil, failf(op, ErrInvalidArgument, "assertion response is required")
	}

	// The client data echoes the challenge in whatever base64 variant the
	// client used; normalize before the store lookup.
	value, err := base64url.Normalize(response.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, failf(op, ErrInvalidArgument, "malformed challenge in client data: %v", err)
	}

	now := time.Now().UTC()
	challenge, err := s.challenges.FindAuthentication(ctx, value, now)
	if err != nil {
		if IsChallengeNotFound(err) {
			return nil, failf(op, ErrFailedPrecondition, "unknown or expired authentication challenge")
		}
		return nil, failf(op, ErrInternal, "load challenge: %v", err)
	}

	credentialID := base64url.Encode(response.RawID)
	cred, err := s.credentials.GetByCredentialID(ctx, credentialID)
	if err != nil {
		if IsCredentialNotFound(err) {
			return nil, failf(op, ErrPermissionDenied, "credential is not recognized")
		}
		return nil, failf(op, ErrInternal, "load credential: %v", err)
	}

	stored, err := cred.toWebAuthn()
	if err != nil {
		return nil, failf(op, ErrInternal, "stored credential is corrupt: %v", err)
	}
	user := &ceremonyUser{
		id:          cred.OwnerID,
		email:       cred.OwnerEmail,
		credentials: []webauthn.Credential{stored},
	}
	session := webauthn.SessionData{
		Challenge:        challenge.Value,
		UserID:           user.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
		Expires:          challenge.ExpiresAt,
	}
	validated, err := s.webauthn.ValidateLogin(user, session, response)
	if err != nil {
		return nil, failf(op, ErrPermissionDenied, "assertion verification failed: %v", err)
	}

	if validated.Authenticator.CloneWarning {
		// Record the observed counter so the regression stays visible,
		// then reject the login.
		_ = s.credentials.UpdateSignCount(ctx, credentialID, validated.Authenticator.SignCount, now)
		return nil, failf(op, ErrPermissionDenied, "signature counter regression indicates a cloned authenticator")
	}

	// Approval is re-checked on every login so revocation cuts off
	// credentials that are already registered.
	approved, err := s.policy.IsApproved(ctx, Identity{ID: cred.OwnerID, Email: cred.OwnerEmail})
	if err != nil {
		return nil, failf(op, ErrInternal, "admin policy check failed: %v", err)
	}
	if !approved {
		return nil, failf(op, ErrPermissionDenied, "admin approval has been revoked")
	}

	if err := s.credentials.UpdateSignCount(ctx, credentialID, validated.Authenticator.SignCount, now); err != nil {
		return nil, failf(op, ErrInternal, "update signature counter: %v", err)
	}

	if err := s.challenges.DeleteAuthentication(ctx, challenge.ID); err != nil {
		return nil, failf(op, ErrInternal, "consume challenge: %v", err)
	}

	tokenBytes := make([]byte, challengeSize)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, failf(op, ErrInternal, "generate session token: %v", err)
	}
	token := &SessionToken{
		Token:      base64url.Encode(tokenBytes),
		OwnerID:    cred.OwnerID,
		AuthMethod: AuthMethodWebAuthn,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.config.SessionTokenTTL),
	}
	if err := s.tokens.Put(ctx, token); err != nil {
		return nil, failf(op, ErrInternal, "store session token: %v", err)
	}

	return &AuthResult{
		Verified:     true,
		SessionToken: token.Token,
		OwnerID:      cred.OwnerID,
		ExpiresAt:    token.ExpiresAt,
	}, nil
}
