// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/ibahoops/courtside/pkg/encoding/base64url"
)

// RegistrationService issues registration challenges to admin-approved
// callers and verifies the resulting attestation responses.
type RegistrationService struct {
	webauthn    *webauthn.WebAuthn
	config      *Config
	challenges  ChallengeStore
	credentials CredentialStore
	policy      AdminPolicy
}

// RegistrationParams contains dependencies for creating a RegistrationService.
type RegistrationParams struct {
	// Config is the WebAuthn configuration (required).
	Config *Config

	// Challenges is the challenge persistence layer (required).
	Challenges ChallengeStore

	// Credentials is the credential persistence layer (required).
	Credentials CredentialStore

	// Policy is the admin authorization policy (required).
	Policy AdminPolicy
}

// NewRegistrationService creates a new registration service with the
// provided dependencies.
func NewRegistrationService(params RegistrationParams) (*RegistrationService, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
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

	return &RegistrationService{
		webauthn:    wa,
		config:      params.Config,
		challenges:  params.Challenges,
		credentials: params.Credentials,
		policy:      params.Policy,
	}, nil
}

// GenerateChallenge starts a registration ceremony for the caller. The
// caller must be an approved admin. Any pending registration challenge for
// the same caller is replaced. The returned options carry the challenge,
// the exclusion list of already registered credentials and the
// authenticator selection policy.
func (s *RegistrationService) GenerateChallenge(ctx context.Context, caller Identity) (*protocol.CredentialCreation, error) {
	const op = "generate registration challenge"

	if caller.ID == "" || caller.Email == "" {
		return nil, failf(op, ErrInvalidArgument, "caller identity is incomplete")
	}

	approved, err := s.policy.IsApproved(ctx, caller)
	if err != nil {
		return nil, failf(op, ErrInternal, "admin policy check failed: %v", err)
	}
	if !approved {
		return nil, failf(op, ErrPermissionDenied, "caller is not an approved admin")
	}

	existing, err := s.credentials.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, failf(op, ErrInternal, "list credentials: %v", err)
	}
	exclusions := make([]protocol.CredentialDescriptor, 0, len(existing))
	for _, cred := range existing {
		id, decodeErr := base64url.Decode(cred.CredentialID)
		if decodeErr != nil {
			return nil, failf(op, ErrInternal, "stored credential id is not valid base64url: %v", decodeErr)
		}
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
			Transport:    cred.Transports,
		})
	}

	user := &ceremonyUser{
		id:          caller.ID,
		email:       caller.Email,
		displayName: caller.DisplayName,
	}
	options, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, failf(op, ErrInternal, "begin registration: %v", err)
	}

	now := time.Now().UTC()
	challenge := &Challenge{
		ID:        uuid.NewString(),
		Value:     session.Challenge,
		OwnerID:   caller.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.ChallengeTTL),
	}
	if err := s.challenges.PutRegistration(ctx, challenge); err != nil {
		return nil, failf(op, ErrInternal, "store challenge: %v", err)
	}

	return options, nil
}

// VerifyResponse completes a registration ceremony. The attestation
// response must answer the caller's pending challenge before it expires.
// On success the credential is stored and the pending challenge is
// consumed; a failed verification leaves the challenge in place so the
// caller may retry within the TTL.
func (s *RegistrationService) VerifyResponse(ctx context.Context, caller Identity, response *protocol.ParsedCredentialCreationData) (*Credential, error) {
	const op = "verify registration response"

	if caller.ID == "" || caller.Email == "" {
		return nil, failf(op, ErrInvalidArgument, "caller identity is incomplete")
	}
	if response == nil {
		return nil, failf(op, ErrInvalidArgument, "attestation response is required")
	}

	approved, err := s.policy.IsApproved(ctx, caller)
	if err != nil {
		return nil, failf(op, ErrInternal, "admin policy check failed: %v", err)
	}
	if !approved {
		return nil, failf(op, ErrPermissionDenied, "caller is not an approved admin")
	}

	challenge, err := s.challenges.GetRegistration(ctx, caller.ID)
	if err != nil {
		if IsChallengeNotFound(err) {
			return nil, failf(op, ErrFailedPrecondition, "no pending registration challenge")
		}
		return nil, failf(op, ErrInternal, "load challenge: %v", err)
	}

	now := time.Now().UTC()
	if challenge.Expired(now) {
		_ = s.challenges.DeleteRegistration(ctx, caller.ID)
		return nil, failf(op, ErrDeadlineExceeded, "registration challenge expired")
	}

	user := &ceremonyUser{
		id:          caller.ID,
		email:       caller.Email,
		displayName: caller.DisplayName,
	}
	session := webauthn.SessionData{
		Challenge:        challenge.Value,
		UserID:           user.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
		Expires:          challenge.ExpiresAt,
		CredParams:       webauthn.CredentialParametersDefault(),
	}
	verified, err := s.webauthn.CreateCredential(user, session, response)
	if err != nil {
		return nil, failf(op, ErrInvalidArgument, "attestation verification failed: %v", err)
	}

	record := newCredentialRecord(caller, verified, now)
	if err := s.credentials.Append(ctx, record); err != nil {
		if IsCredentialExists(err) {
			return nil, failf(op, ErrFailedPrecondition, "credential is already registered")
		}
		return nil, failf(op, ErrInternal, "store credential: %v", err)
	}

	// The challenge is consumed only on success. Cleanup is best-effort;
	// a leftover challenge ages out via its TTL.
	_ = s.challenges.DeleteRegistration(ctx, caller.ID)

	return record, nil
}
