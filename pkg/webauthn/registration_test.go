// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibahoops/courtside/pkg/encoding/base64url"
)

func newTestRegistrationService(t *testing.T, policy AdminPolicy) (*RegistrationService, *MemoryChallengeStore, *MemoryCredentialStore) {
	t.Helper()

	challenges := NewMemoryChallengeStore()
	credentials := NewMemoryCredentialStore()
	svc, err := NewRegistrationService(RegistrationParams{
		Config:      testConfig(),
		Challenges:  challenges,
		Credentials: credentials,
		Policy:      policy,
	})
	require.NoError(t, err)
	return svc, challenges, credentials
}

func TestNewRegistrationService_RequiresDependencies(t *testing.T) {
	policy := newStubPolicy()

	_, err := NewRegistrationService(RegistrationParams{})
	assert.ErrorContains(t, err, "config is required")

	_, err = NewRegistrationService(RegistrationParams{Config: testConfig()})
	assert.ErrorContains(t, err, "challenge store is required")

	_, err = NewRegistrationService(RegistrationParams{
		Config:     testConfig(),
		Challenges: NewMemoryChallengeStore(),
	})
	assert.ErrorContains(t, err, "credential store is required")

	_, err = NewRegistrationService(RegistrationParams{
		Config:      testConfig(),
		Challenges:  NewMemoryChallengeStore(),
		Credentials: NewMemoryCredentialStore(),
	})
	assert.ErrorContains(t, err, "admin policy is required")

	_, err = NewRegistrationService(RegistrationParams{
		Config:      &Config{},
		Challenges:  NewMemoryChallengeStore(),
		Credentials: NewMemoryCredentialStore(),
		Policy:      policy,
	})
	assert.ErrorContains(t, err, "invalid config")
}

func TestRegistrationGenerateChallenge_PermissionDenied(t *testing.T) {
	ctx := context.Background()
	svc, challenges, _ := newTestRegistrationService(t, newStubPolicy())

	_, err := svc.GenerateChallenge(ctx, testIdentity())
	assert.True(t, IsPermissionDenied(err))
	assert.Equal(t, 0, challenges.Count())
}

func TestRegistrationGenerateChallenge_IncompleteIdentity(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestRegistrationService(t, newStubPolicy("admin@ibahoops.test"))

	_, err := svc.GenerateChallenge(ctx, Identity{Email: "admin@ibahoops.test"})
	assert.True(t, IsInvalidArgument(err))
}

func TestRegistrationGenerateChallenge_StoresChallengeAndBuildsOptions(t *testing.T) {
	ctx := context.Background()
	caller := testIdentity()
	svc, challenges, _ := newTestRegistrationService(t, newStubPolicy(caller.Email))

	options, err := svc.GenerateChallenge(ctx, caller)
	require.NoError(t, err)
	require.NotNil(t, options)

	assert.Equal(t, "ibahoops.test", options.Response.RelyingParty.ID)
	assert.Equal(t, caller.Email, options.Response.User.Name)
	assert.NotEmpty(t, options.Response.Challenge)

	stored, err := challenges.GetRegistration(ctx, caller.ID)
	require.NoError(t, err)
	assert.Equal(t, caller.ID, stored.OwnerID)
	assert.WithinDuration(t, stored.CreatedAt.Add(5*time.Minute), stored.ExpiresAt, time.Second)

	// The stored value matches the challenge conveyed in the options,
	// both in canonical base64url form.
	assert.Equal(t, stored.Value, options.Response.Challenge.String())
}

func TestRegistrationGenerateChallenge_ReplacesPendingChallenge(t *testing.T) {
	ctx := context.Background()
	caller := testIdentity()
	svc, challenges, _ := newTestRegistrationService(t, newStubPolicy(caller.Email))

	first, err := svc.GenerateChallenge(ctx, caller)
	require.NoError(t, err)
	second, err := svc.GenerateChallenge(ctx, caller)
	require.NoError(t, err)
	assert.NotEqual(t, first.Response.Challenge, second.Response.Challenge)

	stored, err := challenges.GetRegistration(ctx, caller.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Response.Challenge.String(), stored.Value)
	assert.Equal(t, 1, challenges.Count())
}

func TestRegistrationGenerateChallenge_ExcludesExistingCredentials(t *testing.T) {
	ctx := context.Background()
	caller := testIdentity()
	svc, _, credentials := newTestRegistrationService(t, newStubPolicy(caller.Email))

	existing := &Credential{
		CredentialID: base64url.Encode([]byte("existing-credential")),
		PublicKey:    base64url.Encode([]byte("pk")),
		OwnerID:      caller.ID,
		OwnerEmail:   caller.Email,
		Transports:   []protocol.AuthenticatorTransport{protocol.Internal},
	}
	require.NoError(t, credentials.Append(ctx, existing))

	options, err := svc.GenerateChallenge(ctx, caller)
	require.NoError(t, err)
	require.Len(t, options.Response.CredentialExcludeList, 1)
	assert.Equal(t, []byte("existing-credential"), []byte(options.Response.CredentialExcludeList[0].CredentialID))
}

func TestRegistrationVerifyResponse_NoPendingChallenge(t *testing.T) {
	ctx := context.Background()
	caller := testIdentity()
	svc, _, _ := newTestRegistrationService(t, newStubPolicy(caller.Email))

	_, err := svc.VerifyResponse(ctx, caller, &protocol.ParsedCredentialCreationData{})
	assert.True(t, IsFailedPrecondition(err))
}

func TestRegistrationVerifyResponse_ExpiredChallengeIsConsumed(t *testing.T) {
	ctx := context.Background()
	caller := testIdentity()
	svc, challenges, _ := newTestRegistrationService(t, newStubPolicy(caller.Email))

	now := time.Now().UTC()
	require.NoError(t, challenges.PutRegistration(ctx, &Challenge{
		ID:        "stale",
		Value:     "stale-value",
		OwnerID:   caller.ID,
		CreatedAt: now.Add(-10 * time.Minute),
		ExpiresAt: now.Add(-5 * time.Minute),
	}))

	_, err := svc.VerifyResponse(ctx, caller, &protocol.ParsedCredentialCreationData{})
	assert.True(t, IsDeadlineExceeded(err))

	// Expired challenges are deleted on sight.
	_, err = challenges.GetRegistration(ctx, caller.ID)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestRegistrationVerifyResponse_PermissionDenied(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestRegistrationService(t, newStubPolicy())

	_, err := svc.VerifyResponse(ctx, testIdentity(), &protocol.ParsedCredentialCreationData{})
	assert.True(t, IsPermissionDenied(err))
}

func TestRegistrationVerifyResponse_BadAttestationLeavesChallenge(t *testing.T) {
	ctx := context.Background()
	caller := testIdentity()
	svc, challenges, _ := newTestRegistrationService(t, newStubPolicy(caller.Email))

	_, err := svc.GenerateChallenge(ctx, caller)
	require.NoError(t, err)

	// An empty response cannot satisfy the attestation checks.
	_, err = svc.VerifyResponse(ctx, caller, &protocol.ParsedCredentialCreationData{})
	assert.True(t, IsInvalidArgument(err))

	// The challenge survives so the caller can retry within the TTL.
	_, err = challenges.GetRegistration(ctx, caller.ID)
	assert.NoError(t, err)
}
