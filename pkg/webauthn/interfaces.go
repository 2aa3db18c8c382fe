// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"time"
)

// ChallengeStore persists ceremony challenges.
//
// Registration challenges occupy a single slot per owner; issuing a new one
// replaces any pending challenge for that owner. Authentication challenges
// are issued anonymously, so the store holds any number of them and lookups
// go by challenge value.
type ChallengeStore interface {
	// PutRegistration stores a registration challenge, replacing any
	// pending challenge for the same owner.
	PutRegistration(ctx context.Context, challenge *Challenge) error

	// GetRegistration retrieves the pending registration challenge for an
	// owner. Returns ErrChallengeNotFound when none is pending.
	GetRegistration(ctx context.Context, ownerID string) (*Challenge, error)

	// DeleteRegistration removes the pending registration challenge for an
	// owner, if any.
	DeleteRegistration(ctx context.Context, ownerID string) error

	// AddAuthentication stores an authentication challenge.
	AddAuthentication(ctx context.Context, challenge *Challenge) error

	// FindAuthentication retrieves an authentication challenge by its
	// canonical value, considering only challenges that have not expired
	// at now. Returns ErrChallengeNotFound otherwise.
	FindAuthentication(ctx context.Context, value string, now time.Time) (*Challenge, error)

	// DeleteAuthentication removes an authentication challenge by record ID.
	DeleteAuthentication(ctx context.Context, id string) error

	// DeleteExpired removes all challenges past their deadline at now and
	// returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// CredentialStore persists registered credentials. Credential records are
// append-only except for the signature counter.
type CredentialStore interface {
	// Append stores a new credential. Returns ErrCredentialExists when the
	// credential ID is already registered; existing records are never
	// overwritten.
	Append(ctx context.Context, credential *Credential) error

	// GetByCredentialID retrieves a credential by its canonical base64url
	// identifier. Returns ErrCredentialNotFound when absent.
	GetByCredentialID(ctx context.Context, credentialID string) (*Credential, error)

	// ListByOwner retrieves all credentials registered to an owner.
	ListByOwner(ctx context.Context, ownerID string) ([]*Credential, error)

	// ListAll retrieves every registered credential.
	ListAll(ctx context.Context) ([]*Credential, error)

	// UpdateSignCount persists the signature counter observed during an
	// authentication, along with the time of use.
	UpdateSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error
}

// TokenStore persists session tokens. Tokens are redeemed exactly once.
type TokenStore interface {
	// Put stores a freshly minted session token.
	Put(ctx context.Context, token *SessionToken) error

	// Redeem atomically retrieves and removes a token by value,
	// considering only tokens that have not expired at now. Returns
	// ErrTokenNotFound for unknown, expired or already redeemed tokens.
	Redeem(ctx context.Context, token string, now time.Time) (*SessionToken, error)

	// DeleteExpired removes all tokens past their deadline at now and
	// returns the number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// AdminPolicy decides whether an identity is an approved admin. It is
// consulted before issuing registration challenges, before storing a new
// credential, and again on every authentication so that revocation takes
// effect immediately.
type AdminPolicy interface {
	// IsApproved reports whether the identity may act as an admin.
	IsApproved(ctx context.Context, identity Identity) (bool, error)
}
