// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package webauthn implements the biometric admin-login core of the
// courtside tournament site: WebAuthn credential registration,
// challenge-response authentication and single-use session tokens.
//
// Three services cover the full lifecycle:
//
//   - RegistrationService issues registration challenges to authenticated,
//     admin-approved callers and verifies attestation responses.
//   - AuthenticationService issues anonymous authentication challenges and
//     verifies assertion responses, minting a session token on success.
//   - SessionValidator redeems session tokens exactly once.
//
// Persistence is pluggable through the ChallengeStore, CredentialStore and
// TokenStore interfaces. In-memory implementations suitable for tests and
// single-instance deployments live in this package; PostgreSQL-backed
// implementations live in internal/storage/postgres.
//
// All credential identifiers, public keys and challenge values cross store
// and wire boundaries exclusively as URL-safe unpadded base64
// (pkg/encoding/base64url).
package webauthn
