// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ibahoops/courtside/pkg/webauthn"
)

const (
	challengeKindRegistration   = "registration"
	challengeKindAuthentication = "authentication"
)

// ChallengeStore persists ceremony challenges in PostgreSQL.
type ChallengeStore struct {
	db *sql.DB
}

// NewChallengeStore creates a new PostgreSQL challenge store.
func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

// PutRegistration stores a registration challenge, replacing any pending
// challenge for the same owner.
func (s *ChallengeStore) PutRegistration(ctx context.Context, challenge *webauthn.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webauthn_challenges (id, kind, value, owner_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) WHERE kind = 'registration'
		DO UPDATE SET id = EXCLUDED.id,
		              value = EXCLUDED.value,
		              created_at = EXCLUDED.created_at,
		              expires_at = EXCLUDED.expires_at`,
		challenge.ID, challengeKindRegistration, challenge.Value, challenge.OwnerID,
		challenge.CreatedAt, challenge.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put registration challenge: %w", err)
	}
	return nil
}

// GetRegistration retrieves the pending registration challenge for an owner.
func (s *ChallengeStore) GetRegistration(ctx context.Context, ownerID string) (*webauthn.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, value, owner_id, created_at, expires_at
		FROM webauthn_challenges
		WHERE kind = 'registration' AND owner_id = $1`,
		ownerID)
	return scanChallenge(row)
}

// DeleteRegistration removes the pending registration challenge for an owner.
func (s *ChallengeStore) DeleteRegistration(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM webauthn_challenges
		WHERE kind = 'registration' AND owner_id = $1`,
		ownerID)
	if err != nil {
		return fmt.Errorf("delete registration challenge: %w", err)
	}
	return nil
}

// AddAuthentication stores an authentication challenge.
func (s *ChallengeStore) AddAuthentication(ctx context.Context, challenge *webauthn.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webauthn_challenges (id, kind, value, owner_id, created_at, expires_at)
		VALUES ($1, $2, $3, NULL, $4, $5)`,
		challenge.ID, challengeKindAuthentication, challenge.Value,
		challenge.CreatedAt, challenge.ExpiresAt)
	if err != nil {
		return fmt.Errorf("add authentication challenge: %w", err)
	}
	return nil
}

// FindAuthentication retrieves a live authentication challenge by its
// canonical value.
func (s *ChallengeStore) FindAuthentication(ctx context.Context, value string, now time.Time) (*webauthn.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, value, owner_id, created_at, expires_at
		FROM webauthn_challenges
		WHERE kind = 'authentication' AND value = $1 AND expires_at > $2`,
		value, now)
	return scanChallenge(row)
}

// DeleteAuthentication removes an authentication challenge by record ID.
func (s *ChallengeStore) DeleteAuthentication(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM webauthn_challenges
		WHERE kind = 'authentication' AND id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("delete authentication challenge: %w", err)
	}
	return nil
}

// DeleteExpired removes all challenges past their deadline.
func (s *ChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM webauthn_challenges WHERE expires_at <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return int(removed), nil
}

func scanChallenge(row *sql.Row) (*webauthn.Challenge, error) {
	var challenge webauthn.Challenge
	var ownerID sql.NullString
	err := row.Scan(&challenge.ID, &challenge.Value, &ownerID,
		&challenge.CreatedAt, &challenge.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webauthn.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan challenge: %w", err)
	}
	challenge.OwnerID = ownerID.String
	return &challenge, nil
}
