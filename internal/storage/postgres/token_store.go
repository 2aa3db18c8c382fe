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

// TokenStore persists session tokens in PostgreSQL.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a new PostgreSQL session token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Put stores a freshly minted session token.
func (s *TokenStore) Put(ctx context.Context, token *webauthn.SessionToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_tokens (token, owner_id, auth_method, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		token.Token, token.OwnerID, token.AuthMethod, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put session token: %w", err)
	}
	return nil
}

// Redeem atomically retrieves and removes a live token by value. The
// DELETE ... RETURNING makes the single-use guarantee hold across
// concurrent redemptions of the same token.
func (s *TokenStore) Redeem(ctx context.Context, token string, now time.Time) (*webauthn.SessionToken, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM session_tokens
		WHERE token = $1 AND expires_at > $2
		RETURNING token, owner_id, auth_method, created_at, expires_at`,
		token, now)

	var record webauthn.SessionToken
	err := row.Scan(&record.Token, &record.OwnerID, &record.AuthMethod,
		&record.CreatedAt, &record.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Expired tokens are unredeemable; drop any leftover row so the
		// sweeper has less to do.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE token = $1`, token)
		return nil, webauthn.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redeem session token: %w", err)
	}
	return &record, nil
}

// DeleteExpired removes all tokens past their deadline.
func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM session_tokens WHERE expires_at <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return int(removed), nil
}
