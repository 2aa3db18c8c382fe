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
	"strings"
	"time"

	"github.com/ibahoops/courtside/pkg/admin"
)

// RequestStore persists admin approval requests in PostgreSQL.
type RequestStore struct {
	db *sql.DB
}

// NewRequestStore creates a new PostgreSQL admin request store.
func NewRequestStore(db *sql.DB) *RequestStore {
	return &RequestStore{db: db}
}

// Put stores or replaces the request record for an email address.
func (s *RequestStore) Put(ctx context.Context, request *admin.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_requests (email, owner_id, status, requested_at, decided_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email)
		DO UPDATE SET owner_id = EXCLUDED.owner_id,
		              status = EXCLUDED.status,
		              requested_at = EXCLUDED.requested_at,
		              decided_at = EXCLUDED.decided_at`,
		normalizeEmail(request.Email), request.OwnerID, request.Status,
		request.RequestedAt, nullableTime(request.DecidedAt))
	if err != nil {
		return fmt.Errorf("put admin request: %w", err)
	}
	return nil
}

// GetByEmail retrieves the request record for an email address.
func (s *RequestStore) GetByEmail(ctx context.Context, email string) (*admin.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, owner_id, status, requested_at, decided_at
		FROM admin_requests
		WHERE email = $1`,
		normalizeEmail(email))

	var request admin.Request
	var decidedAt sql.NullTime
	err := row.Scan(&request.Email, &request.OwnerID, &request.Status,
		&request.RequestedAt, &decidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, admin.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin request: %w", err)
	}
	if decidedAt.Valid {
		request.DecidedAt = decidedAt.Time
	}
	return &request, nil
}

// Delete removes the request record for an email address.
func (s *RequestStore) Delete(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM admin_requests WHERE email = $1`,
		normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("delete admin request: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
