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

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ibahoops/courtside/pkg/webauthn"
)

const uniqueViolationCode = "23505"

// CredentialStore persists registered credentials in PostgreSQL. Records
// are append-only except for the signature counter.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore creates a new PostgreSQL credential store.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Append stores a new credential. Existing records are never overwritten.
func (s *CredentialStore) Append(ctx context.Context, credential *webauthn.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webauthn_credentials
			(credential_id, public_key, sign_count, device_type, backed_up,
			 transports, owner_id, owner_email, registered_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		credential.CredentialID, credential.PublicKey, int64(credential.SignCount),
		credential.DeviceType, credential.BackedUp, joinTransports(credential.Transports),
		credential.OwnerID, credential.OwnerEmail, credential.RegisteredAt, credential.LastUsedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return webauthn.ErrCredentialExists
		}
		return fmt.Errorf("append credential: %w", err)
	}
	return nil
}

// GetByCredentialID retrieves a credential by its canonical identifier.
func (s *CredentialStore) GetByCredentialID(ctx context.Context, credentialID string) (*webauthn.Credential, error) {
	row := s.db.QueryRowContext(ctx, selectCredential+` WHERE credential_id = $1`, credentialID)

	credential, err := scanCredential(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webauthn.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// ListByOwner retrieves all credentials registered to an owner.
func (s *CredentialStore) ListByOwner(ctx context.Context, ownerID string) ([]*webauthn.Credential, error) {
	return s.list(ctx, selectCredential+` WHERE owner_id = $1 ORDER BY registered_at`, ownerID)
}

// ListAll retrieves every registered credential.
func (s *CredentialStore) ListAll(ctx context.Context) ([]*webauthn.Credential, error) {
	return s.list(ctx, selectCredential+` ORDER BY registered_at`)
}

// UpdateSignCount persists the observed signature counter and time of use.
func (s *CredentialStore) UpdateSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE webauthn_credentials
		SET sign_count = $2, last_used_at = $3
		WHERE credential_id = $1`,
		credentialID, int64(signCount), usedAt)
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	if affected == 0 {
		return webauthn.ErrCredentialNotFound
	}
	return nil
}

const selectCredential = `
	SELECT credential_id, public_key, sign_count, device_type, backed_up,
	       transports, owner_id, owner_email, registered_at, last_used_at
	FROM webauthn_credentials`

func (s *CredentialStore) list(ctx context.Context, query string, args ...any) ([]*webauthn.Credential, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var credentials []*webauthn.Credential
	for rows.Next() {
		credential, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}

func scanCredential(scan func(...any) error) (*webauthn.Credential, error) {
	var credential webauthn.Credential
	var signCount int64
	var transports string
	err := scan(&credential.CredentialID, &credential.PublicKey, &signCount,
		&credential.DeviceType, &credential.BackedUp, &transports,
		&credential.OwnerID, &credential.OwnerEmail,
		&credential.RegisteredAt, &credential.LastUsedAt)
	if err != nil {
		return nil, err
	}
	credential.SignCount = uint32(signCount)
	credential.Transports = splitTransports(transports)
	return &credential, nil
}

func joinTransports(transports []protocol.AuthenticatorTransport) string {
	parts := make([]string, len(transports))
	for i, t := range transports {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func splitTransports(value string) []protocol.AuthenticatorTransport {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	transports := make([]protocol.AuthenticatorTransport, len(parts))
	for i, part := range parts {
		transports[i] = protocol.AuthenticatorTransport(part)
	}
	return transports
}
