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
)

// SessionValidator redeems session tokens. Each token validates exactly
// once; redemption removes it from the store, so a replayed token is
// indistinguishable from an unknown one.
type SessionValidator struct {
	tokens TokenStore
}

// NewSessionValidator creates a new session validator backed by the given
// token store.
func NewSessionValidator(tokens TokenStore) (*SessionValidator, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	return &SessionValidator{tokens: tokens}, nil
}

// Validate redeems a session token. Unknown, expired and already redeemed
// tokens all fail with PermissionDenied; the caller learns nothing about
// which case applied.
func (v *SessionValidator) Validate(ctx context.Context, token string) (*SessionInfo, error) {
	const op = "validate session token"

	if token == "" {
		return nil, failf(op, ErrInvalidArgument, "session token is required")
	}

	record, err := v.tokens.Redeem(ctx, token, time.Now().UTC())
	if err != nil {
		if IsTokenNotFound(err) {
			return nil, failf(op, ErrPermissionDenied, "session token is invalid")
		}
		return nil, failf(op, ErrInternal, "redeem session token: %v", err)
	}

	return &SessionInfo{
		Valid:      true,
		OwnerID:    record.OwnerID,
		AuthMethod: record.AuthMethod,
	}, nil
}
