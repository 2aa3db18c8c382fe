// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibahoops/courtside/pkg/webauthn"
)

// Policy implements webauthn.AdminPolicy. An identity is approved when its
// email is on the allow-list or when the request store holds an approved
// record for it. Email comparison is case-insensitive.
type Policy struct {
	allowlist map[string]struct{}
	requests  RequestStore
}

// PolicyParams contains dependencies for creating a Policy.
type PolicyParams struct {
	// AllowedEmails are always approved, independent of the request store.
	AllowedEmails []string

	// Requests is consulted for identities not on the allow-list
	// (optional; without it only the allow-list applies).
	Requests RequestStore
}

// NewPolicy creates a new admin policy.
func NewPolicy(params PolicyParams) *Policy {
	allowlist := make(map[string]struct{}, len(params.AllowedEmails))
	for _, email := range params.AllowedEmails {
		allowlist[normalizeEmail(email)] = struct{}{}
	}
	return &Policy{
		allowlist: allowlist,
		requests:  params.Requests,
	}
}

// IsApproved reports whether the identity may act as an admin.
func (p *Policy) IsApproved(ctx context.Context, identity webauthn.Identity) (bool, error) {
	email := normalizeEmail(identity.Email)
	if email == "" {
		return false, nil
	}

	if _, ok := p.allowlist[email]; ok {
		return true, nil
	}

	if p.requests == nil {
		return false, nil
	}
	request, err := p.requests.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup admin request: %w", err)
	}
	return request.Status == StatusApproved, nil
}
