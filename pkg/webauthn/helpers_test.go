// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"sync"
)

// stubPolicy is a test AdminPolicy whose decision can be flipped mid-test
// to exercise revocation.
type stubPolicy struct {
	mu       sync.Mutex
	approved map[string]bool
	err      error
}

func newStubPolicy(approvedEmails ...string) *stubPolicy {
	p := &stubPolicy{approved: make(map[string]bool)}
	for _, email := range approvedEmails {
		p.approved[email] = true
	}
	return p
}

func (p *stubPolicy) IsApproved(ctx context.Context, identity Identity) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	return p.approved[identity.Email], nil
}

func (p *stubPolicy) revoke(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.approved, email)
}

func testConfig() *Config {
	return &Config{
		RPID:          "ibahoops.test",
		RPDisplayName: "IBA Hoops",
		RPOrigins:     []string{"https://ibahoops.test"},
	}
}

func testIdentity() Identity {
	return Identity{
		ID:          "admin-1",
		Email:       "admin@ibahoops.test",
		DisplayName: "Tournament Admin",
	}
}
