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
	"time"
)

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu           sync.RWMutex
	registration map[string]*Challenge // keyed by owner ID, one slot each
	auth         map[string]*Challenge // keyed by challenge record ID
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		registration: make(map[string]*Challenge),
		auth:         make(map[string]*Challenge),
	}
}

// PutRegistration stores a registration challenge, replacing any pending
// challenge for the same owner.
func (s *MemoryChallengeStore) PutRegistration(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *challenge
	s.registration[challenge.OwnerID] = &c
	return nil
}

// GetRegistration retrieves the pending registration challenge for an owner.
func (s *MemoryChallengeStore) GetRegistration(ctx context.Context, ownerID string) (*Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.registration[ownerID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	c := *challenge
	return &c, nil
}

// DeleteRegistration removes the pending registration challenge for an owner.
func (s *MemoryChallengeStore) DeleteRegistration(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.registration, ownerID)
	return nil
}

// AddAuthentication stores an authentication challenge.
func (s *MemoryChallengeStore) AddAuthentication(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *challenge
	s.auth[challenge.ID] = &c
	return nil
}

// FindAuthentication retrieves a non-expired authentication challenge by
// its canonical value.
func (s *MemoryChallengeStore) FindAuthentication(ctx context.Context, value string, now time.Time) (*Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, challenge := range s.auth {
		if challenge.Value == value && !challenge.Expired(now) {
			c := *challenge
			return &c, nil
		}
	}
	return nil, ErrChallengeNotFound
}

// DeleteAuthentication removes an authentication challenge by record ID.
func (s *MemoryChallengeStore) DeleteAuthentication(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.auth, id)
	return nil
}

// DeleteExpired removes all challenges past their deadline.
func (s *MemoryChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ownerID, challenge := range s.registration {
		if challenge.Expired(now) {
			delete(s.registration, ownerID)
			removed++
		}
	}
	for id, challenge := range s.auth {
		if challenge.Expired(now) {
			delete(s.auth, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the total number of challenges in the store.
func (s *MemoryChallengeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registration) + len(s.auth)
}

// Clear removes all challenges from the store.
func (s *MemoryChallengeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registration = make(map[string]*Challenge)
	s.auth = make(map[string]*Challenge)
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	byID  map[string]*Credential
	order []string // insertion order for stable listings
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID: make(map[string]*Credential),
	}
}

// Append stores a new credential. Existing records are never overwritten.
func (s *MemoryCredentialStore) Append(ctx context.Context, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[credential.CredentialID]; ok {
		return ErrCredentialExists
	}

	c := *credential
	s.byID[credential.CredentialID] = &c
	s.order = append(s.order, credential.CredentialID)
	return nil
}

// GetByCredentialID retrieves a credential by its canonical identifier.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, credentialID string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.byID[credentialID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	c := *credential
	return &c, nil
}

// ListByOwner retrieves all credentials registered to an owner.
func (s *MemoryCredentialStore) ListByOwner(ctx context.Context, ownerID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Credential, 0)
	for _, id := range s.order {
		if credential := s.byID[id]; credential.OwnerID == ownerID {
			c := *credential
			result = append(result, &c)
		}
	}
	return result, nil
}

// ListAll retrieves every registered credential in insertion order.
func (s *MemoryCredentialStore) ListAll(ctx context.Context) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Credential, 0, len(s.order))
	for _, id := range s.order {
		c := *s.byID[id]
		result = append(result, &c)
	}
	return result, nil
}

// UpdateSignCount persists the signature counter for a credential.
func (s *MemoryCredentialStore) UpdateSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.byID[credentialID]
	if !ok {
		return ErrCredentialNotFound
	}
	credential.SignCount = signCount
	credential.LastUsedAt = usedAt
	return nil
}

// Count returns the number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes all credentials from the store.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Credential)
	s.order = nil
}

// MemoryTokenStore is an in-memory implementation of TokenStore.
// This is intended for development and testing only.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*SessionToken
}

// NewMemoryTokenStore creates a new in-memory session token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]*SessionToken),
	}
}

// Put stores a freshly minted session token.
func (s *MemoryTokenStore) Put(ctx context.Context, token *SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *token
	s.tokens[token.Token] = &t
	return nil
}

// Redeem atomically retrieves and removes a non-expired token by value.
func (s *MemoryTokenStore) Redeem(ctx context.Context, token string, now time.Time) (*SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	delete(s.tokens, token)
	if record.Expired(now) {
		return nil, ErrTokenNotFound
	}
	return record, nil
}

// DeleteExpired removes all tokens past their deadline.
func (s *MemoryTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for value, token := range s.tokens {
		if token.Expired(now) {
			delete(s.tokens, value)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of tokens in the store.
func (s *MemoryTokenStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Clear removes all tokens from the store.
func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]*SessionToken)
}
