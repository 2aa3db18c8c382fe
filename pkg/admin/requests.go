// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package admin decides who may act as a tournament admin. An identity is
// approved when its email is on the configured allow-list or when an
// admin-request record for it has been approved.
package admin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// ErrRequestNotFound is returned when no admin request exists for an email.
var ErrRequestNotFound = errors.New("admin request not found")

// Request records an application for admin access and its decision.
type Request struct {
	// OwnerID is the account identifier of the applicant.
	OwnerID string `json:"owner_id"`

	// Email is the applicant's email address, stored lower-cased.
	Email string `json:"email"`

	// Status is one of StatusPending, StatusApproved or StatusDenied.
	Status string `json:"status"`

	// RequestedAt is when the application was filed.
	RequestedAt time.Time `json:"requested_at"`

	// DecidedAt is when the application was approved or denied.
	DecidedAt time.Time `json:"decided_at,omitempty"`
}

// RequestStore persists admin requests, keyed by email.
type RequestStore interface {
	// Put stores a request, replacing any existing record for the email.
	Put(ctx context.Context, request *Request) error

	// GetByEmail retrieves the request for an email.
	// Returns ErrRequestNotFound when none exists.
	GetByEmail(ctx context.Context, email string) (*Request, error)

	// Delete removes the request for an email, revoking any approval it
	// carried.
	Delete(ctx context.Context, email string) error
}

// MemoryRequestStore is an in-memory implementation of RequestStore.
// This is intended for development and testing only.
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewMemoryRequestStore creates a new in-memory request store.
func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		requests: make(map[string]*Request),
	}
}

// Put stores a request, replacing any existing record for the email.
func (s *MemoryRequestStore) Put(ctx context.Context, request *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *request
	r.Email = normalizeEmail(r.Email)
	s.requests[r.Email] = &r
	return nil
}

// GetByEmail retrieves the request for an email.
func (s *MemoryRequestStore) GetByEmail(ctx context.Context, email string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[normalizeEmail(email)]
	if !ok {
		return nil, ErrRequestNotFound
	}
	r := *request
	return &r, nil
}

// Delete removes the request for an email.
func (s *MemoryRequestStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, normalizeEmail(email))
	return nil
}

// Count returns the number of requests in the store.
func (s *MemoryRequestStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
