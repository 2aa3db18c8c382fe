// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package client implements the credential agent that drives WebAuthn
// ceremonies against a courtside server. The platform-specific credential
// operations are delegated to an injected Authenticator; the agent handles
// the two HTTP round trips per ceremony, re-encodes binary fields into
// canonical URL-safe base64 and caches the issued session token.
//
// The agent never retries a failed ceremony; the caller decides whether to
// start over.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ibahoops/courtside/pkg/encoding/base64url"
)

// Authenticator performs the platform credential operations of a ceremony.
// Implementations wrap whatever the platform offers (a browser bridge, an
// OS API, or a virtual authenticator in tests). Input and output are the
// JSON documents exchanged with the server.
type Authenticator interface {
	// CreateCredential answers registration options with an attestation
	// response.
	CreateCredential(optionsJSON []byte) ([]byte, error)

	// GetAssertion answers authentication options with an assertion
	// response.
	GetAssertion(optionsJSON []byte) ([]byte, error)
}

// Session is a cached login session.
type Session struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its deadline at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Kind is the failure kind reported by the server.
	Kind string `json:"error"`

	// Message is the human-readable explanation.
	Message string `json:"message"`
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server rejected request (%d): %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Kind)
}

// Agent drives registration and authentication ceremonies.
type Agent struct {
	baseURL       string
	httpClient    *http.Client
	authenticator Authenticator
	identityToken string

	mu      sync.Mutex
	session *Session
}

// AgentParams contains dependencies for creating an Agent.
type AgentParams struct {
	// BaseURL is the server address, e.g. "https://ibahoops.com" (required).
	BaseURL string

	// Authenticator performs the platform credential operations (required).
	Authenticator Authenticator

	// IdentityToken is the bearer token identifying the caller on the
	// registration endpoints (optional; Register fails without it).
	IdentityToken string

	// HTTPClient is the transport to use (optional).
	HTTPClient *http.Client
}

// NewAgent creates a new credential agent.
func NewAgent(params AgentParams) (*Agent, error) {
	if params.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if params.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Agent{
		baseURL:       strings.TrimRight(params.BaseURL, "/"),
		httpClient:    httpClient,
		authenticator: params.Authenticator,
		identityToken: params.IdentityToken,
	}, nil
}

// Register runs a full registration ceremony: fetch options, create the
// credential on the platform authenticator and submit the attestation.
func (a *Agent) Register(ctx context.Context) error {
	if a.identityToken == "" {
		return fmt.Errorf("identity token is required for registration")
	}

	options, err := a.post(ctx, "/api/v1/registration/challenge", nil, true)
	if err != nil {
		return fmt.Errorf("fetch registration options: %w", err)
	}

	attestation, err := a.authenticator.CreateCredential(options)
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	attestation, err = normalizeAttestationJSON(attestation)
	if err != nil {
		return fmt.Errorf("normalize attestation: %w", err)
	}

	if _, err := a.post(ctx, "/api/v1/registration/verify", attestation, true); err != nil {
		return fmt.Errorf("verify attestation: %w", err)
	}
	return nil
}

// Authenticate runs a full authentication ceremony and caches the issued
// session token.
func (a *Agent) Authenticate(ctx context.Context) (*Session, error) {
	options, err := a.post(ctx, "/api/v1/auth/challenge", nil, false)
	if err != nil {
		return nil, fmt.Errorf("fetch authentication options: %w", err)
	}

	assertion, err := a.authenticator.GetAssertion(options)
	if err != nil {
		return nil, fmt.Errorf("get assertion: %w", err)
	}
	assertion, err = normalizeAssertionJSON(assertion)
	if err != nil {
		return nil, fmt.Errorf("normalize assertion: %w", err)
	}

	body, err := a.post(ctx, "/api/v1/auth/verify", assertion, false)
	if err != nil {
		return nil, fmt.Errorf("verify assertion: %w", err)
	}

	var result struct {
		Verified     bool      `json:"verified"`
		SessionToken string    `json:"session_token"`
		OwnerID      string    `json:"owner_id"`
		ExpiresAt    time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if !result.Verified || result.SessionToken == "" {
		return nil, fmt.Errorf("server did not issue a session token")
	}

	session := &Session{
		Token:     result.SessionToken,
		OwnerID:   result.OwnerID,
		ExpiresAt: result.ExpiresAt,
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()

	return session, nil
}

// Session returns the cached session, if one is present and not expired.
func (a *Agent) Session() (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil || a.session.Expired(time.Now().UTC()) {
		return nil, false
	}
	s := *a.session
	return &s, true
}

// ClearSession drops the cached session.
func (a *Agent) ClearSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
}

// post sends a JSON request and returns the response body. Non-2xx
// responses are returned as *APIError.
func (a *Agent) post(ctx context.Context, path string, body []byte, withIdentity bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if withIdentity {
		req.Header.Set("Authorization", "Bearer "+a.identityToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// The body may not be the structured error document, e.g. when a
		// proxy or the rate limiter answered.
		if err := json.Unmarshal(payload, apiErr); err != nil || apiErr.Kind == "" {
			apiErr.Kind = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(payload))
		}
		return nil, apiErr
	}

	return payload, nil
}

// normalizeAttestationJSON rewrites the binary fields of an attestation
// response into canonical URL-safe unpadded base64.
func normalizeAttestationJSON(raw []byte) ([]byte, error) {
	return normalizeCredentialJSON(raw, []string{"clientDataJSON", "attestationObject"})
}

// normalizeAssertionJSON rewrites the binary fields of an assertion
// response into canonical URL-safe unpadded base64.
func normalizeAssertionJSON(raw []byte) ([]byte, error) {
	return normalizeCredentialJSON(raw, []string{"clientDataJSON", "authenticatorData", "signature", "userHandle"})
}

// normalizeCredentialJSON normalizes the top-level id/rawId fields and the
// named fields of the response object. Authenticators differ in whether
// they emit padded or standard-alphabet base64; the server stores and
// compares canonical values only.
func normalizeCredentialJSON(raw []byte, responseFields []string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	for _, field := range []string{"id", "rawId"} {
		if err := normalizeJSONField(doc, field); err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
	}

	if responseRaw, ok := doc["response"]; ok {
		var response map[string]json.RawMessage
		if err := json.Unmarshal(responseRaw, &response); err != nil {
			return nil, err
		}
		for _, field := range responseFields {
			if err := normalizeJSONField(response, field); err != nil {
				return nil, fmt.Errorf("response field %s: %w", field, err)
			}
		}
		encoded, err := json.Marshal(response)
		if err != nil {
			return nil, err
		}
		doc["response"] = encoded
	}

	return json.Marshal(doc)
}

func normalizeJSONField(doc map[string]json.RawMessage, field string) error {
	raw, ok := doc[field]
	if !ok {
		return nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		// Not a string (e.g. null); leave it alone.
		return nil
	}
	if value == "" {
		return nil
	}
	normalized, err := base64url.Normalize(value)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	doc[field] = encoded
	return nil
}
