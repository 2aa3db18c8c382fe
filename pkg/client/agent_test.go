// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAuthenticator returns canned responses and records the options it saw.
type stubAuthenticator struct {
	attestation []byte
	assertion   []byte
	seenOptions [][]byte
	err         error
}

func (s *stubAuthenticator) CreateCredential(optionsJSON []byte) ([]byte, error) {
	s.seenOptions = append(s.seenOptions, optionsJSON)
	return s.attestation, s.err
}

func (s *stubAuthenticator) GetAssertion(optionsJSON []byte) ([]byte, error) {
	s.seenOptions = append(s.seenOptions, optionsJSON)
	return s.assertion, s.err
}

func TestNewAgent_RequiresDependencies(t *testing.T) {
	_, err := NewAgent(AgentParams{Authenticator: &stubAuthenticator{}})
	assert.ErrorContains(t, err, "base URL is required")

	_, err = NewAgent(AgentParams{BaseURL: "http://localhost"})
	assert.ErrorContains(t, err, "authenticator is required")
}

func TestRegister_SendsIdentityAndAttestation(t *testing.T) {
	var sawAuthHeader string
	var sawVerifyBody map[string]json.RawMessage

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/registration/challenge", func(w http.ResponseWriter, r *http.Request) {
		sawAuthHeader = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"publicKey":{"challenge":"abc"}}`))
	})
	mux.HandleFunc("/api/v1/registration/verify", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sawVerifyBody))
		_, _ = w.Write([]byte(`{"verified":true,"credential_id":"AQID"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	// The stub emits padded standard base64; the agent must canonicalize it.
	authenticator := &stubAuthenticator{
		attestation: []byte(`{"id":"--__AQ","rawId":"++//AQ==","type":"public-key","response":{"clientDataJSON":"AQI=","attestationObject":"AwQ="}}`),
	}
	agent, err := NewAgent(AgentParams{
		BaseURL:       server.URL,
		Authenticator: authenticator,
		IdentityToken: "identity-jwt",
	})
	require.NoError(t, err)

	require.NoError(t, agent.Register(context.Background()))

	assert.Equal(t, "Bearer identity-jwt", sawAuthHeader)
	require.Len(t, authenticator.seenOptions, 1)
	assert.JSONEq(t, `{"publicKey":{"challenge":"abc"}}`, string(authenticator.seenOptions[0]))

	assert.Equal(t, `"--__AQ"`, string(sawVerifyBody["rawId"]))
	var response map[string]string
	require.NoError(t, json.Unmarshal(sawVerifyBody["response"], &response))
	assert.Equal(t, "AQI", response["clientDataJSON"])
	assert.Equal(t, "AwQ", response["attestationObject"])
}

func TestRegister_RequiresIdentityToken(t *testing.T) {
	agent, err := NewAgent(AgentParams{
		BaseURL:       "http://localhost",
		Authenticator: &stubAuthenticator{},
	})
	require.NoError(t, err)

	err = agent.Register(context.Background())
	assert.ErrorContains(t, err, "identity token is required")
}

func TestAuthenticate_CachesSession(t *testing.T) {
	expiresAt := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"publicKey":{"challenge":"xyz","rpId":"ibahoops.test"}}`))
	})
	mux.HandleFunc("/api/v1/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"verified":      true,
			"session_token": "tok-1",
			"owner_id":      "admin-1",
			"expires_at":    expiresAt,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	agent, err := NewAgent(AgentParams{
		BaseURL: server.URL,
		Authenticator: &stubAuthenticator{
			assertion: []byte(`{"id":"AQID","rawId":"AQID","type":"public-key","response":{"clientDataJSON":"AQI","authenticatorData":"AwQ","signature":"BQY","userHandle":null}}`),
		},
	})
	require.NoError(t, err)

	session, err := agent.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", session.Token)
	assert.Equal(t, "admin-1", session.OwnerID)
	assert.True(t, expiresAt.Equal(session.ExpiresAt))

	cached, ok := agent.Session()
	require.True(t, ok)
	assert.Equal(t, "tok-1", cached.Token)

	agent.ClearSession()
	_, ok = agent.Session()
	assert.False(t, ok)
}

func TestAuthenticate_ServerErrorSurfacesAsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = w.Write([]byte(`{"error":"failed precondition","message":"no credentials registered"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	agent, err := NewAgent(AgentParams{
		BaseURL:       server.URL,
		Authenticator: &stubAuthenticator{},
	})
	require.NoError(t, err)

	_, err = agent.Authenticate(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPreconditionFailed, apiErr.StatusCode)
	assert.Equal(t, "failed precondition", apiErr.Kind)
	assert.Equal(t, "no credentials registered", apiErr.Message)
}

func TestAuthenticate_PlainTextErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	agent, err := NewAgent(AgentParams{
		BaseURL:       server.URL,
		Authenticator: &stubAuthenticator{},
	})
	require.NoError(t, err)

	_, err = agent.Authenticate(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "Rate limit exceeded", apiErr.Message)
}

func TestAuthenticate_NoRetryOnAuthenticatorFailure(t *testing.T) {
	var challengeCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		challengeCalls++
		_, _ = w.Write([]byte(`{"publicKey":{"challenge":"xyz"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	agent, err := NewAgent(AgentParams{
		BaseURL:       server.URL,
		Authenticator: &stubAuthenticator{err: errors.New("user cancelled")},
	})
	require.NoError(t, err)

	_, err = agent.Authenticate(context.Background())
	require.ErrorContains(t, err, "user cancelled")
	assert.Equal(t, 1, challengeCalls)

	_, ok := agent.Session()
	assert.False(t, ok)
}

func TestSession_ExpiredIsNotReturned(t *testing.T) {
	agent, err := NewAgent(AgentParams{
		BaseURL:       "http://localhost",
		Authenticator: &stubAuthenticator{},
	})
	require.NoError(t, err)

	agent.session = &Session{Token: "old", ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	_, ok := agent.Session()
	assert.False(t, ok)
}
