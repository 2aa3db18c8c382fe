// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibahoops/courtside/pkg/admin"
	"github.com/ibahoops/courtside/pkg/client"
	"github.com/ibahoops/courtside/pkg/logging"
	"github.com/ibahoops/courtside/pkg/ratelimit"
	"github.com/ibahoops/courtside/pkg/webauthn"
)

var testIdentitySecret = []byte("test-identity-secret")

const (
	testRPID   = "ibahoops.test"
	testOrigin = "https://ibahoops.test"
)

// testServer wires the full HTTP stack over in-memory stores.
type testServer struct {
	http        *httptest.Server
	credentials *webauthn.MemoryCredentialStore
	tokens      *webauthn.MemoryTokenStore
	requests    *admin.MemoryRequestStore
}

func newTestServer(t *testing.T, configure func(*Config)) *testServer {
	t.Helper()

	challenges := webauthn.NewMemoryChallengeStore()
	credentials := webauthn.NewMemoryCredentialStore()
	tokens := webauthn.NewMemoryTokenStore()
	requests := admin.NewMemoryRequestStore()

	policy := admin.NewPolicy(admin.PolicyParams{
		AllowedEmails: []string{"admin@ibahoops.test"},
		Requests:      requests,
	})

	cfg := &webauthn.Config{
		RPID:          testRPID,
		RPDisplayName: "IBA Hoops",
		RPOrigins:     []string{testOrigin},
	}

	registration, err := webauthn.NewRegistrationService(webauthn.RegistrationParams{
		Config:      cfg,
		Challenges:  challenges,
		Credentials: credentials,
		Policy:      policy,
	})
	require.NoError(t, err)

	authentication, err := webauthn.NewAuthenticationService(webauthn.AuthenticationParams{
		Config:      cfg,
		Challenges:  challenges,
		Credentials: credentials,
		Tokens:      tokens,
		Policy:      policy,
	})
	require.NoError(t, err)

	sessions, err := webauthn.NewSessionValidator(tokens)
	require.NoError(t, err)

	serverConfig := &Config{
		Version:        "test",
		Registration:   registration,
		Authentication: authentication,
		Sessions:       sessions,
		IdentitySecret: testIdentitySecret,
	}
	if configure != nil {
		configure(serverConfig)
	}

	server, err := NewServer(serverConfig)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &testServer{
		http:        ts,
		credentials: credentials,
		tokens:      tokens,
		requests:    requests,
	}
}

func identityToken(t *testing.T, secret []byte, id, email, name string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id,
		"email": email,
		"name":  name,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(http.MethodPost, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, payload
}

// virtualAuthenticator adapts a virtual FIDO2 authenticator to the agent's
// Authenticator interface.
type virtualAuthenticator struct {
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
	credential    virtualwebauthn.Credential
}

func newVirtualAuthenticator() *virtualAuthenticator {
	return &virtualAuthenticator{
		rp:            virtualwebauthn.RelyingParty{Name: "IBA Hoops", ID: testRPID, Origin: testOrigin},
		authenticator: virtualwebauthn.NewAuthenticator(),
		credential:    virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2),
	}
}

func (v *virtualAuthenticator) CreateCredential(optionsJSON []byte) ([]byte, error) {
	options, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	if err != nil {
		return nil, err
	}
	response := virtualwebauthn.CreateAttestationResponse(v.rp, v.authenticator, v.credential, *options)
	v.authenticator.AddCredential(v.credential)
	return []byte(response), nil
}

func (v *virtualAuthenticator) GetAssertion(optionsJSON []byte) ([]byte, error) {
	options, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	if err != nil {
		return nil, err
	}
	v.credential.Counter++
	response := virtualwebauthn.CreateAssertionResponse(v.rp, v.authenticator, v.credential, *options)
	return []byte(response), nil
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestRegistrationChallenge_RequiresIdentity(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := postJSON(t, ts.http.URL+"/api/v1/registration/challenge", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "unauthorized", errResp.Error)
}

func TestRegistrationChallenge_RejectsForgedIdentityToken(t *testing.T) {
	ts := newTestServer(t, nil)

	forged := identityToken(t, []byte("wrong-secret"), "admin-1", "admin@ibahoops.test", "Admin")
	resp, _ := postJSON(t, ts.http.URL+"/api/v1/registration/challenge", nil, map[string]string{
		"Authorization": "Bearer " + forged,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegistrationChallenge_UnapprovedEmail(t *testing.T) {
	ts := newTestServer(t, nil)

	token := identityToken(t, testIdentitySecret, "coach-1", "coach@ibahoops.test", "Coach")
	resp, body := postJSON(t, ts.http.URL+"/api/v1/registration/challenge", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "permission denied", errResp.Error)
	assert.Equal(t, http.StatusForbidden, errResp.Code)
}

func TestRegistrationVerify_MalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	token := identityToken(t, testIdentitySecret, "admin-1", "admin@ibahoops.test", "Admin")
	resp, body := postJSON(t, ts.http.URL+"/api/v1/registration/verify", map[string]string{"bogus": "payload"}, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "invalid argument", errResp.Error)
}

func TestAuthChallenge_NoCredentialsRegistered(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := postJSON(t, ts.http.URL+"/api/v1/auth/challenge", nil, nil)
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "failed precondition", errResp.Error)
}

func TestAuthVerify_MalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := postJSON(t, ts.http.URL+"/api/v1/auth/verify", map[string]string{"bogus": "payload"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionValidate_UnknownToken(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := postJSON(t, ts.http.URL+"/api/v1/session/validate", SessionValidateRequest{Token: "nope"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var result SessionValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
	assert.Equal(t, "permission denied", result.Error)
}

func TestSessionValidate_MalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+"/api/v1/session/validate", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEndToEnd_RegisterLoginValidate(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()

	agent, err := client.NewAgent(client.AgentParams{
		BaseURL:       ts.http.URL,
		Authenticator: newVirtualAuthenticator(),
		IdentityToken: identityToken(t, testIdentitySecret, "admin-1", "admin@ibahoops.test", "Tournament Admin"),
	})
	require.NoError(t, err)

	require.NoError(t, agent.Register(ctx))
	require.Equal(t, 1, ts.credentials.Count())

	session, err := agent.Authenticate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "admin-1", session.OwnerID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)

	resp, body := postJSON(t, ts.http.URL+"/api/v1/session/validate", SessionValidateRequest{Token: session.Token}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result SessionValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Valid)
	assert.Equal(t, "admin-1", result.OwnerID)
	assert.Equal(t, "webauthn", result.AuthMethod)

	// Tokens are single use; the second redemption fails.
	resp, body = postJSON(t, ts.http.URL+"/api/v1/session/validate", SessionValidateRequest{Token: session.Token}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
}

func TestEndToEnd_ApprovedRequestRecordAllowsRegistration(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, ts.requests.Put(ctx, &admin.Request{
		OwnerID:     "admin-2",
		Email:       "scorer@ibahoops.test",
		Status:      admin.StatusApproved,
		RequestedAt: now.Add(-time.Hour),
		DecidedAt:   now,
	}))

	agent, err := client.NewAgent(client.AgentParams{
		BaseURL:       ts.http.URL,
		Authenticator: newVirtualAuthenticator(),
		IdentityToken: identityToken(t, testIdentitySecret, "admin-2", "scorer@ibahoops.test", "Scorekeeper"),
	})
	require.NoError(t, err)

	require.NoError(t, agent.Register(ctx))
	assert.Equal(t, 1, ts.credentials.Count())
}

func TestEndToEnd_RevocationBlocksLogin(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()

	require.NoError(t, ts.requests.Put(ctx, &admin.Request{
		OwnerID:     "admin-3",
		Email:       "referee@ibahoops.test",
		Status:      admin.StatusApproved,
		RequestedAt: time.Now().UTC(),
		DecidedAt:   time.Now().UTC(),
	}))

	agent, err := client.NewAgent(client.AgentParams{
		BaseURL:       ts.http.URL,
		Authenticator: newVirtualAuthenticator(),
		IdentityToken: identityToken(t, testIdentitySecret, "admin-3", "referee@ibahoops.test", "Referee"),
	})
	require.NoError(t, err)
	require.NoError(t, agent.Register(ctx))

	// Approval withdrawn after enrollment; the credential alone is not
	// enough to log in.
	require.NoError(t, ts.requests.Delete(ctx, "referee@ibahoops.test"))

	_, err = agent.Authenticate(ctx)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{Enabled: true, RequestsPerMinute: 6, Burst: 1})
	defer limiter.Stop()

	ts := newTestServer(t, func(cfg *Config) {
		cfg.RateLimiter = limiter
	})

	first, _ := postJSON(t, ts.http.URL+"/api/v1/auth/challenge", nil, nil)
	// 412 because no credentials exist yet; the request still consumed the
	// rate limit budget.
	require.Equal(t, http.StatusPreconditionFailed, first.StatusCode)

	second, _ := postJSON(t, ts.http.URL+"/api/v1/auth/challenge", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.ExposeMetrics = true
	})

	resp, err := http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "courtside")
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorContains(t, err, "config is required")

	_, err = NewServer(&Config{})
	assert.ErrorContains(t, err, "registration service is required")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.http.URL+"/api/v1/auth/challenge", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{logger: logging.DefaultLogger()}
	handler := s.RecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(fmt.Errorf("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
