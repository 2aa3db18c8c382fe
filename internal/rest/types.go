// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import "time"

// ErrorResponse is the error document returned on every non-2xx response.
type ErrorResponse struct {
	// Error is the failure kind.
	Error string `json:"error"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// Code is the HTTP status code.
	Code int `json:"code"`
}

// RegistrationVerifyResponse confirms a completed registration ceremony.
type RegistrationVerifyResponse struct {
	Verified     bool   `json:"verified"`
	CredentialID string `json:"credential_id"`
}

// AuthVerifyResponse carries the session token issued by a successful login.
type AuthVerifyResponse struct {
	Verified     bool      `json:"verified"`
	SessionToken string    `json:"session_token"`
	OwnerID      string    `json:"owner_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionValidateRequest redeems a session token.
type SessionValidateRequest struct {
	Token string `json:"token"`
}

// SessionValidateResponse reports the outcome of a token redemption. A
// rejected token is not a server failure; the response says why the token
// was rejected instead of hiding it behind a bare status code.
type SessionValidateResponse struct {
	Valid      bool   `json:"valid"`
	OwnerID    string `json:"owner_id,omitempty"`
	AuthMethod string `json:"auth_method,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

// HealthResponse is the liveness probe document.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
