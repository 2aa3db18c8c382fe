// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/ibahoops/courtside/pkg/logging"
	"github.com/ibahoops/courtside/pkg/metrics"
	"github.com/ibahoops/courtside/pkg/webauthn"
)

// HandlerContext holds the services shared by all HTTP handlers.
type HandlerContext struct {
	registration   *webauthn.RegistrationService
	authentication *webauthn.AuthenticationService
	sessions       *webauthn.SessionValidator
	version        string
	logger         *logging.Logger
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(
	registration *webauthn.RegistrationService,
	authentication *webauthn.AuthenticationService,
	sessions *webauthn.SessionValidator,
	version string,
	logger *logging.Logger,
) *HandlerContext {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &HandlerContext{
		registration:   registration,
		authentication: authentication,
		sessions:       sessions,
		version:        version,
		logger:         logger,
	}
}

// HealthHandler handles GET /health.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// RegistrationChallengeHandler handles POST /api/v1/registration/challenge.
// It returns the credential creation options for the authenticated caller.
func (h *HandlerContext) RegistrationChallengeHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", "a valid identity token is required")
		return
	}

	options, err := h.registration.GenerateChallenge(r.Context(), identity)
	if err != nil {
		h.logger.Warn("Registration challenge rejected", "email", identity.Email, "error", err.Error())
		metrics.RecordCeremony(metrics.CeremonyRegistrationChallenge, metrics.StatusError, time.Since(start).Seconds())
		writeError(w, err)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyRegistrationChallenge, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, options)
}

// RegistrationVerifyHandler handles POST /api/v1/registration/verify.
// The body is the authenticator's attestation response.
func (h *HandlerContext) RegistrationVerifyHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", "a valid identity token is required")
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistrationVerify, metrics.StatusError, time.Since(start).Seconds())
		writeErrorMessage(w, http.StatusBadRequest, "invalid argument", "malformed attestation response")
		return
	}

	credential, err := h.registration.VerifyResponse(r.Context(), identity, parsed)
	if err != nil {
		h.logger.Warn("Registration verification rejected", "email", identity.Email, "error", err.Error())
		metrics.RecordCeremony(metrics.CeremonyRegistrationVerify, metrics.StatusError, time.Since(start).Seconds())
		writeError(w, err)
		return
	}

	h.logger.Info("Credential registered",
		"email", identity.Email,
		"credential_id", credential.CredentialID,
		"device_type", credential.DeviceType)
	metrics.RecordCeremony(metrics.CeremonyRegistrationVerify, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, RegistrationVerifyResponse{
		Verified:     true,
		CredentialID: credential.CredentialID,
	})
}

// AuthChallengeHandler handles POST /api/v1/auth/challenge. The caller is
// anonymous; the assertion identifies the credential.
func (h *HandlerContext) AuthChallengeHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	options, err := h.authentication.GenerateChallenge(r.Context())
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthChallenge, metrics.StatusError, time.Since(start).Seconds())
		writeError(w, err)
		return
	}

	metrics.RecordCeremony(metrics.CeremonyAuthChallenge, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, options)
}

// AuthVerifyHandler handles POST /api/v1/auth/verify. The body is the
// authenticator's assertion response; success issues a session token.
func (h *HandlerContext) AuthVerifyHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	parsed, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthVerify, metrics.StatusError, time.Since(start).Seconds())
		writeErrorMessage(w, http.StatusBadRequest, "invalid argument", "malformed assertion response")
		return
	}

	result, err := h.authentication.VerifyResponse(r.Context(), parsed)
	if err != nil {
		h.logger.Warn("Login rejected", "remote_addr", r.RemoteAddr, "error", err.Error())
		metrics.RecordCeremony(metrics.CeremonyAuthVerify, metrics.StatusError, time.Since(start).Seconds())
		writeError(w, err)
		return
	}

	h.logger.Info("Admin logged in", "owner_id", result.OwnerID)
	metrics.RecordCeremony(metrics.CeremonyAuthVerify, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, AuthVerifyResponse{
		Verified:     result.Verified,
		SessionToken: result.SessionToken,
		OwnerID:      result.OwnerID,
		ExpiresAt:    result.ExpiresAt,
	})
}

// SessionValidateHandler handles POST /api/v1/session/validate. Tokens are
// single use; a valid token is consumed by this call.
func (h *HandlerContext) SessionValidateHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var request SessionValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		metrics.RecordCeremony(metrics.CeremonySessionValidate, metrics.StatusError, time.Since(start).Seconds())
		writeErrorMessage(w, http.StatusBadRequest, "invalid argument", "malformed request body")
		return
	}

	info, err := h.sessions.Validate(r.Context(), request.Token)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonySessionValidate, metrics.StatusError, time.Since(start).Seconds())
		kind, status := classify(err)
		if status == http.StatusInternalServerError {
			writeError(w, err)
			return
		}
		// A rejected token is an expected outcome, reported in the body.
		writeJSON(w, status, SessionValidateResponse{
			Valid:   false,
			Error:   kind,
			Message: err.Error(),
		})
		return
	}

	metrics.RecordCeremony(metrics.CeremonySessionValidate, metrics.StatusSuccess, time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, SessionValidateResponse{
		Valid:      info.Valid,
		OwnerID:    info.OwnerID,
		AuthMethod: info.AuthMethod,
	})
}
