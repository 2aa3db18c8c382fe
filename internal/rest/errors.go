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

	"github.com/ibahoops/courtside/pkg/webauthn"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes the structured error document for a service error,
// mapping its failure kind to an HTTP status code.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	message := "an unexpected error occurred"
	if status != http.StatusInternalServerError {
		// Internal detail stays out of responses; taxonomy errors carry
		// messages written for the caller.
		message = err.Error()
	}
	writeErrorMessage(w, status, kind, message)
}

// writeErrorMessage writes the structured error document directly.
func writeErrorMessage(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    status,
	})
}

// classify maps a service error to its wire label and HTTP status.
func classify(err error) (string, int) {
	switch webauthn.KindOf(err) {
	case webauthn.ErrPermissionDenied:
		return "permission denied", http.StatusForbidden
	case webauthn.ErrFailedPrecondition:
		return "failed precondition", http.StatusPreconditionFailed
	case webauthn.ErrDeadlineExceeded:
		return "deadline exceeded", http.StatusRequestTimeout
	case webauthn.ErrInvalidArgument:
		return "invalid argument", http.StatusBadRequest
	default:
		return "internal", http.StatusInternalServerError
	}
}
