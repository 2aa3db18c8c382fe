// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by the services wraps exactly one of
// these sentinels; transport layers map them to status codes with KindOf.
var (
	// ErrPermissionDenied is returned when the caller is not an approved
	// admin or when cryptographic verification of a response fails.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrFailedPrecondition is returned when required state is missing,
	// such as an unknown challenge or an empty credential store.
	ErrFailedPrecondition = errors.New("failed precondition")

	// ErrDeadlineExceeded is returned when a challenge expired before the
	// ceremony completed.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrInvalidArgument is returned when the client response is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternal is returned for storage or configuration failures.
	ErrInternal = errors.New("internal error")
)

// Sentinel errors returned by store implementations.
var (
	// ErrChallengeNotFound is returned when a challenge cannot be found
	// or has expired.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when appending a credential whose
	// identifier is already registered.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrTokenNotFound is returned when a session token cannot be found,
	// has expired, or was already redeemed.
	ErrTokenNotFound = errors.New("session token not found")
)

// WebAuthnError wraps an error with the operation that produced it.
type WebAuthnError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *WebAuthnError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *WebAuthnError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *WebAuthnError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new WebAuthnError with the given operation and error.
func NewError(op string, err error) error {
	return &WebAuthnError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// failf builds a service error of the given kind with a human-readable
// message, attributed to op.
func failf(op string, kind error, format string, args ...any) error {
	return NewError(op, fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)))
}

// KindOf returns the failure kind wrapped by err. Errors that carry no
// recognized kind are reported as ErrInternal.
func KindOf(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied
	case errors.Is(err, ErrFailedPrecondition):
		return ErrFailedPrecondition
	case errors.Is(err, ErrDeadlineExceeded):
		return ErrDeadlineExceeded
	case errors.Is(err, ErrInvalidArgument):
		return ErrInvalidArgument
	default:
		return ErrInternal
	}
}

// IsPermissionDenied returns true if the error carries the PermissionDenied kind.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsFailedPrecondition returns true if the error carries the FailedPrecondition kind.
func IsFailedPrecondition(err error) bool {
	return errors.Is(err, ErrFailedPrecondition)
}

// IsDeadlineExceeded returns true if the error carries the DeadlineExceeded kind.
func IsDeadlineExceeded(err error) bool {
	return errors.Is(err, ErrDeadlineExceeded)
}

// IsInvalidArgument returns true if the error carries the InvalidArgument kind.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsChallengeNotFound returns true if the error indicates a challenge was
// not found or had expired.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsCredentialNotFound returns true if the error indicates a credential was
// not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsCredentialExists returns true if the error indicates a duplicate
// credential registration.
func IsCredentialExists(err error) bool {
	return errors.Is(err, ErrCredentialExists)
}

// IsTokenNotFound returns true if the error indicates a session token was
// not found, had expired, or was already redeemed.
func IsTokenNotFound(err error) bool {
	return errors.Is(err, ErrTokenNotFound)
}
