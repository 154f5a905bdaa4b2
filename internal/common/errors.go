// Package common defines shared constants and sentinel errors used across
// the FraudWatch server layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed session token).
	ErrInvalidToken = errors.New("invalid token")

	// Challenge lifecycle errors.
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrChallengeExpired     = errors.New("challenge expired")
	ErrChallengeAlreadyUsed = errors.New("challenge already used")

	// Target normalization.
	ErrEmptyIdentifier = errors.New("empty identifier")

	// Report state machine errors.
	ErrSignatureMismatch      = errors.New("signature does not bind to submitted payload")
	ErrConflictingSubmission  = errors.New("conflicting ledger submission")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrReportAbandoned        = errors.New("report abandoned")

	// Ledger-layer errors. Transient failures are retried by the poller and
	// never surfaced to callers until exhausted.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// ValidationError reports a malformed input field. Validation failures are
// surfaced to the caller immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
