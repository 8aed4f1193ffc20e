/*
errors.go - Centralized error types for the reconciliation core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Adapter and API packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors  - malformed input, rejected before any pair runs
  2. Invalid-state      - approval attempted on a non-pending record
  3. Pair-level runtime - one (team, date) pair failed; siblings continue
  4. Source errors      - an upstream data source was unavailable

USAGE:
  if reconcile.IsInvalidState(err) {
      // surface 409 to the caller, nothing was mutated
  }
*/
package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or missing request input.
	// Nothing is processed when validation fails.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState is returned when a decision targets a record that is
	// no longer pending. No mutation occurs.
	ErrInvalidState = errors.New("record not in a decidable state")

	// ErrSourceUnavailable is returned when an upstream data source fails.
	// Pair-level: the orchestrator isolates it to the failing pair.
	ErrSourceUnavailable = errors.New("data source unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which request field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports a decision attempted on a terminal record.
type InvalidStateError struct {
	OvertimeID string
	Current    OutcomeStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("overtime %s is %s, only pending records can be decided",
		e.OvertimeID, e.Current)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// PairError wraps a failure while reconciling one (team, date) pair.
type PairError struct {
	TeamID int
	Date   RefDate
	Err    error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("team %d on %s: %v", e.TeamID, e.Date, e.Err)
}

func (e *PairError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidState)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
