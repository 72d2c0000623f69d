/*
errors.go - Error taxonomy for persistence and validation

ERROR CATEGORIES:
  1. ErrStoreUnavailable - the store cannot be opened at all. Fatal to
     persistence; callers fall back to an in-memory session.
  2. ErrPersistence - one read/write/transaction failed. Recoverable; prior
     state is intact and the caller may retry.
  3. ErrInvalidSettings / ErrInvalidDateKey - rejected input.

Absent keys are NOT errors. Reads resolve them to empty mappings or nil.

USAGE:
  if errors.Is(err, shift.ErrStoreUnavailable) {
      // open store/memory instead
  }
*/
package shift

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the underlying engine cannot be opened
	// (storage disabled, quota exhausted, unreadable file).
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPersistence is returned when a specific read, write or transaction failed.
	ErrPersistence = errors.New("persistence error")

	// ErrReadOnlyTx is returned when writing through a read-only transaction.
	ErrReadOnlyTx = errors.New("write in read-only transaction")

	// ErrUnknownCollection is returned for a collection name the store does not own.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrInvalidDateKey is returned when a date key is not YYYY-MM-DD.
	ErrInvalidDateKey = errors.New("invalid date key")

	// ErrInvalidSettings is returned when a settings record fails validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PersistenceError describes a failed repository operation.
type PersistenceError struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap exposes both ErrPersistence and the cause to errors.Is/As.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NewPersistenceError wraps err unless it is nil.
func NewPersistenceError(op string, c Collection, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Collection: c, Err: err}
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError lists every failed rule of a settings record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ":" + f.Rule
	}
	return fmt.Sprintf("invalid settings: %s", strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSettings
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsUnavailable reports whether persistence as a whole is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsRetryable reports whether the failed operation left state intact and may
// be retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) &&
		!errors.Is(err, ErrInvalidDateKey) &&
		!errors.Is(err, ErrInvalidSettings) &&
		!errors.Is(err, ErrStoreUnavailable)
}

// IsClientError reports whether err stems from invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateKey) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrUnknownCollection)
}
