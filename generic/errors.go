/*
errors.go - Centralized error types for the dashboard engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores, the resource client and the HTTP layer wrap these errors with
  additional context; callers test them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. NotFound           - Requested id does not exist (recoverable, user-visible)
  2. StorageUnavailable - Persistence could not be read/written (retryable)
  3. CorruptCollection  - Persisted data failed to parse (recovered as empty)
  4. Validation         - Caller input failed required-field checks (never persisted)
  5. UnknownType        - No schema registered for the entity type

USAGE:
  if errors.Is(err, generic.ErrNotFound) {
      // show empty state
  }

  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      for field, msg := range verr.Fields { ... }
  }

SEE ALSO:
  - store.go: Contracts that return these errors
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when no entity with the requested id exists.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable is returned when persistence cannot be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCorruptCollection is returned when a persisted collection does not
	// parse as an array of entities.
	ErrCorruptCollection = errors.New("corrupt collection")

	// ErrValidation is returned when caller input fails schema checks.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownType is returned for an entity type with no registered schema.
	ErrUnknownType = errors.New("unknown entity type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Type EntityType
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Type, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps an I/O failure from a store.
type StorageError struct {
	Op   string // "read" or "write"
	Type EntityType
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s %s: %v", e.Op, e.Type, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// CorruptCollectionError reports a persisted collection that failed to parse.
type CorruptCollectionError struct {
	Type EntityType
	Err  error
}

func (e *CorruptCollectionError) Error() string {
	return fmt.Sprintf("corrupt collection %s: %v", e.Type, e.Err)
}

func (e *CorruptCollectionError) Unwrap() []error { return []error{ErrCorruptCollection, e.Err} }

// ValidationError lists the offending fields and why each was rejected.
type ValidationError struct {
	Type   EntityType
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s", e.Type)
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return fmt.Sprintf("invalid %s: %s", e.Type, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UnknownTypeError names the unregistered type.
type UnknownTypeError struct {
	Type EntityType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", e.Type)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity or type.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownType)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}
