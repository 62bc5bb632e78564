// Package dalerr defines the error taxonomy shared by every layer of the data access layer.
//
// Validation and not-found errors are expected conditions that callers translate into
// user-facing messages. Constraint errors carry the backend error verbatim. Initialization
// errors signal startup-ordering bugs and are never caught inside the DAL.
package dalerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrInitialization is matched by every InitializationError.
	ErrInitialization = errors.New("model accessed before initialization")

	// ErrStaleRevision is returned when a revision edit is based on a head that has since been
	// superseded by another writer.
	ErrStaleRevision = errors.New("revision is no longer current")
)

// ValidationError reports a schema constraint violation for a single field path.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "validation failed: " + e.Reason
	}

	return fmt.Sprintf("validation failed for %s: %s", e.Path, e.Reason)
}

// Invalid is a shorthand for building a ValidationError.
func Invalid(path, reason string) *ValidationError {
	return &ValidationError{Path: path, Reason: reason}
}

// NotFoundError is returned when an id or filter yields no matching row.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: no matching row", e.Table)
	}

	return fmt.Sprintf("%s: row %q not found", e.Table, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) work.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConstraintKind classifies storage-level constraint violations.
type ConstraintKind int

const (
	// ConstraintOther is any constraint violation that could not be classified.
	ConstraintOther ConstraintKind = iota
	// ConstraintUnique is a duplicate key on a primary key or unique index.
	ConstraintUnique
	// ConstraintForeignKey is a foreign key violation.
	ConstraintForeignKey
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign key"
	default:
		return "other"
	}
}

// ConstraintError wraps a uniqueness or foreign-key violation reported by the backend.
type ConstraintError struct {
	Table string
	Kind  ConstraintKind
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s constraint violated: %v", e.Table, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	var ce *ConstraintError

	return errors.As(err, &ce) && ce.Kind == ConstraintUnique
}

// InitializationError is raised when a lazy handle is used before registration or when a
// registry is asked for a table no connection has created.
type InitializationError struct {
	Table  string
	Reason string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Table, ErrInitialization.Error(), e.Reason)
}

// Is makes errors.Is(err, ErrInitialization) work.
func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

// ReportedError is a domain-level failure with a message key that can be shown to users.
type ReportedError struct {
	Key string
	Err error
}

func (e *ReportedError) Error() string {
	if e.Err == nil {
		return e.Key
	}

	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

// Report wraps err in a ReportedError carrying key.
func Report(key string, err error) *ReportedError {
	return &ReportedError{Key: key, Err: err}
}
