// Package errs provides the unified error type used across all of Tabula.
//
// Every subsystem (database drivers, introspection, cache, CRUD engine) wraps
// its native errors into *errs.Error before returning them. Callers use the
// Is* predicates to tell the kinds apart without importing driver packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindConstraint, "insert failed", pgErr)
//
//	// In a handler, check the error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // primary key has no matching row
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation / busy database
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindSchema                   // table absent or catalog unreadable
	ErrKindCacheMiss                // metadata cache queried before population
	ErrKindUnknownTable             // table never seen by the introspector
	ErrKindUnknownColumn            // column never seen by the introspector
	ErrKindValidation               // missing required field, type mismatch
	ErrKindConstraint               // uniqueness / foreign key / check violation
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindSchema:
		return "schema"
	case ErrKindCacheMiss:
		return "cache_miss"
	case ErrKindUnknownTable:
		return "unknown_table"
	case ErrKindUnknownColumn:
		return "unknown_column"
	case ErrKindValidation:
		return "validation"
	case ErrKindConstraint:
		return "constraint"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all Tabula subsystems.
// Table, Column and Constraint are filled in when the failing operation
// knows them; presentation code uses them to build messages.
type Error struct {
	Kind       ErrKind
	Message    string
	Table      string
	Column     string
	Constraint string
	Cause      error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// UnknownTable reports a table name that is not in the metadata cache.
func UnknownTable(table string) *Error {
	return &Error{Kind: ErrKindUnknownTable, Message: fmt.Sprintf("unknown table %q", table), Table: table}
}

// UnknownColumn reports a column name that is not part of the cached table.
func UnknownColumn(table, column string) *Error {
	return &Error{
		Kind:    ErrKindUnknownColumn,
		Message: fmt.Sprintf("unknown column %q in table %q", column, table),
		Table:   table,
		Column:  column,
	}
}

// CacheMiss reports a cache lookup for a table that was never refreshed.
func CacheMiss(table string) *Error {
	return &Error{
		Kind:    ErrKindCacheMiss,
		Message: fmt.Sprintf("no cached metadata for table %q", table),
		Table:   table,
	}
}

// Validation reports bad submitted data for a column.
func Validation(table, column, msg string) *Error {
	return &Error{Kind: ErrKindValidation, Message: msg, Table: table, Column: column}
}

// NotFound reports a missing row.
func NotFound(table string, pk any) *Error {
	return &Error{
		Kind:    ErrKindNotFound,
		Message: fmt.Sprintf("no row in %q with primary key %v", table, pk),
		Table:   table,
	}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsSchema reports whether err is a missing table or unreadable catalog.
func IsSchema(err error) bool {
	return KindOf(err) == ErrKindSchema
}

// IsCacheMiss reports whether err is a lookup of unpopulated cache state.
func IsCacheMiss(err error) bool {
	return KindOf(err) == ErrKindCacheMiss
}

// IsUnknownTable reports whether err references a table the cache never saw.
func IsUnknownTable(err error) bool {
	return KindOf(err) == ErrKindUnknownTable
}

// IsUnknownColumn reports whether err references a column the cache never saw.
func IsUnknownColumn(err error) bool {
	return KindOf(err) == ErrKindUnknownColumn
}

// IsValidation reports whether err rejects submitted data. Unknown column
// names in submitted data count as validation failures too.
func IsValidation(err error) bool {
	k := KindOf(err)
	return k == ErrKindValidation || k == ErrKindUnknownColumn
}

// IsConstraint reports whether err is a constraint violation raised by the storage engine.
func IsConstraint(err error) bool {
	return KindOf(err) == ErrKindConstraint
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
