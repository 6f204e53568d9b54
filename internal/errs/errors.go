// Package errs defines the caller-facing error taxonomy of the health store.
//
// Every failure that crosses the store or aggregation boundary is either an
// *Error carrying one of the codes below, or an internal error wrapped with
// fmt.Errorf. Callers classify errors with the Is* helpers, which see through
// wrapping via errors.As.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes a store error.
type Code string

const (
	// CodeValidation marks a malformed or contradictory request. Always
	// reported before any statement is executed.
	CodeValidation Code = "VALIDATION"

	// CodePermission marks a caller with neither write permission nor any
	// granted read type, or an operation on data the caller cannot touch.
	CodePermission Code = "PERMISSION"

	// CodeConflict marks a unique-constraint violation that upsert logic does
	// not absorb, e.g. a duplicate data source display name.
	CodeConflict Code = "CONFLICT"

	// CodeNotFound marks a read/delete target count mismatch.
	CodeNotFound Code = "NOT_FOUND"

	// CodeIntegrity marks a defensive invariant violation, such as a result
	// set exceeding the maximum allowed row count.
	CodeIntegrity Code = "INTEGRITY"
)

// Error is a classified store error.
type Error struct {
	Code    Code
	Message string

	// Field names the offending request field or column, when there is one.
	Field string

	// Details carries identity information for diagnostics.
	Details map[string]string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field=%s)", e.Field)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Details[k])
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	return b.String()
}

// Validation returns a CodeValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField returns a CodeValidation error naming the offending field.
func ValidationField(field, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...), Field: field}
}

// Permission returns a CodePermission error.
func Permission(format string, args ...any) *Error {
	return &Error{Code: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a CodeConflict error naming the field that collided.
func Conflict(field, format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...), Field: field}
}

// NotFound returns a CodeNotFound error. details should let the caller tell
// "does not exist" apart from "exists but not owned by you".
func NotFound(details map[string]string, format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Details: details}
}

// Integrity returns a CodeIntegrity error.
func Integrity(format string, args ...any) *Error {
	return &Error{Code: CodeIntegrity, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsPermission reports whether err is a permission error.
func IsPermission(err error) bool { return CodeOf(err) == CodePermission }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsIntegrity reports whether err is an integrity error.
func IsIntegrity(err error) bool { return CodeOf(err) == CodeIntegrity }
