// Package errors provides structured error types for OME collections.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the core, the store boundary and the CLI
//   - Machine-readable error codes for programmatic handling
//   - Diagnostics naming the broken rule, the offending field and the node path
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Two families matter to callers:
//   - SCHEMA_VIOLATION: a structural or semantic rule was broken while
//     constructing nodes or attributes. [Error.Rule] names the rule.
//   - COLLECTION_NOT_FOUND / NO_RECORDS: lookup failures at the storage
//     boundary. Use [IsLookupFailure] to test for either.
//
// # Usage
//
//	err := errors.Violation(errors.RuleOrigin, "origin", "origin %q is not valid for %s", o, c)
//	if errors.IsSchemaViolation(err) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "write annotation for image %d", id)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Validation errors
	ErrCodeSchemaViolation Code = "SCHEMA_VIOLATION"
	ErrCodeInvalidInput    Code = "INVALID_INPUT"

	// Lookup failures at the storage boundary
	ErrCodeCollectionNotFound Code = "COLLECTION_NOT_FOUND"
	ErrCodeNoRecords          Code = "NO_RECORDS"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Rule identifies which schema rule a SCHEMA_VIOLATION broke.
type Rule string

// Schema rules.
const (
	RuleNodesPath     Rule = "nodes_path"    // collection sets both or neither of nodes/path
	RuleDiscriminator Rule = "discriminator" // unknown node type tag
	RuleIdentity      Rule = "identity"      // missing or malformed image identifier
	RuleName          Rule = "name"          // empty name or name containing '/'
	RuleUniqueName    Rule = "unique_name"   // sibling names collide
	RuleCategory      Rule = "category"
	RuleOrigin        Rule = "origin"
	RuleSource        Rule = "source"
	RulePath          Rule = "path"     // malformed or conflicting record path
	RuleDocument      Rule = "document" // document shape rejected before typed decoding
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)

	Rule  Rule   // Broken rule (SCHEMA_VIOLATION only)
	Field string // Offending field, if known
	Path  string // Slash-joined node path, if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Rule != "" {
		fmt.Fprintf(&b, "[%s]", e.Rule)
	}
	b.WriteString(": ")
	if loc := e.location(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) location() string {
	switch {
	case e.Path != "" && e.Field != "":
		return e.Path + " (" + e.Field + ")"
	case e.Path != "":
		return e.Path
	case e.Field != "":
		return e.Field
	}
	return ""
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Violation creates a SCHEMA_VIOLATION for rule, blaming field.
func Violation(rule Rule, field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeSchemaViolation,
		Message: fmt.Sprintf(format, args...),
		Rule:    rule,
		Field:   field,
	}
}

// AtPath attaches a node path to err if err is an *Error without one.
// Errors that already carry a path keep it, so the innermost location wins.
// Other errors are returned unchanged.
func AtPath(err error, path string) error {
	var e *Error
	if err == nil || !errors.As(err, &e) || e.Path != "" {
		return err
	}
	e.Path = path
	return err
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetRule extracts the broken rule from a SCHEMA_VIOLATION.
func GetRule(err error) Rule {
	var e *Error
	if errors.As(err, &e) {
		return e.Rule
	}
	return ""
}

// IsSchemaViolation reports whether err is a SCHEMA_VIOLATION.
func IsSchemaViolation(err error) bool {
	return Is(err, ErrCodeSchemaViolation)
}

// IsLookupFailure reports whether err signals a missing collection or a
// collection without readable records.
func IsLookupFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeCollectionNotFound, ErrCodeNoRecords:
		return true
	}
	return false
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message prefixed with its location but without
// the code. For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if loc := e.location(); loc != "" {
			return loc + ": " + e.Message
		}
		return e.Message
	}
	return err.Error()
}
