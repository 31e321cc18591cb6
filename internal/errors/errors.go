// Package errors provides structured error types for the Strata storage
// engine. All errors include a category, code, message, and retryable flag
// for consistent handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryMutation   ErrorCategory = "MUTATION"
	ErrCategoryVacuum     ErrorCategory = "VACUUM"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Catalog codes
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeConflict        = "CONFLICT"
	CodeNoSuchVersion   = "NO_SUCH_VERSION"

	// Mutation codes
	CodeWriteContention     = "WRITE_CONTENTION"
	CodeSchemaIncompatible  = "SCHEMA_INCOMPATIBLE"

	// Storage codes
	CodeStorageIO = "STORAGE_IO"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// StrataError is the structured error type used throughout the system.
type StrataError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *StrataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StrataError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *StrataError) Is(target error) bool {
	var t *StrataError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new StrataError.
func New(category ErrorCategory, code, message string) *StrataError {
	return &StrataError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new StrataError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *StrataError {
	return &StrataError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *StrataError) WithDetails(details map[string]interface{}) *StrataError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a StrataError.
func GetCategory(err error) ErrorCategory {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a StrataError.
func GetCode(err error) string {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code string) bool {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// isRetryable determines if an error code is retryable.
// A commit conflict is retryable by recomputing against the new current
// version; transient storage I/O is retryable with backoff.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case code == CodeConflict:
		return true
	case category == ErrCategoryStorage && code == CodeStorageIO:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewNotFound(message string) *StrataError {
	return New(ErrCategoryCatalog, CodeNotFound, message)
}

func NewAlreadyExists(message string) *StrataError {
	return New(ErrCategoryCatalog, CodeAlreadyExists, message)
}

func NewConflict(message string) *StrataError {
	return New(ErrCategoryCatalog, CodeConflict, message)
}

func NewNoSuchVersion(message string) *StrataError {
	return New(ErrCategoryCatalog, CodeNoSuchVersion, message)
}

func NewWriteContention(message string, cause error) *StrataError {
	return Wrap(ErrCategoryMutation, CodeWriteContention, message, cause)
}

func NewSchemaIncompatible(message string) *StrataError {
	return New(ErrCategoryMutation, CodeSchemaIncompatible, message)
}

func NewStorageIO(message string, cause error) *StrataError {
	return Wrap(ErrCategoryStorage, CodeStorageIO, message, cause)
}

func NewInternal(message string, cause error) *StrataError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
