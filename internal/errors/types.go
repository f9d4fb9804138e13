// Package errors classifies failures crossing the gateway boundary so the
// stores can decide between retrying, failing fast, and skipping rows.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies what went wrong, independent of how it is handled.
type Kind int

const (
	// Transport covers network failures, timeouts and 5xx responses.
	Transport Kind = iota
	// Auth covers invalid credentials, expired sessions, 401/403 responses.
	Auth
	// Validation covers client-side precondition failures and 4xx rejections.
	Validation
	// NotFound covers missing attractions, reviews and empty lookups.
	NotFound
	// PartialDecode marks a malformed row inside an otherwise good batch.
	PartialDecode
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Transport:
		return "Transport"
	case Auth:
		return "Auth"
	case Validation:
		return "Validation"
	case NotFound:
		return "NotFound"
	case PartialDecode:
		return "PartialDecode"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Category determines how errors should be handled by retry logic.
type Category int

const (
	// Recoverable errors may be retried with exponential backoff.
	Recoverable Category = iota
	// Irrecoverable errors fail immediately without retry.
	Irrecoverable
)

// String returns a human-readable representation of the category.
func (c Category) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError wraps an error with kind and retry metadata.
type ClassifiedError struct {
	Kind       Kind
	Category   Category
	StatusCode int    // HTTP status code (0 for non-HTTP errors)
	Body       string // Response body preserved for display
	Underlying error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Kind, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Underlying)
}

// Unwrap returns the underlying error for error chain compatibility.
func (e *ClassifiedError) Unwrap() error {
	return e.Underlying
}

// KindOf extracts the kind from err, reporting false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// Is reports whether err is classified with the given kind.
func Is(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}

// IsIrrecoverable returns true if the error should not be retried.
func IsIrrecoverable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category == Irrecoverable
	}
	return false
}

// NewValidation builds a fail-fast validation error. Validation errors are
// raised before any network call is attempted.
func NewValidation(msg string) *ClassifiedError {
	return &ClassifiedError{
		Kind:       Validation,
		Category:   Irrecoverable,
		Underlying: errors.New(msg),
	}
}

// NewTransport wraps a network-level failure. Always recoverable as the
// condition may be transient.
func NewTransport(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:       Transport,
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s: %w", operation, err),
	}
}

// NewPartialDecode marks one malformed row in a batch response. The caller
// skips the row and keeps the rest of the batch.
func NewPartialDecode(operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Kind:       PartialDecode,
		Category:   Irrecoverable,
		Underlying: fmt.Errorf("%s: %w", operation, err),
	}
}
