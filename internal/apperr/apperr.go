// Package apperr defines the error taxonomy shared by the assessment core.
// Callers pick a retry policy by inspecting the kind: provider failures are
// retryable, parse failures are not, duplicates are idempotent success.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a lookup for a row that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEvaluation marks an evaluation attempt for a session that
	// already has a ledger entry. Callers that may double-fire should treat
	// this as success.
	ErrDuplicateEvaluation = errors.New("session already evaluated")

	// ErrProviderUnavailable marks a transport- or provider-level LLM failure.
	// Eligible for one caller-level retry with backoff.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
)

// ValidationError reports malformed input rejected before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseError reports an LLM reply that could not be parsed into the required
// structure. It keeps the raw reply for rubric debugging. Not auto-retried:
// a malformed response usually means a prompt defect, not a transient fault.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "parse llm response: " + e.Reason
}

// AsParseError returns the ParseError in err's chain, or nil.
func AsParseError(err error) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}
