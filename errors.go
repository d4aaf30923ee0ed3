package syntra

import (
	"context"
	"errors"
)

// Sentinel errors. Components wrap them with a prefix naming the stage
// that failed, e.g. "affect: invalid input: empty text".
var (
	// ErrInvalidInput is returned for empty or oversized text. It is raised
	// before any provider call and is never worth retrying.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCapabilityUnavailable is returned when no generation capability is
	// configured, or the configured one reports it cannot serve requests.
	ErrCapabilityUnavailable = errors.New("generation capability unavailable")

	// ErrGenerationFailed is returned when the provider was reached but the
	// call errored, timed out, or produced nothing usable.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrValidationFailed is returned when a derived result violates its
	// invariants. Such results are never handed back as values.
	ErrValidationFailed = errors.New("validation failed")
)

// MaxInputLength is the largest accepted input, in characters.
const MaxInputLength = 10000

// FailureCategory groups errors by what a caller should do about them.
type FailureCategory string

// Failure categories.
const (
	FailureNone        FailureCategory = ""
	FailureInvalid     FailureCategory = "invalid-input"
	FailureUnavailable FailureCategory = "unavailable"
	FailureTransient   FailureCategory = "transient"
	FailureValidation  FailureCategory = "validation"
	FailureUnknown     FailureCategory = "unknown"
)

// Classify maps an error onto a FailureCategory. Unavailable means the
// feature is not usable on this configuration; transient means a retry
// may succeed.
func Classify(err error) FailureCategory {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalid
	case errors.Is(err, ErrCapabilityUnavailable):
		return FailureUnavailable
	case errors.Is(err, ErrValidationFailed):
		return FailureValidation
	case errors.Is(err, ErrGenerationFailed),
		errors.Is(err, context.DeadlineExceeded):
		return FailureTransient
	default:
		return FailureUnknown
	}
}

// Retryable reports whether a caller may reasonably retry after err.
func Retryable(err error) bool {
	c := Classify(err)
	return c == FailureTransient || c == FailureValidation
}
