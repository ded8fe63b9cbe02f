// Package apperr defines the error taxonomy shared across the document
// question-answering pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an error with the category the HTTP layer and callers use to
// decide how to respond, independent of the wrapped message.
type Kind string

const (
	Validation              Kind = "validation"
	NotFound                Kind = "not_found"
	TooLarge                Kind = "too_large"
	UnsupportedFormat       Kind = "unsupported_format"
	NoExtractableText       Kind = "no_extractable_text"
	IndexInvariantViolation Kind = "index_invariant_violation"
	LLMUnavailable          Kind = "llm_unavailable"
	TimeoutSoft             Kind = "timeout_soft"
	Transient               Kind = "transient"
)

// Error is an apperr-tagged error. Callers use errors.As to recover the Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a Kind-tagged error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a Kind to the status code prescribed by the error
// handling design (validation/not-found/too-large/unsupported are 4xx;
// extraction, invariant, and backend failures are 5xx).
func HTTPStatus(kind Kind) int {
	switch kind {
	case Validation:
		return 400
	case NotFound:
		return 404
	case TooLarge:
		return 413
	case UnsupportedFormat:
		return 400
	case NoExtractableText, IndexInvariantViolation, LLMUnavailable, Transient:
		return 500
	case TimeoutSoft:
		return 200
	default:
		return 500
	}
}
