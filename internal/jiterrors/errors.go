// Package jiterrors implements the engine's error taxonomy: a closed set
// of error kinds, represented as values rather than distinct Go types, so
// that every layer of the engine can classify a failure the same way
// without importing a concrete adapter error type.
package jiterrors

import (
	"errors"
	"fmt"
)

// Kind is one of the eight error categories the engine ever surfaces.
type Kind string

const (
	// NotAuthenticated indicates the upstream identity is missing. The
	// core never raises this itself — an identity-aware proxy is assumed
	// to have already authenticated the caller.
	NotAuthenticated Kind = "NotAuthenticated"

	// AccessDenied indicates the caller is ineligible, not a listed
	// reviewer, or failed the justification policy.
	AccessDenied Kind = "AccessDenied"

	// NotFound indicates the referenced resource is absent.
	NotFound Kind = "NotFound"

	// AlreadyExists indicates a binding with identical (member, role,
	// condition) already exists.
	AlreadyExists Kind = "AlreadyExists"

	// InvalidArgument indicates an out-of-range duration, reviewer count,
	// batch size, or a start time in the past.
	InvalidArgument Kind = "InvalidArgument"

	// Conflict indicates exhausted etag retries on a policy write.
	Conflict Kind = "Conflict"

	// TokenInvalid indicates a signature mismatch, wrong algorithm,
	// issuer/audience mismatch, or an expired token.
	TokenInvalid Kind = "TokenInvalid"

	// Transient indicates a transport-level error the caller may retry.
	Transient Kind = "Transient"
)

// Error is the engine's single error type. Kind carries the taxonomy
// classification; Message is a user-visible description; Cause, if set,
// is the wrapped underlying error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying cause, classified as kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
