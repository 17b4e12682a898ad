// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package timelineerr defines the error taxonomy used across the
// timeline service's request façade and internal components, replacing
// ad-hoc sentinel errors with a wrapped (Kind, cause) pair that callers
// can classify with errors.As without matching on error strings.
package timelineerr

import (
	"errors"
	"fmt"
)

// Kind classifies a timeline service error for logging, metrics, and
// HTTP status mapping.
type Kind int

const (
	// KindInternal is an unclassified internal failure.
	KindInternal Kind = iota
	// KindUnauthorized means the caller is not permitted to perform the
	// requested operation on the requested resource.
	KindUnauthorized
	// KindRateLimited means the caller's token bucket was exhausted.
	KindRateLimited
	// KindInvalidArgument means request validation failed.
	KindInvalidArgument
	// KindDegradedSource means a content source adapter failed or timed
	// out and was excluded from the slate build.
	KindDegradedSource
	// KindCacheMiss means a requested cache entry was absent or expired.
	KindCacheMiss
	// KindUpstreamFailure means an external collaborator (note service,
	// follow-graph service) returned an error.
	KindUpstreamFailure
	// KindNotFound means the requested resource does not exist.
	KindNotFound
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindDegradedSource:
		return "degraded_source"
	case KindCacheMiss:
		return "cache_miss"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind classification and a
// component-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, enabling errors.Is/errors.As to see
// through a timeline Error to its underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns a new Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a new Error of the given kind wrapping cause. If cause is
// nil, Wrap returns nil.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error,
// defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

// Is reports whether err is a timeline Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
