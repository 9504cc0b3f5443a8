// internal/errors/errors.go

// Package errors defines the navigation failure taxonomy used across docnav
// and the helpers that turn those failures into CLI output and exit codes.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a navigation failure
type Kind int

const (
	KindUnknown Kind = iota
	KindCapabilityMissing
	KindCallRejected
	KindOutOfRange
	KindVerificationTimeout
	KindExhausted
	KindInvalidTarget
	KindNotReady
)

// String returns the snake_case name used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindCapabilityMissing:
		return "capability_missing"
	case KindCallRejected:
		return "call_rejected"
	case KindOutOfRange:
		return "out_of_range"
	case KindVerificationTimeout:
		return "verification_timeout"
	case KindExhausted:
		return "exhausted"
	case KindInvalidTarget:
		return "invalid_target"
	case KindNotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// ErrCapabilityMissing is returned by handle adapters when the SDK object
// does not expose the requested method.
var ErrCapabilityMissing = stderrors.New("capability missing")

// NavError describes why navigating to a page failed
type NavError struct {
	Kind     Kind
	Strategy string
	Page     int
	Err      error
}

// New creates a NavError for the given one-based page
func New(kind Kind, page int, err error) *NavError {
	return &NavError{Kind: kind, Page: page, Err: err}
}

// WithStrategy returns a copy of the error tagged with a strategy name
func (e *NavError) WithStrategy(name string) *NavError {
	cp := *e
	cp.Strategy = name
	return &cp
}

func (e *NavError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "navigation to page %d: %s", e.Page, e.Kind)
	if e.Strategy != "" {
		fmt.Fprintf(&b, " (strategy %s)", e.Strategy)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *NavError) Unwrap() error {
	return e.Err
}

// Classify reports the Kind of err. Errors that are not NavErrors are
// mapped by their cause where possible.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var nav *NavError
	if stderrors.As(err, &nav) {
		return nav.Kind
	}
	if stderrors.Is(err, ErrCapabilityMissing) {
		return KindCapabilityMissing
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindVerificationTimeout
	}
	return KindUnknown
}

// IsCapabilityMissing reports whether err signals an absent SDK method
func IsCapabilityMissing(err error) bool {
	return Classify(err) == KindCapabilityMissing
}

// Is and As re-export the standard helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
