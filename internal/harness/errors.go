package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/govqa/portalharness/internal/report"
)

// Kind classifies a failure so callers can tell a missing element from a
// broken interaction or a failed expectation.
type Kind string

const (
	KindSessionStart  Kind = "SESSION_START"
	KindLocateTimeout Kind = "LOCATE_TIMEOUT"
	KindInteraction   Kind = "INTERACTION"
	KindAssertion     Kind = "ASSERTION_FAILURE"
	KindNoMatch       Kind = "NO_MATCH"
)

// Error is a typed harness failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the kind sentinels below, so errors.Is(err, ErrLocateTimeout) works
// through any amount of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

var (
	ErrSessionStart  = &Error{Kind: KindSessionStart}
	ErrLocateTimeout = &Error{Kind: KindLocateTimeout}
	ErrInteraction   = &Error{Kind: KindInteraction}
	ErrAssertion     = &Error{Kind: KindAssertion}
	ErrNoMatch       = &Error{Kind: KindNoMatch}
)

func newError(kind Kind, op, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first harness Error in err's chain, or "".
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return ""
}

// classify turns a raw driver error into a harness error. Errors that are
// already classified pass through unchanged.
func classify(op, msg string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindLocateTimeout, op, msg, err)
	}
	return newError(KindInteraction, op, msg, err)
}

// StatusFor maps an error to a report status: failed expectations are
// "failed", everything else "broken".
func StatusFor(err error) report.Status {
	switch KindOf(err) {
	case "":
		if err == nil {
			return report.StatusPassed
		}
		return report.StatusBroken
	case KindAssertion, KindNoMatch:
		return report.StatusFailed
	default:
		return report.StatusBroken
	}
}
