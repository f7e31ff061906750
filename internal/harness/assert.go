package harness

import (
	"fmt"
	"strings"
)

// AssertEqual fails with ASSERTION_FAILURE when got != want.
func AssertEqual[T comparable](what string, got, want T) error {
	if got == want {
		return nil
	}
	return newError(KindAssertion, "assert", fmt.Sprintf("%s = %v; want %v", what, got, want), nil)
}

// AssertContains fails when s does not contain every one of subs.
func AssertContains(what, s string, subs ...string) error {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return newError(KindAssertion, "assert", fmt.Sprintf("%s = %q; want it to contain %q", what, s, sub), nil)
		}
	}
	return nil
}

// AssertTrue fails when ok is false.
func AssertTrue(what string, ok bool) error {
	if ok {
		return nil
	}
	return newError(KindAssertion, "assert", what+": got false", nil)
}
