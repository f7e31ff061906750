// Package driver is the browser automation boundary consumed by the harness.
package driver

import (
	"context"
	"errors"

	"github.com/govqa/portalharness/internal/locator"
)

// ErrUnsupportedLocator is returned when a strategy cannot be used for a query.
var ErrUnsupportedLocator = errors.New("unsupported locator")

// Driver controls one browser tab.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Wait blocks until an element matching loc satisfies cond or ctx is done.
	// For locator.Absent the returned Element is nil.
	Wait(ctx context.Context, loc locator.Locator, cond locator.Condition) (Element, error)
	// FindAll returns the current matches without waiting.
	FindAll(ctx context.Context, loc locator.Locator) ([]Element, error)
	SwitchToFrame(ctx context.Context, loc locator.Locator) error
	SwitchToDefault()
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Element is a handle to one DOM node.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	// Attribute reads the DOM property first and falls back to the attribute.
	Attribute(ctx context.Context, name string) (string, error)
	Displayed(ctx context.Context) (bool, error)
	ScrollIntoView(ctx context.Context) error
	SelectByIndex(ctx context.Context, index int) (string, error)
	Options(ctx context.Context) ([]string, error)
	SetFiles(ctx context.Context, paths ...string) error
	// Find returns the first descendant matching a CSS-compatible locator.
	Find(ctx context.Context, loc locator.Locator) (Element, error)
}
