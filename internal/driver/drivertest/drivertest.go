// Package drivertest provides an in-memory driver.Driver for tests.
//
// Elements are registered by locator. Waits for elements that are not
// registered (or that do not satisfy the condition) block until the
// context is done, the same way a real browser wait times out.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/locator"
)

// PNG is the payload returned by Screenshot.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

const pollInterval = 5 * time.Millisecond

// Driver is a scriptable fake page.
type Driver struct {
	mu        sync.Mutex
	title     string
	elements  map[string][]*Element
	frame     string
	navigated []string
	shots     int
	closes    int

	// ScreenshotErr, when set, fails every Screenshot call.
	ScreenshotErr error
	// ScreenshotPanic, when true, panics inside Screenshot.
	ScreenshotPanic bool
	// CloseErr is returned by Close.
	CloseErr error
	// OnNavigate is called after each Navigate.
	OnNavigate func(d *Driver, url string)
}

// New returns an empty page with the given title.
func New(title string) *Driver {
	return &Driver{title: title, elements: make(map[string][]*Element)}
}

func key(frame string, loc locator.Locator) string {
	if frame == "" {
		return loc.String()
	}
	return frame + " >> " + loc.String()
}

// Add registers elements under loc in the top document.
func (d *Driver) Add(loc locator.Locator, els ...*Element) {
	d.AddInFrame(locator.Locator{}, loc, els...)
}

// AddInFrame registers elements under loc inside the frame located by frame.
func (d *Driver) AddInFrame(frame, loc locator.Locator, els ...*Element) {
	f := ""
	if !frame.IsZero() {
		f = frame.String()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[key(f, loc)] = append(d.elements[key(f, loc)], els...)
}

// Remove drops every element registered under loc in the top document.
func (d *Driver) Remove(loc locator.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, key("", loc))
}

// SetTitle changes the page title.
func (d *Driver) SetTitle(title string) {
	d.mu.Lock()
	d.title = title
	d.mu.Unlock()
}

// Navigated returns every URL passed to Navigate.
func (d *Driver) Navigated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigated...)
}

// Screenshots reports how many screenshots were taken.
func (d *Driver) Screenshots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shots
}

// Closes reports how many times Close was called.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.navigated = append(d.navigated, url)
	d.frame = ""
	hook := d.OnNavigate
	d.mu.Unlock()
	if hook != nil {
		hook(d, url)
	}
	return nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) current(loc locator.Locator) []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Element(nil), d.elements[key(d.frame, loc)]...)
}

func satisfies(e *Element, cond locator.Condition) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch cond {
	case locator.Visible:
		return !e.Hidden
	case locator.Clickable:
		return !e.Hidden && !e.Disabled
	default:
		return true
	}
}

func (d *Driver) Wait(ctx context.Context, loc locator.Locator, cond locator.Condition) (driver.Element, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		els := d.current(loc)
		if cond == locator.Absent {
			if len(els) == 0 {
				return nil, nil
			}
		} else {
			for _, e := range els {
				if satisfies(e, cond) {
					return e, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait %s %s: %w", cond, loc, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (d *Driver) FindAll(ctx context.Context, loc locator.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	els := d.current(loc)
	out := make([]driver.Element, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out, nil
}

func (d *Driver) SwitchToFrame(ctx context.Context, loc locator.Locator) error {
	d.SwitchToDefault()
	if _, err := d.Wait(ctx, loc, locator.Present); err != nil {
		return fmt.Errorf("switch to frame: %w", err)
	}
	d.mu.Lock()
	d.frame = loc.String()
	d.mu.Unlock()
	return nil
}

func (d *Driver) SwitchToDefault() {
	d.mu.Lock()
	d.frame = ""
	d.mu.Unlock()
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ScreenshotPanic {
		panic("drivertest: screenshot panic")
	}
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	d.mu.Lock()
	d.shots++
	d.mu.Unlock()
	return append([]byte(nil), PNG...), nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	return d.CloseErr
}

// ErrNotInteractable wraps the context error of an action that gave up
// waiting for a hidden or disabled element.
var ErrNotInteractable = errors.New("element not interactable")

// Element is a fake DOM node. Exported fields may be set before the element
// is registered; use the accessor methods afterwards.
type Element struct {
	mu sync.Mutex

	Content  string
	Attrs    map[string]string
	Hidden   bool
	Disabled bool
	Choices  []string
	Children map[string]*Element
	// ClickErr, when set, is returned by Click.
	ClickErr error
	// OnClick runs after a successful click.
	OnClick func()

	clicks   int
	typed    string
	selected int
	files    []string
}

// NewElement returns a visible element with the given text.
func NewElement(text string) *Element {
	return &Element{Content: text, selected: -1}
}

// Row returns a table row element whose cells are addressable with locator.Cell.
func Row(cells ...string) *Element {
	row := &Element{Children: make(map[string]*Element), selected: -1}
	for i, c := range cells {
		row.Children[locator.Cell(i+1).String()] = NewElement(c)
	}
	return row
}

// Clicks reports how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Typed returns the text typed into the element since the last Clear.
func (e *Element) Typed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typed
}

// Selected returns the selected option index, or -1.
func (e *Element) Selected() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Files returns the paths set on a file input.
func (e *Element) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.files...)
}

// awaitInteractable returns with e locked once e is visible and enabled.
// Like chromedp's Click and SendKeys it keeps retrying until ctx is done.
func (e *Element) awaitInteractable(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		e.mu.Lock()
		if !e.Hidden && !e.Disabled {
			return nil
		}
		e.mu.Unlock()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotInteractable, ctx.Err())
		case <-ticker.C:
		}
	}
}

// SetHidden changes visibility after the element is registered.
func (e *Element) SetHidden(hidden bool) {
	e.mu.Lock()
	e.Hidden = hidden
	e.mu.Unlock()
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	err := e.ClickErr
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if err := e.awaitInteractable(ctx); err != nil {
		return err
	}
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.awaitInteractable(ctx); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.typed += text
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = ""
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Content, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "value" && e.typed != "" {
		return e.typed, nil
	}
	return e.Attrs[name], nil
}

func (e *Element) Displayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Hidden, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return ctx.Err()
}

func (e *Element) SelectByIndex(ctx context.Context, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.Choices) {
		return "", fmt.Errorf("option index %d out of range", index)
	}
	e.selected = index
	return e.Choices[index], nil
}

func (e *Element) Options(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.Choices...), nil
}

func (e *Element) SetFiles(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files = append([]string(nil), paths...)
	return nil
}

func (e *Element) Find(ctx context.Context, loc locator.Locator) (driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := loc.Query(); !ok {
		return nil, fmt.Errorf("%w: %s relative to an element", driver.ErrUnsupportedLocator, loc)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.Children[loc.String()]
	if !ok {
		return nil, fmt.Errorf("find %s: %w", loc, driver.ErrNoElement)
	}
	return child, nil
}

var (
	_ driver.Driver  = (*Driver)(nil)
	_ driver.Element = (*Element)(nil)
)
