// Package harness runs UI scenarios against a browser session: it owns the
// session lifecycle, bounded element lookups, step execution with evidence
// capture, and the typed failure kinds reported for each step.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/locator"
)

// DefaultLocateTimeout bounds every element wait unless configured otherwise.
const DefaultLocateTimeout = 10 * time.Second

const titlePollInterval = 100 * time.Millisecond

// presenceCheckTimeout bounds the lookup that tells a missing element from one
// that never became visible or clickable.
const presenceCheckTimeout = 2 * time.Second

// pageLoadTimeout bounds Open, which waits for the load event.
const pageLoadTimeout = 60 * time.Second

// Launcher starts a browser and returns the driver for its tab.
type Launcher func(ctx context.Context) (driver.Driver, error)

// Config configures a Manager.
type Config struct {
	// Scenario names the module that owns the session; it scopes log lines.
	Scenario      string
	EvidenceDir   string
	LocateTimeout time.Duration
	Logger        *slog.Logger
}

// Manager hands out at most one active Session at a time.
type Manager struct {
	launch Launcher
	cfg    Config

	mu     sync.Mutex
	active *Session
}

// NewManager creates a Manager that launches browsers with launch.
func NewManager(launch Launcher, cfg Config) *Manager {
	if cfg.LocateTimeout <= 0 {
		cfg.LocateTimeout = DefaultLocateTimeout
	}
	if cfg.EvidenceDir == "" {
		cfg.EvidenceDir = "screenshots"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{launch: launch, cfg: cfg}
}

// Acquire launches the browser and prepares the evidence directory. It fails
// with a SESSION_START error, without retrying, when either step fails or a
// session is already active.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, newError(KindSessionStart, "acquire", "a session is already active for "+m.cfg.Scenario, nil)
	}

	store, err := artifact.NewStore(m.cfg.EvidenceDir)
	if err != nil {
		return nil, newError(KindSessionStart, "acquire", "prepare evidence directory", err)
	}
	d, err := m.launch(ctx)
	if err != nil {
		return nil, newError(KindSessionStart, "acquire", "launch browser", err)
	}

	id := uuid.NewString()
	s := &Session{
		ID:      id,
		driver:  d,
		store:   store,
		timeout: m.cfg.LocateTimeout,
		logger:  m.cfg.Logger.With("scenario", m.cfg.Scenario, "session_id", id),
		manager: m,
	}
	m.active = s
	s.logger.Info("session acquired", "evidence_dir", store.Dir(), "locate_timeout", s.timeout)
	return s, nil
}

// Release closes the session's browser. It is safe to call more than once;
// later calls return the result of the first.
func (m *Manager) Release(s *Session) error {
	if s == nil {
		return nil
	}
	s.releaseOnce.Do(func() {
		if err := s.driver.Close(); err != nil {
			s.releaseErr = fmt.Errorf("close browser: %w", err)
			s.logger.Error("failed to close the browser", "error", err)
		} else {
			s.logger.Info("closed the browser after test")
		}
		m.mu.Lock()
		if m.active == s {
			m.active = nil
		}
		m.mu.Unlock()
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
	})
	return s.releaseErr
}

// Session is one live browser connection shared by the cases of a scenario.
// It is not safe for concurrent use.
type Session struct {
	ID string

	driver  driver.Driver
	store   *artifact.Store
	timeout time.Duration
	logger  *slog.Logger
	manager *Manager

	mu          sync.Mutex
	released    bool
	releaseOnce sync.Once
	releaseErr  error
}

func (s *Session) Driver() driver.Driver     { return s.driver }
func (s *Session) Evidence() *artifact.Store { return s.store }
func (s *Session) Logger() *slog.Logger      { return s.logger }
func (s *Session) Timeout() time.Duration    { return s.timeout }

// Release is shorthand for releasing s through the Manager that acquired it.
func (s *Session) Release() error { return s.manager.Release(s) }

// Released reports whether Release has run for this session.
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Locate waits up to the session timeout for loc to satisfy cond. A wait that
// runs out of time fails with LOCATE_TIMEOUT and names the locator.
func (s *Session) Locate(ctx context.Context, loc locator.Locator, cond locator.Condition) (driver.Element, error) {
	if loc.IsZero() {
		return nil, newError(KindInteraction, "locate", "empty locator", nil)
	}
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	el, err := s.driver.Wait(wctx, loc, cond)
	if err != nil {
		msg := fmt.Sprintf("%s not %s after %s", loc, cond, time.Since(start).Round(time.Millisecond))
		if errors.Is(err, context.DeadlineExceeded) && s.foundButNot(ctx, loc, cond) {
			return nil, newError(KindInteraction, "locate", "found but "+msg, err)
		}
		return nil, classify("locate", msg, err)
	}
	s.logger.Debug("located element", "locator", loc.String(), "condition", cond.String())
	return el, nil
}

// act runs fn against an element that was already located, bounded by the
// session timeout. Any failure is INTERACTION, running out of time included:
// the element exists but never accepted the action.
func (s *Session) act(ctx context.Context, op string, loc locator.Locator, fn func(ctx context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := fn(actx)
	if err == nil || KindOf(err) != "" {
		return err
	}
	msg := fmt.Sprintf("%s %s", op, loc)
	if errors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s: element found but not interactable after %s", msg, s.timeout)
	}
	return newError(KindInteraction, op, msg, err)
}

// foundButNot reports whether a Visible or Clickable wait timed out on an
// element that does exist.
func (s *Session) foundButNot(ctx context.Context, loc locator.Locator, cond locator.Condition) bool {
	if cond != locator.Visible && cond != locator.Clickable {
		return false
	}
	fctx, cancel := context.WithTimeout(ctx, presenceCheckTimeout)
	defer cancel()
	els, err := s.driver.FindAll(fctx, loc)
	return err == nil && len(els) > 0
}

func interaction(op string, loc locator.Locator, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return newError(KindInteraction, op, fmt.Sprintf("%s %s", op, loc), err)
}

// Open navigates to url.
func (s *Session) Open(ctx context.Context, url string) error {
	nctx, cancel := context.WithTimeout(ctx, pageLoadTimeout)
	defer cancel()
	if err := s.driver.Navigate(nctx, url); err != nil {
		return newError(KindInteraction, "open", "open "+url, err)
	}
	s.logger.Info("opened page", "url", url)
	return nil
}

// Click waits for loc to be clickable and clicks it.
func (s *Session) Click(ctx context.Context, loc locator.Locator) error {
	el, err := s.Locate(ctx, loc, locator.Clickable)
	if err != nil {
		return err
	}
	return s.act(ctx, "click", loc, el.Click)
}

// Type waits for loc to be visible and sends text to it.
func (s *Session) Type(ctx context.Context, loc locator.Locator, text string) error {
	el, err := s.Locate(ctx, loc, locator.Visible)
	if err != nil {
		return err
	}
	return s.act(ctx, "type into", loc, func(ctx context.Context) error { return el.SendKeys(ctx, text) })
}

// Fill scrolls loc into view, clears it and types text.
func (s *Session) Fill(ctx context.Context, loc locator.Locator, text string) error {
	el, err := s.Locate(ctx, loc, locator.Present)
	if err != nil {
		return err
	}
	if err := s.act(ctx, "scroll to", loc, el.ScrollIntoView); err != nil {
		return err
	}
	if err := s.act(ctx, "clear", loc, el.Clear); err != nil {
		return err
	}
	return s.act(ctx, "type into", loc, func(ctx context.Context) error { return el.SendKeys(ctx, text) })
}

// TextOf returns the trimmed visible text of loc.
func (s *Session) TextOf(ctx context.Context, loc locator.Locator) (string, error) {
	el, err := s.Locate(ctx, loc, locator.Visible)
	if err != nil {
		return "", err
	}
	var text string
	err = s.act(ctx, "read text of", loc, func(ctx context.Context) (err error) {
		text, err = el.Text(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// AttributeOf returns a property or attribute of the element at loc.
func (s *Session) AttributeOf(ctx context.Context, loc locator.Locator, name string) (string, error) {
	el, err := s.Locate(ctx, loc, locator.Present)
	if err != nil {
		return "", err
	}
	var v string
	err = s.act(ctx, "read "+name+" of", loc, func(ctx context.Context) (err error) {
		v, err = el.Attribute(ctx, name)
		return err
	})
	if err != nil {
		return "", err
	}
	return v, nil
}

// WaitGone waits until nothing matches loc.
func (s *Session) WaitGone(ctx context.Context, loc locator.Locator) error {
	_, err := s.Locate(ctx, loc, locator.Absent)
	return err
}

// SelectIndex selects option index of the select at loc and returns its text.
func (s *Session) SelectIndex(ctx context.Context, loc locator.Locator, index int) (string, error) {
	el, err := s.Locate(ctx, loc, locator.Visible)
	if err != nil {
		return "", err
	}
	var text string
	err = s.act(ctx, fmt.Sprintf("select option %d of", index), loc, func(ctx context.Context) (err error) {
		text, err = el.SelectByIndex(ctx, index)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// OptionsOf returns the option labels of the select at loc.
func (s *Session) OptionsOf(ctx context.Context, loc locator.Locator) ([]string, error) {
	el, err := s.Locate(ctx, loc, locator.Visible)
	if err != nil {
		return nil, err
	}
	var opts []string
	err = s.act(ctx, "list options of", loc, func(ctx context.Context) (err error) {
		opts, err = el.Options(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return opts, nil
}

// Upload sets paths on the file input at loc.
func (s *Session) Upload(ctx context.Context, loc locator.Locator, paths ...string) error {
	el, err := s.Locate(ctx, loc, locator.Present)
	if err != nil {
		return err
	}
	return s.act(ctx, "upload to", loc, func(ctx context.Context) error { return el.SetFiles(ctx, paths...) })
}

// InFrame runs fn with lookups scoped to the frame at frame, then returns to
// the top document.
func (s *Session) InFrame(ctx context.Context, frame locator.Locator, fn func() error) error {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.driver.SwitchToFrame(wctx, frame)
	cancel()
	if err != nil {
		return classify("switch to frame", fmt.Sprintf("frame %s", frame), err)
	}
	defer s.driver.SwitchToDefault()
	return fn()
}

// AssertTitle waits up to the session timeout for the page title to equal want.
func (s *Session) AssertTitle(ctx context.Context, want string) error {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ticker := time.NewTicker(titlePollInterval)
	defer ticker.Stop()

	var got string
	for {
		title, err := s.driver.Title(wctx)
		if err == nil {
			got = title
			if got == want {
				return nil
			}
		}
		select {
		case <-wctx.Done():
			return newError(KindAssertion, "assert title", fmt.Sprintf("title = %q; want %q", got, want), nil)
		case <-ticker.C:
		}
	}
}

// AssertText checks that the visible text of loc equals want.
func (s *Session) AssertText(ctx context.Context, loc locator.Locator, want string) error {
	got, err := s.TextOf(ctx, loc)
	if err != nil {
		return err
	}
	return AssertEqual("text of "+loc.String(), got, want)
}

// AssertDisplayed checks that the element at loc is visible and displayed.
func (s *Session) AssertDisplayed(ctx context.Context, loc locator.Locator) error {
	el, err := s.Locate(ctx, loc, locator.Visible)
	if err != nil {
		return err
	}
	var shown bool
	err = s.act(ctx, "check display of", loc, func(ctx context.Context) (err error) {
		shown, err = el.Displayed(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return AssertTrue(loc.String()+" is displayed", shown)
}
