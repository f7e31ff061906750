package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/govqa/portalharness/internal/locator"
)

// ErrNoElement is returned by relative lookups that match nothing.
var ErrNoElement = errors.New("no element matched")

// CDP drives a single Chromium tab through chromedp.
type CDP struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger

	mu    sync.Mutex
	frame *cdp.Node

	closeOnce sync.Once
	closeErr  error
}

// NewCDP opens a tab on the allocator. The driver owns allocCancel and calls it on Close.
func NewCDP(allocCtx context.Context, allocCancel context.CancelFunc, logger *slog.Logger) (*CDP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	d := &CDP{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      logger,
	}
	chromedp.ListenTarget(tabCtx, d.onEvent)

	if err := chromedp.Run(tabCtx, page.Enable()); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return d, nil
}

func (d *CDP) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventJavascriptDialogOpening:
		d.logger.Info("accepting javascript dialog", "type", e.Type, "message", e.Message)
		go func() {
			if err := chromedp.Run(d.tabCtx, page.HandleJavaScriptDialog(true)); err != nil {
				d.logger.Warn("failed to accept dialog", "error", err)
			}
		}()
	case *page.EventFrameNavigated:
		if e.Frame.ParentID == "" {
			d.logger.Debug("page navigated", "url", e.Frame.URL)
		}
	}
}

// run executes actions on the tab, bounded by the caller's context.
func (d *CDP) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *CDP) Navigate(ctx context.Context, url string) error {
	d.SwitchToDefault()
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *CDP) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// selector resolves loc to chromedp query options for the current frame.
func (d *CDP) selector(loc locator.Locator, all bool) (string, []chromedp.QueryOption, error) {
	d.mu.Lock()
	frame := d.frame
	d.mu.Unlock()

	if q, ok := loc.Query(); ok {
		opts := []chromedp.QueryOption{chromedp.ByQuery}
		if all {
			opts[0] = chromedp.ByQueryAll
		}
		if frame != nil {
			opts = append(opts, chromedp.FromNode(frame))
		}
		return q, opts, nil
	}
	if frame != nil {
		return "", nil, fmt.Errorf("%w: %s inside a frame", ErrUnsupportedLocator, loc)
	}
	return loc.Selector, []chromedp.QueryOption{chromedp.BySearch}, nil
}

func (d *CDP) Wait(ctx context.Context, loc locator.Locator, cond locator.Condition) (Element, error) {
	sel, opts, err := d.selector(loc, false)
	if err != nil {
		return nil, err
	}

	if cond == locator.Absent {
		if err := d.run(ctx, chromedp.WaitNotPresent(sel, opts...)); err != nil {
			return nil, fmt.Errorf("wait %s %s: %w", cond, loc, err)
		}
		return nil, nil
	}

	var wait chromedp.QueryOption = chromedp.NodeReady
	if cond == locator.Visible || cond == locator.Clickable {
		wait = chromedp.NodeVisible
	}
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel, &nodes, append(opts, wait)...)); err != nil {
		return nil, fmt.Errorf("wait %s %s: %w", cond, loc, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("wait %s %s: %w", cond, loc, ErrNoElement)
	}
	node := nodes[0]

	if cond == locator.Clickable {
		var enabled []*cdp.Node
		if err := d.run(ctx, chromedp.Nodes([]cdp.NodeID{node.NodeID}, &enabled, chromedp.ByNodeID, chromedp.NodeEnabled)); err != nil {
			return nil, fmt.Errorf("wait %s %s: %w", cond, loc, err)
		}
	}
	return &cdpElement{d: d, node: node}, nil
}

func (d *CDP) FindAll(ctx context.Context, loc locator.Locator) ([]Element, error) {
	sel, opts, err := d.selector(loc, true)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel, &nodes, append(opts, chromedp.AtLeast(0))...)); err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &cdpElement{d: d, node: n})
	}
	return out, nil
}

// SwitchToFrame scopes later lookups to the content document of the frame at loc.
// Only CSS-compatible locators can be used while a frame is selected.
func (d *CDP) SwitchToFrame(ctx context.Context, loc locator.Locator) error {
	d.SwitchToDefault()
	el, err := d.Wait(ctx, loc, locator.Present)
	if err != nil {
		return fmt.Errorf("switch to frame: %w", err)
	}
	node := el.(*cdpElement).node
	if node.ContentDocument != nil {
		node = node.ContentDocument
	}
	d.mu.Lock()
	d.frame = node
	d.mu.Unlock()
	return nil
}

func (d *CDP) SwitchToDefault() {
	d.mu.Lock()
	d.frame = nil
	d.mu.Unlock()
}

func (d *CDP) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the tab and the browser. Calls after the first return the first result.
func (d *CDP) Close() error {
	d.closeOnce.Do(func() {
		if err := chromedp.Cancel(d.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.closeErr = fmt.Errorf("close tab: %w", err)
		}
		d.tabCancel()
		d.allocCancel()
	})
	return d.closeErr
}

type cdpElement struct {
	d    *CDP
	node *cdp.Node
}

func (e *cdpElement) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

// call runs a JS function with the element bound to this.
func (e *cdpElement) call(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	return e.d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}, args...).Do(ctx)
	}))
}

func (e *cdpElement) Click(ctx context.Context) error {
	return e.d.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *cdpElement) SendKeys(ctx context.Context, text string) error {
	return e.d.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

const clearJS = `function() {
	if (this.isContentEditable) {
		this.innerHTML = '';
	} else {
		this.value = '';
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	return true;
}`

func (e *cdpElement) Clear(ctx context.Context) error {
	var ok bool
	return e.call(ctx, clearJS, &ok)
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.d.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

const attributeJS = `function(name) {
	const v = this[name];
	if (v !== undefined && v !== null && typeof v !== 'object' && typeof v !== 'function') {
		return String(v);
	}
	const a = this.getAttribute(name);
	return a === null ? '' : a;
}`

func (e *cdpElement) Attribute(ctx context.Context, name string) (string, error) {
	var v string
	if err := e.call(ctx, attributeJS, &v, name); err != nil {
		return "", err
	}
	return v, nil
}

const displayedJS = `function() {
	const s = window.getComputedStyle(this);
	const r = this.getBoundingClientRect();
	return s.display !== 'none' && s.visibility !== 'hidden' && (r.width > 0 || r.height > 0);
}`

func (e *cdpElement) Displayed(ctx context.Context) (bool, error) {
	var shown bool
	if err := e.call(ctx, displayedJS, &shown); err != nil {
		return false, err
	}
	return shown, nil
}

func (e *cdpElement) ScrollIntoView(ctx context.Context) error {
	return e.d.run(ctx, chromedp.ScrollIntoView(e.ids(), chromedp.ByNodeID))
}

const selectIndexJS = `function(i) {
	if (!this.options || i < 0 || i >= this.options.length) {
		throw new Error('option index ' + i + ' out of range');
	}
	this.selectedIndex = i;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return this.options[i].text.trim();
}`

func (e *cdpElement) SelectByIndex(ctx context.Context, index int) (string, error) {
	var text string
	if err := e.call(ctx, selectIndexJS, &text, index); err != nil {
		return "", err
	}
	return text, nil
}

const optionsJS = `function() {
	return Array.from(this.options || [], o => o.text.trim());
}`

func (e *cdpElement) Options(ctx context.Context) ([]string, error) {
	var opts []string
	if err := e.call(ctx, optionsJS, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (e *cdpElement) SetFiles(ctx context.Context, paths ...string) error {
	return e.d.run(ctx, chromedp.SetUploadFiles(e.ids(), paths, chromedp.ByNodeID))
}

func (e *cdpElement) Find(ctx context.Context, loc locator.Locator) (Element, error) {
	q, ok := loc.Query()
	if !ok {
		return nil, fmt.Errorf("%w: %s relative to an element", ErrUnsupportedLocator, loc)
	}
	var nodes []*cdp.Node
	err := e.d.run(ctx, chromedp.Nodes(q, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("find %s: %w", loc, ErrNoElement)
	}
	return &cdpElement{d: e.d, node: nodes[0]}, nil
}

var (
	_ Driver  = (*CDP)(nil)
	_ Element = (*cdpElement)(nil)
)
