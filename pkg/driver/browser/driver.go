// Package browser implements core.Driver on Chromium-family browsers via
// the Chrome DevTools Protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/logger"
)

// DefaultFindTimeout is the default timeout for element operations.
const DefaultFindTimeout = 10 * time.Second

const pollInterval = 100 * time.Millisecond

// Config configures browser sessions.
type Config struct {
	Headless      bool
	RemoteURL     string        // DevTools endpoint of a remote browser; empty launches locally
	ScreenshotDir string        // Where CaptureScreenshot writes files
	FindTimeout   time.Duration // Wait for an element to appear
	EdgePath      string        // Executable used for "edge"
	Args          []string      // Extra browser flags, "name" or "name=value"
}

// Driver implements core.Driver using chromedp.
type Driver struct {
	cfg Config

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	frame       *cdp.Node // current iframe, nil for the top document
}

var _ core.Driver = (*Driver)(nil)

// NewDriver creates a driver. No browser is started until OpenSession.
func NewDriver(cfg Config) *Driver {
	if cfg.FindTimeout <= 0 {
		cfg.FindTimeout = DefaultFindTimeout
	}
	return &Driver{cfg: cfg}
}

// element is a DOM node found in the current session.
type element struct {
	loc  core.Locator
	node *cdp.Node
}

func (e *element) Locator() core.Locator { return e.loc }

// ============================================
// Session
// ============================================

// browserKind maps a browser name to the executable family chromedp can drive.
func browserKind(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chrome", "googlechrome", "chromium", "headlesschrome":
		return "chrome", nil
	case "edge", "msedge", "microsoftedge":
		return "edge", nil
	default:
		return "", core.ErrUnsupportedBrowser.WithMessage(
			fmt.Sprintf("browser %q is not supported (chrome, chromium, edge)", name))
	}
}

// allocatorOptions builds the launch flags for a local browser.
func (d *Driver) allocatorOptions(kind string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("disable-gpu", d.cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if kind == "edge" {
		path := d.cfg.EdgePath
		if path == "" {
			path = "microsoft-edge"
		}
		opts = append(opts, chromedp.ExecPath(path))
	}
	for _, arg := range d.cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// OpenSession launches (or connects to) a browser and opens a tab.
// An existing session is closed first.
func (d *Driver) OpenSession(ctx context.Context, name string) (core.SessionInfo, error) {
	kind, err := browserKind(name)
	if err != nil {
		return core.SessionInfo{}, err
	}
	if err := d.CloseSession(ctx); err != nil {
		logger.Warn("close previous session: %v", err)
	}

	// The allocator outlives the caller's ctx; CloseSession ends it.
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if d.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), d.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), d.allocatorOptions(kind)...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run on tabCtx starts the browser and creates the target.
	var product string
	stop := context.AfterFunc(ctx, tabCancel)
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, p, _, _, _, err := cdpbrowser.GetVersion().Do(ctx)
		product = p
		return err
	}))
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		return core.SessionInfo{}, core.ErrNoSession.WithMessage("failed to start " + name).WithCause(err)
	}

	d.mu.Lock()
	d.allocCancel, d.tabCtx, d.tabCancel, d.frame = allocCancel, tabCtx, tabCancel, nil
	d.mu.Unlock()

	info := core.SessionInfo{Browser: kind}
	if _, version, ok := strings.Cut(product, "/"); ok {
		info.Version = version
	}
	logger.Info("browser session opened: %s %s", info.Browser, info.Version)
	return info, nil
}

// CloseSession closes the tab and the browser.
func (d *Driver) CloseSession(_ context.Context) error {
	d.mu.Lock()
	tabCancel, allocCancel := d.tabCancel, d.allocCancel
	d.tabCtx, d.tabCancel, d.allocCancel, d.frame = nil, nil, nil, nil
	d.mu.Unlock()

	if tabCancel == nil {
		return nil
	}
	tabCancel()
	allocCancel()
	logger.Debug("browser session closed")
	return nil
}

// run executes actions on the current tab. Cancelling ctx aborts the
// actions but leaves the tab open.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	tab := d.tabCtx
	d.mu.Unlock()
	if tab == nil {
		return core.ErrNoSession
	}

	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and returns to the top document.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	d.mu.Lock()
	d.frame = nil
	d.mu.Unlock()
	return nil
}

// ============================================
// Lookup
// ============================================

// queryOptions maps a locator to chromedp query options, scoped to the
// current frame.
func (d *Driver) queryOptions(loc core.Locator, all bool) []chromedp.QueryOption {
	var opts []chromedp.QueryOption
	switch loc.Kind {
	case core.LocatorXPath:
		opts = append(opts, chromedp.BySearch)
	case core.LocatorID:
		opts = append(opts, chromedp.ByID)
	default:
		if all {
			opts = append(opts, chromedp.ByQueryAll)
		} else {
			opts = append(opts, chromedp.ByQuery)
		}
	}
	d.mu.Lock()
	frame := d.frame
	d.mu.Unlock()
	if frame != nil {
		opts = append(opts, chromedp.FromNode(frame))
	}
	return opts
}

// nodes returns the nodes matching loc without waiting.
func (d *Driver) nodes(ctx context.Context, loc core.Locator, all bool) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	opts := append(d.queryOptions(loc, all), chromedp.AtLeast(0))
	if err := d.run(ctx, chromedp.Nodes(loc.Value, &nodes, opts...)); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Find polls for loc until it appears or the find timeout elapses.
func (d *Driver) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	var found *cdp.Node
	err := d.poll(ctx, d.cfg.FindTimeout, func() (bool, error) {
		nodes, err := d.nodes(ctx, loc, false)
		if err != nil {
			return false, err
		}
		if len(nodes) > 0 {
			found = nodes[0]
			return true, nil
		}
		return false, nil
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("element not found: %s", loc))
	}
	if err != nil {
		return nil, err
	}
	return &element{loc: loc, node: found}, nil
}

// FindAll returns the nodes currently matching loc.
func (d *Driver) FindAll(ctx context.Context, loc core.Locator) ([]core.Element, error) {
	nodes, err := d.nodes(ctx, loc, true)
	if err != nil {
		return nil, err
	}
	out := make([]core.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{loc: loc, node: n})
	}
	return out, nil
}

const interactableJS = `function() {
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none' && !this.disabled;
}`

// WaitUntilInteractable polls until loc is visible and enabled.
func (d *Driver) WaitUntilInteractable(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	var found *cdp.Node
	err := d.poll(ctx, timeout, func() (bool, error) {
		nodes, err := d.nodes(ctx, loc, false)
		if err != nil || len(nodes) == 0 {
			return false, err
		}
		ok, err := d.evalBool(ctx, nodes[0], interactableJS)
		if err != nil || !ok {
			// Detached nodes are retried.
			return false, nil
		}
		found = nodes[0]
		return true, nil
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		return nil, core.ErrWaitTimeout.WithMessage(
			fmt.Sprintf("%s not interactable after %s", loc, timeout))
	}
	if err != nil {
		return nil, err
	}
	return &element{loc: loc, node: found}, nil
}

// poll calls check until it reports done, fails, or timeout elapses.
func (d *Driver) poll(ctx context.Context, timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return core.ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ============================================
// Actions
// ============================================

func nodeOf(el core.Element) (*cdp.Node, error) {
	e, ok := el.(*element)
	if !ok || e.node == nil {
		return nil, fmt.Errorf("element %v does not belong to this driver", el)
	}
	return e.node, nil
}

// callOnNode calls the JavaScript function fn with this bound to node and
// unmarshals the result into res (nil discards it).
func callOnNode(node *cdp.Node, fn string, res any) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node %d: %w", node.NodeID, err)
		}
		err = chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}).Do(ctx)
		// Fails once the page has navigated away; nothing to release then.
		_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
		return err
	})
}

const (
	readTextJS = `function() { return ['INPUT', 'TEXTAREA', 'SELECT'].includes(this.tagName) ? this.value : this.innerText; }`
	enabledJS  = `function() { return !this.disabled; }`
	selectedJS = `function() { return !!(this.checked || this.selected); }`
	displayJS  = `function() {
	const r = this.getBoundingClientRect();
	const s = window.getComputedStyle(this);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}`
	highlightJS = `function() { this.style.outline = '3px solid #ef4444'; this.style.outlineOffset = '1px'; }`
)

// Click dispatches a left mouse click at the centre of the element.
func (d *Driver) Click(ctx context.Context, el core.Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.MouseClickNode(node))
}

// TypeText focuses the element and sends text as key events. Existing
// content is kept.
func (d *Driver) TypeText(ctx context.Context, el core.Element, text string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.SendKeys([]cdp.NodeID{node.NodeID}, text, chromedp.ByNodeID))
}

// ReadText returns the value of form fields and the rendered text of
// anything else.
func (d *Driver) ReadText(ctx context.Context, el core.Element) (string, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var text string
	err = d.run(ctx, callOnNode(node, readTextJS, &text))
	return text, err
}

// SetFile attaches the local file at path to a file input.
func (d *Driver) SetFile(ctx context.Context, el core.Element, path string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return d.run(ctx, chromedp.SetUploadFiles([]cdp.NodeID{node.NodeID}, []string{path}, chromedp.ByNodeID))
}

func (d *Driver) evalBool(ctx context.Context, node *cdp.Node, fn string) (bool, error) {
	var out bool
	err := d.run(ctx, callOnNode(node, fn, &out))
	return out, err
}

// IsEnabled reports whether the element lacks the disabled property.
func (d *Driver) IsEnabled(ctx context.Context, el core.Element) (bool, error) {
	node, err := nodeOf(el)
	if err != nil {
		return false, err
	}
	return d.evalBool(ctx, node, enabledJS)
}

// IsDisplayed reports whether the element has a non-empty box and is not
// hidden by CSS.
func (d *Driver) IsDisplayed(ctx context.Context, el core.Element) (bool, error) {
	node, err := nodeOf(el)
	if err != nil {
		return false, err
	}
	return d.evalBool(ctx, node, displayJS)
}

// IsSelected reports whether a checkbox, radio or option is checked.
func (d *Driver) IsSelected(ctx context.Context, el core.Element) (bool, error) {
	node, err := nodeOf(el)
	if err != nil {
		return false, err
	}
	return d.evalBool(ctx, node, selectedJS)
}

// Highlight outlines the element in red.
func (d *Driver) Highlight(ctx context.Context, el core.Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return d.run(ctx, callOnNode(node, highlightJS, nil))
}

// SwitchToFrame scopes later lookups to an iframe's document.
func (d *Driver) SwitchToFrame(_ context.Context, el core.Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	if name := strings.ToUpper(node.NodeName); name != "IFRAME" && name != "FRAME" {
		return fmt.Errorf("%s is a %s, not a frame", el.Locator(), strings.ToLower(name))
	}
	d.mu.Lock()
	d.frame = node
	d.mu.Unlock()
	return nil
}

// SwitchToDefaultFrame scopes lookups to the top document again.
func (d *Driver) SwitchToDefaultFrame(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tabCtx == nil {
		return core.ErrNoSession
	}
	d.frame = nil
	return nil
}

// CaptureScreenshot writes a full-page PNG to the screenshot directory and
// returns its path.
func (d *Driver) CaptureScreenshot(ctx context.Context, name string) (string, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return writeScreenshot(d.cfg.ScreenshotDir, name, buf)
}

func writeScreenshot(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name+".png"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
