// Package mock provides a scripted driver for testing without a real browser.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Element is a fake page element. Text is used unless TextFunc is set.
type Element struct {
	Text      string
	TextFunc  func() string
	Disabled  bool
	Hidden    bool
	Selected  bool
	OnClick   func()
	IsFrame   bool
	loc       core.Locator
	typedText string
}

// Locator returns the locator the element was registered under.
func (e *Element) Locator() core.Locator { return e.loc }

// Typed returns everything typed into the element so far.
func (e *Element) Typed() string { return e.typedText }

func (e *Element) text() string {
	if e.TextFunc != nil {
		return e.TextFunc()
	}
	return e.Text
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnCall makes the Nth element action (1-indexed) fail. 0 = never fail.
	FailOnCall int
	// Errors fails every call of the named method (e.g. "Navigate").
	Errors map[string]error
	// ActionDelay adds artificial delay per call
	ActionDelay time.Duration
	// Browser version to report
	Version string
}

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	Config Config

	mu          sync.Mutex
	elements    map[string][]*Element
	calls       []string
	actionCount int
	sessionOpen bool
	sessions    int
	url         string
	frame       *Element
	screenshots []string
}

var _ core.Driver = (*Driver)(nil)

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Version == "" {
		cfg.Version = "mock/1.0"
	}
	return &Driver{
		Config:   cfg,
		elements: make(map[string][]*Element),
	}
}

// Add registers elements under a raw locator string ("css=#id", "//xpath").
func (d *Driver) Add(raw string, els ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	loc := core.ParseLocator(raw)
	for _, el := range els {
		el.loc = loc
	}
	d.elements[loc.String()] = append(d.elements[loc.String()], els...)
}

// Calls returns the method names invoked so far, in order.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Sessions returns how many sessions were opened.
func (d *Driver) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions
}

// SessionOpen reports whether a session is currently open.
func (d *Driver) SessionOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionOpen
}

// URL returns the last navigated URL.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Screenshots returns the names passed to CaptureScreenshot.
func (d *Driver) Screenshots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.screenshots...)
}

// record logs a call and returns the injected error for it, if any.
// Must be called with d.mu held.
func (d *Driver) record(method string, action bool) error {
	d.calls = append(d.calls, method)
	if d.Config.ActionDelay > 0 {
		time.Sleep(d.Config.ActionDelay)
	}
	if err, ok := d.Config.Errors[method]; ok {
		return err
	}
	if action {
		d.actionCount++
		if d.Config.FailOnCall > 0 && d.actionCount == d.Config.FailOnCall {
			return fmt.Errorf("mock failure on call %d (%s)", d.actionCount, method)
		}
	}
	return nil
}

func (d *Driver) requireSession() error {
	if !d.sessionOpen {
		return core.ErrNoSession
	}
	return nil
}

// OpenSession opens a fake session.
func (d *Driver) OpenSession(_ context.Context, browser string) (core.SessionInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("OpenSession", false); err != nil {
		return core.SessionInfo{}, err
	}
	d.sessionOpen = true
	d.sessions++
	d.frame = nil
	return core.SessionInfo{Browser: browser, Version: d.Config.Version}, nil
}

// CloseSession closes the fake session.
func (d *Driver) CloseSession(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("CloseSession", false); err != nil {
		return err
	}
	d.sessionOpen = false
	return nil
}

// Navigate remembers the URL.
func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("Navigate", true); err != nil {
		return err
	}
	if err := d.requireSession(); err != nil {
		return err
	}
	d.url = url
	return nil
}

// Find returns the first element registered under loc.
func (d *Driver) Find(_ context.Context, loc core.Locator) (core.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("Find", false); err != nil {
		return nil, err
	}
	return d.lookup(loc)
}

func (d *Driver) lookup(loc core.Locator) (*Element, error) {
	if err := d.requireSession(); err != nil {
		return nil, err
	}
	els := d.elements[loc.String()]
	if len(els) == 0 {
		return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("element not found: %s", loc))
	}
	return els[0], nil
}

// FindAll returns every element registered under loc.
func (d *Driver) FindAll(_ context.Context, loc core.Locator) ([]core.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("FindAll", false); err != nil {
		return nil, err
	}
	if err := d.requireSession(); err != nil {
		return nil, err
	}
	var out []core.Element
	for _, el := range d.elements[loc.String()] {
		out = append(out, el)
	}
	return out, nil
}

// WaitUntilInteractable returns the element if it is visible and enabled.
func (d *Driver) WaitUntilInteractable(_ context.Context, loc core.Locator, _ time.Duration) (core.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("WaitUntilInteractable", false); err != nil {
		return nil, err
	}
	el, err := d.lookup(loc)
	if err != nil {
		return nil, err
	}
	if el.Hidden || el.Disabled {
		return nil, core.ErrWaitTimeout.WithMessage(fmt.Sprintf("element not interactable: %s", loc))
	}
	return el, nil
}

// Click runs the element's OnClick hook.
func (d *Driver) Click(_ context.Context, el core.Element) error {
	d.mu.Lock()
	if err := d.record("Click", true); err != nil {
		d.mu.Unlock()
		return err
	}
	e := el.(*Element)
	d.mu.Unlock()

	// OnClick may call back into the driver (e.g. re-registering elements).
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

// TypeText appends text to the element.
func (d *Driver) TypeText(_ context.Context, el core.Element, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("TypeText", true); err != nil {
		return err
	}
	e := el.(*Element)
	e.typedText += text
	return nil
}

// ReadText returns the element text.
func (d *Driver) ReadText(_ context.Context, el core.Element) (string, error) {
	d.mu.Lock()
	if err := d.record("ReadText", true); err != nil {
		d.mu.Unlock()
		return "", err
	}
	e := el.(*Element)
	d.mu.Unlock()

	return e.text(), nil
}

// SetFile records the path as typed text.
func (d *Driver) SetFile(_ context.Context, el core.Element, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("SetFile", true); err != nil {
		return err
	}
	el.(*Element).typedText = path
	return nil
}

// IsEnabled reports !Disabled.
func (d *Driver) IsEnabled(_ context.Context, el core.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("IsEnabled", true); err != nil {
		return false, err
	}
	return !el.(*Element).Disabled, nil
}

// IsDisplayed reports !Hidden.
func (d *Driver) IsDisplayed(_ context.Context, el core.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("IsDisplayed", true); err != nil {
		return false, err
	}
	return !el.(*Element).Hidden, nil
}

// IsSelected reports Selected.
func (d *Driver) IsSelected(_ context.Context, el core.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("IsSelected", true); err != nil {
		return false, err
	}
	return el.(*Element).Selected, nil
}

// Highlight is recorded but has no effect.
func (d *Driver) Highlight(_ context.Context, _ core.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record("Highlight", false)
}

// SwitchToFrame requires an element registered with IsFrame.
func (d *Driver) SwitchToFrame(_ context.Context, el core.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("SwitchToFrame", true); err != nil {
		return err
	}
	e := el.(*Element)
	if !e.IsFrame {
		return fmt.Errorf("element %s is not a frame", e.loc)
	}
	d.frame = e
	return nil
}

// SwitchToDefaultFrame clears the current frame.
func (d *Driver) SwitchToDefaultFrame(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("SwitchToDefaultFrame", true); err != nil {
		return err
	}
	d.frame = nil
	return nil
}

// CaptureScreenshot returns name + ".png" as the handle.
func (d *Driver) CaptureScreenshot(_ context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.record("CaptureScreenshot", false); err != nil {
		return "", err
	}
	if err := d.requireSession(); err != nil {
		return "", err
	}
	d.screenshots = append(d.screenshots, name)
	return name + ".png", nil
}
