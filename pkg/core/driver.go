package core

import (
	"context"
	"strings"
	"time"
)

// LocatorKind selects how a locator string addresses an element.
type LocatorKind int

// LocatorKind values. XPath is the default addressing scheme.
const (
	LocatorXPath LocatorKind = iota
	LocatorCSS
	LocatorID
)

// String returns the prefix used for the kind in locator maps.
func (k LocatorKind) String() string {
	switch k {
	case LocatorCSS:
		return "css"
	case LocatorID:
		return "id"
	default:
		return "xpath"
	}
}

// Locator is a (value, kind) pair that a Driver can resolve to an element.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// String returns the locator in its "kind=value" form.
func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Value
}

// IsEmpty reports whether the locator has no value.
func (l Locator) IsEmpty() bool {
	return strings.TrimSpace(l.Value) == ""
}

// ParseLocator parses a locator map value. "css=", "xpath=" and "id="
// prefixes select the kind; anything else is an XPath expression.
func ParseLocator(raw string) Locator {
	raw = strings.TrimSpace(raw)
	for _, kind := range []LocatorKind{LocatorCSS, LocatorXPath, LocatorID} {
		prefix := kind.String() + "="
		if len(raw) > len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
			return Locator{Kind: kind, Value: strings.TrimSpace(raw[len(prefix):])}
		}
	}
	return Locator{Kind: LocatorXPath, Value: raw}
}

// Element is an opaque handle returned by a Driver lookup. It is only
// valid for the session that produced it.
type Element interface {
	Locator() Locator
}

// SessionInfo describes the browser behind an open session.
type SessionInfo struct {
	Browser string `json:"browser"`
	Version string `json:"version,omitempty"`
}

// Driver is the browser action surface the interpreter drives.
// Implementations: chromedp (pkg/driver/browser), mock (pkg/driver/mock).
// Calls block until the browser answers or the driver's own wait timeout
// elapses; the engine adds no timeout of its own.
type Driver interface {
	// OpenSession starts a browser session for the named browser.
	OpenSession(ctx context.Context, browser string) (SessionInfo, error)
	// CloseSession ends the current session. Closing without a session is a no-op.
	CloseSession(ctx context.Context) error

	// Navigate loads url in the current page.
	Navigate(ctx context.Context, url string) error

	// Find resolves a locator to a single element or returns ErrElementNotFound.
	Find(ctx context.Context, loc Locator) (Element, error)
	// FindAll resolves every element matching the locator, in document order.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	// WaitUntilInteractable waits up to timeout for the element to be visible and enabled.
	WaitUntilInteractable(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)

	Click(ctx context.Context, el Element) error
	TypeText(ctx context.Context, el Element, text string) error
	ReadText(ctx context.Context, el Element) (string, error)
	SetFile(ctx context.Context, el Element, path string) error
	IsEnabled(ctx context.Context, el Element) (bool, error)
	IsDisplayed(ctx context.Context, el Element) (bool, error)
	IsSelected(ctx context.Context, el Element) (bool, error)
	Highlight(ctx context.Context, el Element) error

	SwitchToFrame(ctx context.Context, el Element) error
	SwitchToDefaultFrame(ctx context.Context) error

	// CaptureScreenshot stores a screenshot under name and returns a handle
	// (a path) that the report can reference.
	CaptureScreenshot(ctx context.Context, name string) (string, error)
}
