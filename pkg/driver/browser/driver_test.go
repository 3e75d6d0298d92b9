package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

func TestBrowserKind(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"chrome", "chrome", false},
		{" Chromium ", "chrome", false},
		{"", "chrome", false},
		{"MSEdge", "edge", false},
		{"edge", "edge", false},
		{"firefox", "", true},
		{"safari", "", true},
	}
	for _, tt := range tests {
		got, err := browserKind(tt.in)
		if tt.wantErr {
			if !core.ErrUnsupportedBrowser.Is(err) {
				t.Errorf("browserKind(%q): expected ErrUnsupportedBrowser, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("browserKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestOpenSession_UnsupportedBrowserStartsNothing(t *testing.T) {
	d := NewDriver(Config{Headless: true})
	_, err := d.OpenSession(context.Background(), "firefox")
	if err == nil {
		t.Fatal("expected error")
	}
	if d.tabCtx != nil {
		t.Error("no session should be open")
	}
}

func TestDriver_RequiresSession(t *testing.T) {
	d := NewDriver(Config{FindTimeout: 50 * time.Millisecond})
	ctx := context.Background()
	loc := core.ParseLocator("css=#user")

	if err := d.Navigate(ctx, "https://example.com"); !errors.Is(err, core.ErrNoSession) {
		t.Errorf("Navigate: expected ErrNoSession, got %v", err)
	}
	if _, err := d.Find(ctx, loc); err == nil {
		t.Error("Find: expected error")
	}
	if _, err := d.FindAll(ctx, loc); err == nil {
		t.Error("FindAll: expected error")
	}
	if err := d.SwitchToDefaultFrame(ctx); err == nil {
		t.Error("SwitchToDefaultFrame: expected error")
	}
	if _, err := d.CaptureScreenshot(ctx, "x"); err == nil {
		t.Error("CaptureScreenshot: expected error")
	}
	if err := d.CloseSession(ctx); err != nil {
		t.Errorf("CloseSession without session: %v", err)
	}
}

func TestDriver_RejectsForeignElements(t *testing.T) {
	d := NewDriver(Config{})
	if err := d.Click(context.Background(), foreign{}); err == nil {
		t.Error("expected error for foreign element")
	}
}

type foreign struct{}

func (foreign) Locator() core.Locator { return core.Locator{} }

// fakeExecutor answers the DevTools commands callOnNode sends.
type fakeExecutor struct {
	value     string // JSON literal returned by Runtime.callFunctionOn
	exception bool
	calls     []string
	objectID  runtime.RemoteObjectID
	released  bool
}

func (f *fakeExecutor) Execute(_ context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	f.calls = append(f.calls, method)
	switch method {
	case dom.CommandResolveNode:
		p := params.(*dom.ResolveNodeParams)
		res.(*dom.ResolveNodeReturns).Object = &runtime.RemoteObject{
			Type:     runtime.TypeObject,
			ObjectID: runtime.RemoteObjectID(fmt.Sprintf("node-%d", p.NodeID)),
		}
	case runtime.CommandCallFunctionOn:
		p := params.(*runtime.CallFunctionOnParams)
		f.objectID = p.ObjectID
		out := res.(*runtime.CallFunctionOnReturns)
		if f.exception {
			out.ExceptionDetails = &runtime.ExceptionDetails{Text: "Uncaught TypeError"}
			return nil
		}
		out.Result = &runtime.RemoteObject{Type: runtime.TypeBoolean, Value: []byte(f.value)}
	case runtime.CommandReleaseObject:
		f.released = true
	}
	return nil
}

func TestCallOnNode_Bool(t *testing.T) {
	exec := &fakeExecutor{value: "true"}
	ctx := cdp.WithExecutor(context.Background(), exec)

	var ok bool
	if err := callOnNode(&cdp.Node{NodeID: 7}, enabledJS, &ok).Do(ctx); err != nil {
		t.Fatalf("callOnNode: %v", err)
	}
	if !ok {
		t.Error("expected true")
	}
	if exec.objectID != "node-7" {
		t.Errorf("function called on %q, want node-7", exec.objectID)
	}
	if !exec.released {
		t.Error("remote object not released")
	}
	want := []string{dom.CommandResolveNode, runtime.CommandCallFunctionOn, runtime.CommandReleaseObject}
	if fmt.Sprint(exec.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", exec.calls, want)
	}
}

func TestCallOnNode_String(t *testing.T) {
	ctx := cdp.WithExecutor(context.Background(), &fakeExecutor{value: `"Welcome"`})
	var text string
	if err := callOnNode(&cdp.Node{NodeID: 3}, readTextJS, &text).Do(ctx); err != nil {
		t.Fatalf("callOnNode: %v", err)
	}
	if text != "Welcome" {
		t.Errorf("text = %q", text)
	}
}

func TestCallOnNode_DiscardsResult(t *testing.T) {
	ctx := cdp.WithExecutor(context.Background(), &fakeExecutor{value: "null"})
	if err := callOnNode(&cdp.Node{NodeID: 3}, highlightJS, nil).Do(ctx); err != nil {
		t.Fatalf("callOnNode: %v", err)
	}
}

func TestCallOnNode_Exception(t *testing.T) {
	exec := &fakeExecutor{exception: true}
	ctx := cdp.WithExecutor(context.Background(), exec)
	var ok bool
	if err := callOnNode(&cdp.Node{NodeID: 1}, displayJS, &ok).Do(ctx); err == nil {
		t.Fatal("expected the script exception as an error")
	}
	if !exec.released {
		t.Error("remote object should be released after a failed call")
	}
}

func TestEvalBool_RequiresSession(t *testing.T) {
	d := NewDriver(Config{})
	if _, err := d.evalBool(context.Background(), &cdp.Node{NodeID: 1}, enabledJS); !errors.Is(err, core.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestWriteScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	path, err := writeScreenshot(dir, "TC-1_chrome_001", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("writeScreenshot: %v", err)
	}
	if !filepath.IsAbs(path) || filepath.Base(path) != "TC-1_chrome_001.png" {
		t.Errorf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 4 {
		t.Errorf("screenshot not written: %v", err)
	}
}

func TestAllocatorOptions(t *testing.T) {
	d := NewDriver(Config{Args: []string{"--lang=en-US", "mute-audio"}})
	base := len(d.allocatorOptions("chrome"))
	if got := len(d.allocatorOptions("edge")); got != base+1 {
		t.Errorf("edge should add an exec path option: got %d, base %d", got, base)
	}
}

// TestChrome_EndToEnd drives a real browser. It runs only when
// KEYWORD_RUNNER_CHROME is set.
func TestChrome_EndToEnd(t *testing.T) {
	if os.Getenv("KEYWORD_RUNNER_CHROME") == "" {
		t.Skip("set KEYWORD_RUNNER_CHROME to run against a local Chrome")
	}

	page := filepath.Join(t.TempDir(), "page.html")
	html := `<html><body>
<input id="user"><button id="save" disabled>Save</button>
<p class="banner">Welcome</p>
</body></html>`
	if err := os.WriteFile(page, []byte(html), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDriver(Config{Headless: true, ScreenshotDir: t.TempDir(), FindTimeout: 2 * time.Second})
	ctx := context.Background()
	info, err := d.OpenSession(ctx, "chrome")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	defer d.CloseSession(ctx)
	if info.Version == "" {
		t.Error("expected a browser version")
	}

	if err := d.Navigate(ctx, "file://"+page); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	user, err := d.WaitUntilInteractable(ctx, core.ParseLocator("id=user"), 2*time.Second)
	if err != nil {
		t.Fatalf("WaitUntilInteractable: %v", err)
	}
	if err := d.TypeText(ctx, user, "alice"); err != nil {
		t.Fatalf("TypeText: %v", err)
	}
	if got, _ := d.ReadText(ctx, user); got != "alice" {
		t.Errorf("typed text = %q", got)
	}

	save, err := d.Find(ctx, core.ParseLocator("//button[@id='save']"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if enabled, _ := d.IsEnabled(ctx, save); enabled {
		t.Error("save should be disabled")
	}
	if _, err := d.WaitUntilInteractable(ctx, core.ParseLocator("id=save"), 300*time.Millisecond); !core.ErrWaitTimeout.Is(err) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}

	banner, err := d.Find(ctx, core.ParseLocator("css=.banner"))
	if err != nil {
		t.Fatalf("Find banner: %v", err)
	}
	if got, _ := d.ReadText(ctx, banner); got != "Welcome" {
		t.Errorf("banner = %q", got)
	}

	if _, err := d.Find(ctx, core.ParseLocator("css=#missing")); !core.ErrElementNotFound.Is(err) {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}

	path, err := d.CaptureScreenshot(ctx, "TC-1_chrome_001")
	if err != nil {
		t.Fatalf("CaptureScreenshot: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("screenshot missing: %v", err)
	}
}
