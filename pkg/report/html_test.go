package report

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestStatusClass(t *testing.T) {
	tests := map[string]string{
		"Pass":    "passed",
		"PASSED":  "passed",
		"Fail":    "failed",
		"FAILED":  "failed",
		"Unknown": "unknown",
	}
	for in, want := range tests {
		if got := statusClass(in); got != want {
			t.Errorf("statusClass(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTMLRenderer_ImageURL(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "out", "run", "TC-1")
	r := HTMLRenderer{BaseDir: base}

	if got := r.imageURL(""); got != "" {
		t.Errorf("empty path should give no image, got %q", got)
	}
	if got := r.imageURL(filepath.Join(base, "screenshots", "a.png")); got != "screenshots/a.png" {
		t.Errorf("expected relative link, got %q", got)
	}
	if got := r.imageURL("shots/b.png"); got != "shots/b.png" {
		t.Errorf("relative paths are kept, got %q", got)
	}
	if got := (HTMLRenderer{EmbedAssets: true}).imageURL(filepath.Join(t.TempDir(), "missing.png")); got != "" {
		t.Errorf("missing screenshot should embed nothing, got %q", got)
	}
}

func TestHTMLRenderer_Title(t *testing.T) {
	doc := NewDocument(sampleTree(t, false), sampleMeta())

	var buf strings.Builder
	if err := (HTMLRenderer{}).Render(&buf, doc); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "<title>Test Report - TC-1</title>") {
		t.Error("expected default title")
	}

	buf.Reset()
	if err := (HTMLRenderer{Title: "Nightly"}).Render(&buf, doc); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "<h1>Nightly</h1>") {
		t.Error("expected custom title")
	}
	if strings.Contains(buf.String(), `class="step failed"`) {
		t.Error("passing run should have no failed steps")
	}
}
