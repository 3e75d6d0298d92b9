package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/script"
)

var locators = script.LocatorMap{
	"login.button": "css=#login",
}

func scriptYAML(id string) string {
	return `
- {keyword: identify-test-case, data: ` + id + `}
- {keyword: describe-test-case, data: Login}
- {keyword: open-browser}
- {keyword: navigate-to-url, data: "https://example.com"}
- {keyword: click, key: login.button}
`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidate_SingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "login.yaml")
	writeFile(t, file, scriptYAML("TC-001"))

	result := New(locators, script.DefaultOptions(), nil, nil).Validate(file)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Scripts) != 1 || result.Scripts[0].TestCaseID != "TC-001" {
		t.Errorf("expected TC-001, got %v", result.Scripts)
	}
}

func TestValidate_DirectoryIsRecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yaml"), scriptYAML("TC-B"))
	writeFile(t, filepath.Join(dir, "a.yml"), scriptYAML("TC-A"))
	writeFile(t, filepath.Join(dir, "nested", "c.yaml"), scriptYAML("TC-C"))
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "~$book.xlsx"), "lock file")

	result := New(locators, script.DefaultOptions(), nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	var ids []string
	for _, s := range result.Scripts {
		ids = append(ids, s.TestCaseID)
	}
	if got := strings.Join(ids, ","); got != "TC-A,TC-B,TC-C" {
		t.Errorf("unexpected order %s", got)
	}
}

func TestValidate_SkipsLocatorFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "login.yaml"), scriptYAML("TC-1"))
	locFile := filepath.Join(dir, "locators.yaml")
	writeFile(t, locFile, "login:\n  button: css=#login\n")

	v := New(locators, script.DefaultOptions(), nil, nil)
	v.Skip(locFile)
	result := v.Validate(dir)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Files) != 1 {
		t.Errorf("expected 1 file, got %v", result.Files)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.yaml"), scriptYAML("TC-1"))
	writeFile(t, filepath.Join(dir, "bad.yaml"), `
- {keyword: identify-test-case, data: TC-2}
- {keyword: describe-test-case, data: Broken}
- {keyword: jump}
- {keyword: click, key: nowhere}
`)

	result := New(locators, script.DefaultOptions(), nil, nil).Validate(dir)

	if result.IsValid() {
		t.Fatal("expected errors")
	}
	if len(result.Errors) < 2 {
		t.Errorf("expected every problem to be reported, got %v", result.Errors)
	}
	for _, err := range result.Errors {
		if !errors.Is(err, core.ErrInvalidScript) && !errors.Is(err, core.ErrUnknownKeyword) &&
			!errors.Is(err, core.ErrUnknownLocator) {
			t.Errorf("unexpected error kind: %v", err)
		}
	}
	if len(result.Scripts) != 1 {
		t.Errorf("the valid file should still compile, got %d scripts", len(result.Scripts))
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(locators, script.DefaultOptions(), nil, nil).Validate(filepath.Join(t.TempDir(), "nope"))
	if result.IsValid() {
		t.Fatal("expected error")
	}
	var verr *ValidationError
	if !errors.As(result.Errors[0], &verr) || !strings.Contains(verr.Message, "cannot access") {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestValidate_FiltersByTestCaseID(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"LOGIN-1", "LOGIN-2", "SEARCH-1"} {
		writeFile(t, filepath.Join(dir, id+".yaml"), scriptYAML(id))
	}

	tests := []struct {
		include, exclude []string
		want             int
	}{
		{nil, nil, 3},
		{[]string{"LOGIN-*"}, nil, 2},
		{[]string{"LOGIN-*"}, []string{"LOGIN-2"}, 1},
		{nil, []string{"SEARCH-1"}, 2},
	}
	for _, tt := range tests {
		result := New(locators, script.DefaultOptions(), tt.include, tt.exclude).Validate(dir)
		if len(result.Scripts) != tt.want {
			t.Errorf("include=%v exclude=%v: got %d scripts, want %d", tt.include, tt.exclude, len(result.Scripts), tt.want)
		}
		if len(result.Files) != 3 {
			t.Errorf("filters must not hide files from validation, got %d", len(result.Files))
		}
	}
}

func TestIsScriptFile(t *testing.T) {
	tests := map[string]bool{
		"a.xlsx":    true,
		"a.XLSM":    true,
		"a.yaml":    true,
		"a.yml":     true,
		"a.csv":     false,
		"~$a.xlsx":  false,
		"dir/a.txt": false,
	}
	for path, want := range tests {
		if got := IsScriptFile(path); got != want {
			t.Errorf("IsScriptFile(%q) = %v, want %v", path, got, want)
		}
	}
}
