package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// LoadFile loads every script in a .xlsx, .yaml or .yml file. A problem
// in any script rejects the whole file.
func LoadFile(path string, locs LocatorMap, opts Options) ([]*Script, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(path, locs, opts)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided script file
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return ParseYAML(data, path, locs, opts)
	default:
		return nil, &ParseError{Path: path, Message: "unsupported script file type", Err: core.ErrInvalidScript}
	}
}

// ============================================
// YAML scripts
// ============================================

// yamlRow is one YAML step mapping.
type yamlRow struct {
	Keyword string `yaml:"keyword"`
	Name    string `yaml:"name"`
	Key     string `yaml:"key"`
	Data    string `yaml:"data"`
}

// ParseYAML parses YAML script content. Each document is one script:
//
//	- {keyword: identify-test-case, data: TC-001}
//	- {keyword: describe-test-case, data: Login works}
//	- {keyword: open-browser, data: chrome}
//	- {keyword: navigate-to-url, data: "https://example.com"}
//	- {keyword: click, name: Login button, key: login.button}
func ParseYAML(data []byte, sourcePath string, locs LocatorMap, opts Options) ([]*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var (
		scripts []*Script
		errs    []error
	)
	for doc := 1; ; doc++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid YAML: %v", err), Err: core.ErrInvalidScript}
		}

		sheet := fmt.Sprintf("document %d", doc)
		rows, err := yamlRows(&node, sourcePath, sheet)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		s, err := Compile(sourcePath, sheet, rows, locs, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scripts = append(scripts, s)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(scripts) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty script file", Err: core.ErrInvalidScript}
	}
	return scripts, nil
}

func yamlRows(node *yaml.Node, path, sheet string) ([]Row, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Path: path, Sheet: sheet, Line: node.Line,
			Message: "script must be a list of steps", Err: core.ErrInvalidScript}
	}

	rows := make([]Row, 0, len(node.Content))
	for _, item := range node.Content {
		var r yamlRow
		if err := item.Decode(&r); err != nil {
			return nil, &ParseError{Path: path, Sheet: sheet, Line: item.Line,
				Message: fmt.Sprintf("invalid step: %v", err), Err: core.ErrInvalidScript}
		}
		rows = append(rows, Row{Line: item.Line, Keyword: r.Keyword, ElementName: r.Name, ElementKey: r.Key, Data: r.Data})
	}
	return rows, nil
}

// ============================================
// Workbooks
// ============================================

// Column headers, normalised.
var columns = map[string]string{
	"keyword":     "keyword",
	"stepkeyword": "keyword",
	"elementname": "name",
	"name":        "name",
	"elementkey":  "key",
	"key":         "key",
	"locatorkey":  "key",
	"testdata":    "data",
	"data":        "data",
}

// ReadWorkbook reads one script per worksheet of an .xlsx file. Sheets
// with no content are skipped.
func ReadWorkbook(path string, locs LocatorMap, opts Options) ([]*Script, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var (
		scripts []*Script
		errs    []error
	)
	for _, sheet := range f.GetSheetList() {
		cells, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		rows, err := sheetRows(cells, path, sheet)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		s, err := Compile(path, sheet, rows, locs, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scripts = append(scripts, s)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(scripts) == 0 {
		return nil, &ParseError{Path: path, Message: "workbook contains no scripts", Err: core.ErrInvalidScript}
	}
	return scripts, nil
}

// sheetRows maps the header row to columns and converts the remaining
// cells to Rows. Blank rows are dropped.
func sheetRows(cells [][]string, path, sheet string) ([]Row, error) {
	headerAt := -1
	for i, r := range cells {
		if strings.TrimSpace(strings.Join(r, "")) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, nil
	}

	index := map[string]int{}
	for col, title := range cells[headerAt] {
		if field, ok := columns[normalizeName(title)]; ok {
			index[field] = col
		}
	}
	if _, ok := index["keyword"]; !ok {
		return nil, &ParseError{Path: path, Sheet: sheet, Line: headerAt + 1,
			Message: "header row has no Keyword column", Err: core.ErrInvalidScript}
	}

	cell := func(r []string, field string) string {
		col, ok := index[field]
		if !ok || col >= len(r) {
			return ""
		}
		return r[col]
	}

	var rows []Row
	for i := headerAt + 1; i < len(cells); i++ {
		row := Row{
			Line:        i + 1,
			Keyword:     cell(cells[i], "keyword"),
			ElementName: cell(cells[i], "name"),
			ElementKey:  cell(cells[i], "key"),
			Data:        cell(cells[i], "data"),
		}
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
