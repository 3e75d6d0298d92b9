package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Metadata describes one script execution for the report header.
type Metadata struct {
	RunID          string    `json:"runId"`
	TestCaseID     string    `json:"testCaseId"`
	Description    string    `json:"description"`
	Source         string    `json:"source,omitempty"`
	Browser        string    `json:"browser"`
	BrowserVersion string    `json:"browserVersion,omitempty"`
	ExecutedAt     time.Time `json:"executedAt"`
	DurationMs     int64     `json:"durationMs"`
	Status         string    `json:"status"` // PASSED or FAILED
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"maxAttempts"`
}

// Document is a frozen tree flattened for rendering.
type Document struct {
	Metadata
	Steps []StepView `json:"steps"`
}

// StepView is a rendered step.
type StepView struct {
	Ordinal        int           `json:"ordinal"`
	Description    string        `json:"description"`
	ExpectedResult string        `json:"expectedResult,omitempty"`
	Status         string        `json:"status"`
	RowSpan        int           `json:"rowSpan"`
	SubSteps       []SubStepView `json:"subSteps"`
}

// SubStepView is a rendered sub-step.
type SubStepView struct {
	Description string `json:"description"`
	Message     string `json:"message,omitempty"`
	Status      string `json:"status"`
	Screenshot  string `json:"screenshot,omitempty"`
}

// NewDocument snapshots tree into a Document. meta.Status and
// meta.Attempt are taken from the tree.
func NewDocument(tree *Tree, meta Metadata) *Document {
	meta.Status = tree.RunStatus().RunLabel()
	meta.Attempt = tree.Attempt()

	doc := &Document{Metadata: meta, Steps: []StepView{}}
	for _, s := range tree.Steps() {
		view := StepView{
			Ordinal:        s.Ordinal,
			Description:    s.Description,
			ExpectedResult: s.ExpectedResult,
			Status:         s.Status.String(),
			RowSpan:        s.RowSpan(),
			SubSteps:       make([]SubStepView, 0, len(s.SubSteps)),
		}
		for _, sub := range s.SubSteps {
			view.SubSteps = append(view.SubSteps, SubStepView{
				Description: sub.Description,
				Message:     sub.Message,
				Status:      sub.Status.String(),
				Screenshot:  sub.Screenshot,
			})
		}
		doc.Steps = append(doc.Steps, view)
	}
	return doc
}

// Passed reports whether the document's run passed.
func (d *Document) Passed() bool {
	return d.Status == core.StatusPass.RunLabel()
}

// Renderer turns a Document into a file format.
type Renderer interface {
	// Filename is the file the renderer writes inside a report directory.
	Filename() string
	Render(w io.Writer, doc *Document) error
}

// Write renders doc with every renderer into dir.
func Write(dir string, doc *Document, renderers ...Renderer) error {
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	for _, r := range renderers {
		var buf bytes.Buffer
		if err := r.Render(&buf, doc); err != nil {
			return fmt.Errorf("render %s: %w", r.Filename(), err)
		}
		if err := atomicWriteFile(filepath.Join(dir, r.Filename()), buf.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", r.Filename(), err)
		}
	}
	return nil
}

// JSONRenderer writes the document as indented JSON.
type JSONRenderer struct{}

// Filename returns "report.json".
func (JSONRenderer) Filename() string { return "report.json" }

// Render encodes doc.
func (JSONRenderer) Render(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadJSON reads a report.json written by JSONRenderer.
func ReadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- report path
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteFile writes data to a temp file and renames it over path.
func atomicWriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
