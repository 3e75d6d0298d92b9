package report

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// HTMLRenderer renders a Document as a standalone HTML table. Step cells
// span 1 + len(sub-steps) rows.
type HTMLRenderer struct {
	Title       string // Report title (default: "Test Report")
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	BaseDir     string // Directory the report is written to; screenshot links are made relative to it
}

// Filename returns "report.html".
func (HTMLRenderer) Filename() string { return "report.html" }

// htmlData contains all data needed for the HTML template.
type htmlData struct {
	Title string
	Doc   *Document
	Steps []stepHTML
	Class string
}

type stepHTML struct {
	StepView
	Class    string
	SubSteps []subStepHTML
}

type subStepHTML struct {
	SubStepView
	Class string
	Image template.URL
}

// Render writes the HTML document.
func (r HTMLRenderer) Render(w io.Writer, doc *Document) error {
	title := r.Title
	if title == "" {
		title = "Test Report"
	}

	data := htmlData{Title: title, Doc: doc, Class: statusClass(doc.Status)}
	for _, s := range doc.Steps {
		sh := stepHTML{StepView: s, Class: statusClass(s.Status)}
		for _, sub := range s.SubSteps {
			sh.SubSteps = append(sh.SubSteps, subStepHTML{
				SubStepView: sub,
				Class:       statusClass(sub.Status),
				Image:       r.imageURL(sub.Screenshot),
			})
		}
		data.Steps = append(data.Steps, sh)
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

func (r HTMLRenderer) imageURL(path string) template.URL {
	if path == "" {
		return ""
	}
	if r.EmbedAssets {
		return template.URL(loadAsBase64(path))
	}
	if r.BaseDir != "" && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(r.BaseDir, path); err == nil {
			path = rel
		}
	}
	return template.URL(filepath.ToSlash(path))
}

func statusClass(status string) string {
	switch strings.ToLower(status) {
	case "pass", "passed":
		return "passed"
	case "fail", "failed":
		return "failed"
	default:
		return "unknown"
	}
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path) //#nosec G304 -- screenshot written by this run
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - {{.Doc.TestCaseID}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --passed-bg: rgba(34, 197, 94, 0.1);
            --failed: #ef4444;
            --failed-bg: rgba(239, 68, 68, 0.08);
        }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; color: var(--text-primary); background: var(--bg-secondary); margin: 0; padding: 24px; }
        h1 { font-size: 20px; margin: 0 0 16px; }
        .meta { display: grid; grid-template-columns: max-content 1fr; gap: 4px 16px; background: var(--bg-primary); border: 1px solid var(--border-color); border-radius: 8px; padding: 16px; margin-bottom: 24px; }
        .meta dt { color: var(--text-muted); }
        .meta dd { margin: 0; }
        table { width: 100%; border-collapse: collapse; background: var(--bg-primary); }
        th, td { border: 1px solid var(--border-color); padding: 8px; text-align: left; vertical-align: top; font-size: 14px; }
        th { background: var(--bg-secondary); }
        .status { font-weight: 600; }
        .passed .status, .status.passed { color: var(--passed); }
        .failed .status, .status.failed { color: var(--failed); }
        tr.failed td.sub { background: var(--failed-bg); }
        tr.step td { font-weight: 600; }
        img.shot { max-width: 240px; border: 1px solid var(--border-color); }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <dl class="meta">
        <dt>Test case</dt><dd>{{.Doc.TestCaseID}}</dd>
        <dt>Description</dt><dd>{{.Doc.Description}}</dd>
        <dt>Browser</dt><dd>{{.Doc.Browser}}{{if .Doc.BrowserVersion}} ({{.Doc.BrowserVersion}}){{end}}</dd>
        <dt>Executed</dt><dd>{{.Doc.ExecutedAt.Format "2006-01-02 15:04:05"}}</dd>
        <dt>Attempt</dt><dd>{{.Doc.Attempt}}{{if .Doc.MaxAttempts}} of {{.Doc.MaxAttempts}}{{end}}</dd>
        <dt>Status</dt><dd class="status {{.Class}}">{{.Doc.Status}}</dd>
    </dl>
    <table>
        <thead>
            <tr><th>#</th><th>Step</th><th>Expected result</th><th>Action</th><th>Message</th><th>Status</th><th>Screenshot</th></tr>
        </thead>
        <tbody>
        {{- range .Steps}}
            <tr class="step {{.Class}}">
                <td rowspan="{{.RowSpan}}">{{.Ordinal}}</td>
                <td rowspan="{{.RowSpan}}">{{.Description}}</td>
                <td rowspan="{{.RowSpan}}">{{.ExpectedResult}}</td>
                <td colspan="3" class="status">{{.Status}}</td>
                <td></td>
            </tr>
            {{- range .SubSteps}}
            <tr class="{{.Class}}">
                <td class="sub">{{.Description}}</td>
                <td class="sub">{{.Message}}</td>
                <td class="sub status">{{.Status}}</td>
                <td class="sub">{{if .Image}}<a href="{{.Image}}"><img class="shot" src="{{.Image}}" alt="screenshot"></a>{{end}}</td>
            </tr>
            {{- end}}
        {{- end}}
        </tbody>
    </table>
</body>
</html>
`
