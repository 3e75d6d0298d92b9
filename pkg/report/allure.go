package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/devicelab-dev/keyword-runner/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	TestCaseID    string              `json:"testCaseId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Parameters    []AllureParameter   `json:"parameters"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureParameter is a name/value pair shown with the result.
type AllureParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// WriteAllure writes doc as an Allure result into resultsDir, copying its
// screenshots next to it. Several scripts of one run may share resultsDir.
func WriteAllure(resultsDir string, doc *Document) (string, error) {
	if err := ensureDir(resultsDir); err != nil {
		return "", fmt.Errorf("create allure-results dir: %w", err)
	}

	result := buildAllureResult(doc, uuid.NewString())
	copyAllureAttachments(resultsDir, doc, result.UUID)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal allure result for %s: %w", doc.TestCaseID, err)
	}
	resultPath := filepath.Join(resultsDir, result.UUID+"-result.json")
	if err := atomicWriteFile(resultPath, data); err != nil {
		return "", fmt.Errorf("write allure result %s: %w", doc.TestCaseID, err)
	}

	if err := writeAllureCategories(resultsDir); err != nil {
		return "", err
	}
	if err := writeAllureEnvironment(resultsDir, doc); err != nil {
		return "", err
	}
	return resultPath, nil
}

// buildAllureResult maps a report document onto the Allure schema. Steps
// become top-level Allure steps and sub-steps nest under them.
func buildAllureResult(doc *Document, id string) AllureResult {
	name := doc.TestCaseID
	if doc.Description != "" {
		name = doc.TestCaseID + ": " + doc.Description
	}

	suite := doc.TestCaseID
	if doc.Source != "" {
		suite = filepath.Base(sourceFile(doc.Source))
	}

	start := doc.ExecutedAt.UnixMilli()
	labels := []AllureLabel{
		{Name: "suite", Value: suite},
		{Name: "framework", Value: "keyword-runner"},
		{Name: "severity", Value: "normal"},
	}
	if doc.Browser != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: doc.Browser})
	}

	result := AllureResult{
		UUID:        id,
		HistoryID:   fnv32aHash(doc.TestCaseID + ":" + doc.Source),
		TestCaseID:  doc.TestCaseID,
		FullName:    doc.Source + "#" + doc.TestCaseID,
		Name:        name,
		Description: doc.Description,
		Status:      mapAllureStatus(doc.Status),
		Stage:       "finished",
		Start:       start,
		Stop:        start + doc.DurationMs,
		Labels:      labels,
		Parameters: []AllureParameter{
			{Name: "attempt", Value: fmt.Sprintf("%d/%d", doc.Attempt, doc.MaxAttempts)},
		},
		Steps:       make([]AllureStep, 0, len(doc.Steps)),
		Attachments: []AllureAttachment{},
	}

	for _, s := range doc.Steps {
		step := AllureStep{
			Name:        fmt.Sprintf("Step %d: %s", s.Ordinal, s.Description),
			Status:      mapAllureStatus(s.Status),
			Stage:       "finished",
			Steps:       make([]AllureStep, 0, len(s.SubSteps)),
			Attachments: []AllureAttachment{},
		}
		for _, sub := range s.SubSteps {
			subStep := AllureStep{
				Name:          sub.Description,
				Status:        mapAllureStatus(sub.Status),
				Stage:         "finished",
				StatusDetails: AllureStatusDetails{Message: sub.Message},
				Steps:         []AllureStep{},
				Attachments:   []AllureAttachment{},
			}
			if sub.Screenshot != "" {
				subStep.Attachments = append(subStep.Attachments, AllureAttachment{
					Name:   "Screenshot",
					Source: attachmentName(id, sub.Screenshot),
					Type:   "image/png",
				})
			}
			if sub.Status == "Fail" && result.StatusDetails.Message == "" {
				result.StatusDetails.Message = sub.Description + ": " + sub.Message
			}
			step.Steps = append(step.Steps, subStep)
		}
		if s.Status == "Fail" && result.StatusDetails.Message == "" {
			result.StatusDetails.Message = s.Description
		}
		result.Steps = append(result.Steps, step)
	}
	return result
}

// sourceFile strips the "[sheet]" suffix from a script name.
func sourceFile(source string) string {
	if i := strings.LastIndex(source, "["); i > 0 && strings.HasSuffix(source, "]") {
		return source[:i]
	}
	return source
}

func attachmentName(id, screenshot string) string {
	return id + "-" + filepath.Base(screenshot)
}

// copyAllureAttachments copies screenshot files into the results directory.
func copyAllureAttachments(resultsDir string, doc *Document, id string) {
	for _, s := range doc.Steps {
		for _, sub := range s.SubSteps {
			if sub.Screenshot == "" {
				continue
			}
			copyFile(sub.Screenshot, filepath.Join(resultsDir, attachmentName(id, sub.Screenshot)))
		}
	}
}

// copyFile copies a single file from src to dst. Failures are logged; a
// missing screenshot never fails the export.
func copyFile(src, dst string) {
	in, err := os.Open(src) //#nosec G304 -- screenshot path from the report
	if err != nil {
		logger.Warn("allure: skip attachment %s: %v", src, err)
		return
	}
	defer in.Close()

	out, err := os.Create(dst) //#nosec G304 -- inside the results dir
	if err != nil {
		logger.Warn("allure: create %s: %v", dst, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps a step or run status to Allure status string.
func mapAllureStatus(s string) string {
	switch s {
	case "Pass", "PASSED":
		return "passed"
	case "Fail", "FAILED":
		return "failed"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(resultsDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*element not found.*"},
		{Name: "Element Not Visible", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not visible.*|.*not displayed.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*timed out.*"},
		{Name: "Text Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*expected.*got.*"},
		{Name: "Navigation Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*navigat.*"},
		{Name: "Calendar", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*calendar.*|.*day.*"},
		{Name: "Browser Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*session.*|.*browser.*|.*driver.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := atomicWriteFile(filepath.Join(resultsDir, "categories.json"), data); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with run metadata.
func writeAllureEnvironment(resultsDir string, doc *Document) error {
	var b strings.Builder
	b.WriteString("framework=keyword-runner\n")
	if doc.RunID != "" {
		fmt.Fprintf(&b, "run.id=%s\n", doc.RunID)
	}
	if doc.Browser != "" {
		fmt.Fprintf(&b, "browser.name=%s\n", doc.Browser)
	}
	if doc.BrowserVersion != "" {
		fmt.Fprintf(&b, "browser.version=%s\n", doc.BrowserVersion)
	}

	if err := atomicWriteFile(filepath.Join(resultsDir, "environment.properties"), []byte(b.String())); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
