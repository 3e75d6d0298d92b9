package report

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// SummarySheet is the worksheet summary rows are written to.
const SummarySheet = "Summary"

var summaryHeader = []string{"Run ID", "Test Case ID", "Description", "Status", "Browser", "Attempts", "Source", "Executed At"}

// SummaryRow is one script's final outcome.
type SummaryRow struct {
	RunID       string
	TestCaseID  string
	Description string
	Status      string // PASSED or FAILED
	Browser     string
	Attempts    int
	Source      string
	ExecutedAt  time.Time
}

// SummaryStore collects one row per script across a run. Scripts may
// finish concurrently; Append serializes them.
type SummaryStore struct {
	mu   sync.Mutex
	path string
	rows []SummaryRow
}

// NewSummaryStore creates a store persisted to path as .xlsx after every
// append. An empty path keeps rows in memory only.
func NewSummaryStore(path string) *SummaryStore {
	return &SummaryStore{path: path}
}

// Path returns the workbook path.
func (s *SummaryStore) Path() string {
	return s.path
}

// Append adds a row and rewrites the workbook.
func (s *SummaryStore) Append(row SummaryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = append(s.rows, row)
	if s.path == "" {
		return nil
	}
	return s.saveLocked()
}

// Rows returns a copy of the rows appended so far.
func (s *SummaryStore) Rows() []SummaryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SummaryRow(nil), s.rows...)
}

// Counts returns the number of passed and failed rows.
func (s *SummaryStore) Counts() (passed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Status == "PASSED" {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

func (s *SummaryStore) saveLocked() error {
	if err := ensureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &summaryHeader); err != nil {
		return err
	}
	for i, r := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.RunID, r.TestCaseID, r.Description, r.Status, r.Browser,
			r.Attempts, r.Source, r.ExecutedAt.Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// ReadSummary reads a workbook written by SummaryStore.
func ReadSummary(path string) ([]SummaryRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary: %w", err)
	}
	defer f.Close()

	cells, err := f.GetRows(SummarySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var rows []SummaryRow
	for i, c := range cells {
		if i == 0 {
			continue
		}
		for len(c) < len(summaryHeader) {
			c = append(c, "")
		}
		attempts, _ := strconv.Atoi(c[5])
		executedAt, _ := time.Parse(time.RFC3339, c[7])
		rows = append(rows, SummaryRow{
			RunID:       c[0],
			TestCaseID:  c[1],
			Description: c[2],
			Status:      c[3],
			Browser:     c[4],
			Attempts:    attempts,
			Source:      c[6],
			ExecutedAt:  executedAt,
		})
	}
	return rows, nil
}
