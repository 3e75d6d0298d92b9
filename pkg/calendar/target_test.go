package calendar

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

func TestParseTarget(t *testing.T) {
	jan5 := Date{Day: 5, Month: time.January, Year: 2024}
	tests := []struct {
		literal string
		want    Target
	}{
		{"7 March 2024", Target{Start: Date{Day: 7, Month: time.March, Year: 2024}}},
		{"07-Mar-2024", Target{Start: Date{Day: 7, Month: time.March, Year: 2024}}},
		{"29/feb/2024", Target{Start: Date{Day: 29, Month: time.February, Year: 2024}}},
		{"1 Jan 2024 to 5 Jan 2024", Target{Start: Date{Day: 1, Month: time.January, Year: 2024}, End: &jan5}},
		{"1 Jan 2024 TO 5 January 2024", Target{Start: Date{Day: 1, Month: time.January, Year: 2024}, End: &jan5}},
		{"1-Jan-2024~5-Jan-2024", Target{Start: Date{Day: 1, Month: time.January, Year: 2024}, End: &jan5}},
		{"15 October 2024", Target{Start: Date{Day: 15, Month: time.October, Year: 2024}}},
	}
	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, err := ParseTarget(tt.literal, DefaultYears())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTarget mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTarget_Invalid(t *testing.T) {
	tests := []string{
		"",
		"March 2024",
		"7 Smarch 2024",
		"x March 2024",
		"7 March 1999",
		"7 March 2100",
		"30 February 2024",
		"29 February 2023",
		"5 Jan 2024 to 1 Jan 2024",
		"1 Jan 2024 to 2 Jan 2024 to 3 Jan 2024",
	}
	for _, literal := range tests {
		t.Run(literal, func(t *testing.T) {
			_, err := ParseTarget(literal, DefaultYears())
			if err == nil {
				t.Fatalf("expected error for %q", literal)
			}
			if core.CategoryOf(err) != core.ErrCategoryValidation {
				t.Errorf("expected validation error, got %v", core.CategoryOf(err))
			}
		})
	}
}

func TestParseTarget_CustomYears(t *testing.T) {
	if _, err := ParseTarget("1 Jan 1995", Years{Min: 1990, Max: 2000}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDate_Formatting(t *testing.T) {
	d := Date{Day: 7, Month: time.January, Year: 2024}
	if got := d.Header(); got != "January 2024" {
		t.Errorf("Header() = %q", got)
	}
	if got := d.DayText(); got != "07" {
		t.Errorf("DayText() = %q", got)
	}
}

func TestParseHeader(t *testing.T) {
	month, year, err := ParseHeader("  Sep   2031 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if month != time.September || year != 2031 {
		t.Errorf("got %v %d", month, year)
	}
	if _, _, err := ParseHeader("2031"); err == nil {
		t.Error("expected error for header without month")
	}
}

func TestPadDay(t *testing.T) {
	for in, want := range map[string]string{"7": "07", " 7 ": "07", "07": "07", "31": "31", "": "", "x": "x"} {
		if got := padDay(in); got != want {
			t.Errorf("padDay(%q) = %q, want %q", in, got, want)
		}
	}
}
