// Package calendar drives paged date-picker widgets to a target date or range.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Default year whitelist and paging bound.
const (
	DefaultMinYear  = 2000
	DefaultMaxYear  = 2099
	DefaultMaxPages = 240
)

// Date is a calendar day.
type Date struct {
	Day   int
	Month time.Month
	Year  int
}

// Header returns the "Month YYYY" text a widget shows for the date's month.
func (d Date) Header() string {
	return fmt.Sprintf("%s %d", d.Month, d.Year)
}

// DayText returns the zero-padded two-digit day.
func (d Date) DayText() string {
	return fmt.Sprintf("%02d", d.Day)
}

// String returns the date as "7 March 2024".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.Day, d.Month, d.Year)
}

// before reports whether d is strictly earlier than o.
func (d Date) before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Target is a single date or a range. End is nil for a single date.
type Target struct {
	Start Date
	End   *Date
}

// IsRange reports whether the target is a date range.
func (t Target) IsRange() bool {
	return t.End != nil
}

// String returns the target in its literal form.
func (t Target) String() string {
	if t.End == nil {
		return t.Start.String()
	}
	return t.Start.String() + " to " + t.End.String()
}

// Years bounds accepted years, inclusive.
type Years struct {
	Min int
	Max int
}

// DefaultYears returns the default year whitelist.
func DefaultYears() Years {
	return Years{Min: DefaultMinYear, Max: DefaultMaxYear}
}

var (
	rangeSep = regexp.MustCompile(`(?i)\s+to\s+|\s*~\s*`)
	fieldSep = regexp.MustCompile(`[\s/\-]+`)
)

var months = func() map[string]time.Month {
	m := make(map[string]time.Month, 24)
	for i := time.January; i <= time.December; i++ {
		name := strings.ToLower(i.String())
		m[name] = i
		m[name[:3]] = i
	}
	return m
}()

// ParseMonth resolves a full or three-letter English month name.
func ParseMonth(s string) (time.Month, bool) {
	m, ok := months[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// ParseTarget parses a date ("7 March 2024", "07-Mar-2024") or a range
// ("1 Jan 2024 to 5 Jan 2024", "1/Jan/2024~5/Jan/2024").
func ParseTarget(literal string, years Years) (Target, error) {
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return Target{}, core.ErrInvalidDate.WithMessage("empty calendar date")
	}

	parts := rangeSep.Split(literal, -1)
	switch len(parts) {
	case 1:
		d, err := ParseDate(parts[0], years)
		if err != nil {
			return Target{}, err
		}
		return Target{Start: d}, nil
	case 2:
		start, err := ParseDate(parts[0], years)
		if err != nil {
			return Target{}, err
		}
		end, err := ParseDate(parts[1], years)
		if err != nil {
			return Target{}, err
		}
		if end.before(start) {
			return Target{}, core.ErrInvalidDate.WithMessage(
				fmt.Sprintf("range %q ends before it starts", literal))
		}
		return Target{Start: start, End: &end}, nil
	default:
		return Target{}, core.ErrInvalidDate.WithMessage(fmt.Sprintf("malformed date range %q", literal))
	}
}

// ParseDate parses a single "D Month YYYY" date.
func ParseDate(s string, years Years) (Date, error) {
	fields := fieldSep.Split(strings.TrimSpace(s), -1)
	if len(fields) != 3 {
		return Date{}, core.ErrInvalidDate.WithMessage(fmt.Sprintf("malformed date %q: want D Month YYYY", s))
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return Date{}, core.ErrInvalidDate.WithMessage(fmt.Sprintf("malformed day in %q", s)).WithCause(err)
	}
	month, ok := ParseMonth(fields[1])
	if !ok {
		return Date{}, core.ErrInvalidDate.WithMessage(fmt.Sprintf("unknown month %q in %q", fields[1], s))
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return Date{}, core.ErrInvalidDate.WithMessage(fmt.Sprintf("malformed year in %q", s)).WithCause(err)
	}
	if year < years.Min || year > years.Max {
		return Date{}, core.ErrInvalidDate.WithMessage(
			fmt.Sprintf("year %d outside %d-%d", year, years.Min, years.Max))
	}
	if day < 1 || day > daysIn(month, year) {
		return Date{}, core.ErrInvalidDate.WithMessage(fmt.Sprintf("%s %d has no day %d", month, year, day))
	}
	return Date{Day: day, Month: month, Year: year}, nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseHeader parses displayed header text such as "March 2024" or "Mar 2024".
func ParseHeader(text string) (time.Month, int, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unrecognised calendar header %q", text)
	}
	month, ok := ParseMonth(fields[0])
	if !ok {
		return 0, 0, fmt.Errorf("unknown month in calendar header %q", text)
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad year in calendar header %q: %w", text, err)
	}
	return month, year, nil
}

// normalizeHeader collapses whitespace and lowercases header text.
func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
