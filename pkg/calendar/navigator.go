package calendar

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
	"github.com/devicelab-dev/keyword-runner/pkg/logger"
)

// Widget is the locator set of one paged calendar.
type Widget struct {
	Open     core.Locator // optional; clicked before paging starts
	Header   core.Locator // displays "Month YYYY"
	Previous core.Locator
	Next     core.Locator
	Days     core.Locator // every day cell of the visible month
}

// Direction is a paging decision.
type Direction int

// Paging decisions.
const (
	Stay Direction = iota
	Previous
	Next
)

func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return "stay"
	}
}

// Decide returns the paging action for a displayed header and a target.
// It returns Stay when the header already shows the target month.
func Decide(header string, target Date) (Direction, error) {
	if normalizeHeader(header) == normalizeHeader(target.Header()) {
		return Stay, nil
	}
	month, year, err := ParseHeader(header)
	if err != nil {
		return Stay, err
	}
	switch {
	case year > target.Year:
		return Previous, nil
	case year < target.Year:
		return Next, nil
	case month > target.Month:
		return Previous, nil
	case month < target.Month:
		return Next, nil
	default:
		// "Mar 2024" against "March 2024"
		return Stay, nil
	}
}

// Navigator pages calendar widgets through a Driver.
type Navigator struct {
	driver   core.Driver
	maxPages int

	// OnPage is called with every paging decision that is acted on.
	OnPage func(Direction)
}

// NewNavigator creates a navigator. maxPages <= 0 uses DefaultMaxPages.
func NewNavigator(driver core.Driver, maxPages int) *Navigator {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Navigator{driver: driver, maxPages: maxPages}
}

// Select pages w to the target month and clicks the target day.
func (n *Navigator) Select(ctx context.Context, w Widget, target Date) error {
	if !w.Open.IsEmpty() {
		el, err := n.driver.Find(ctx, w.Open)
		if err != nil {
			return err
		}
		if err := n.driver.Click(ctx, el); err != nil {
			return fmt.Errorf("open calendar: %w", err)
		}
	}

	if err := n.page(ctx, w, target); err != nil {
		return err
	}
	return n.pickDay(ctx, w, target)
}

// SelectRange selects the start date on start and the end date on end.
// The two widgets are driven independently.
func (n *Navigator) SelectRange(ctx context.Context, start, end Widget, t Target) error {
	if !t.IsRange() {
		return core.ErrInvalidDate.WithMessage(fmt.Sprintf("%q is not a date range", t))
	}
	if err := n.Select(ctx, start, t.Start); err != nil {
		return fmt.Errorf("range start: %w", err)
	}
	if err := n.Select(ctx, end, *t.End); err != nil {
		return fmt.Errorf("range end: %w", err)
	}
	return nil
}

func (n *Navigator) page(ctx context.Context, w Widget, target Date) error {
	for pages := 0; ; pages++ {
		header, err := n.readHeader(ctx, w)
		if err != nil {
			return err
		}

		dir, err := Decide(header, target)
		if err != nil {
			return core.ErrNavigationFailed.WithMessage(
				fmt.Sprintf("cannot page to %s", target.Header())).WithCause(err)
		}
		if dir == Stay {
			logger.Debug("calendar reached %s after %d pages", target.Header(), pages)
			return nil
		}
		if pages >= n.maxPages {
			return core.ErrNavigationFailed.WithMessage(
				fmt.Sprintf("calendar still shows %q after %d pages, want %s", header, pages, target.Header()))
		}

		loc := w.Next
		if dir == Previous {
			loc = w.Previous
		}
		el, err := n.driver.Find(ctx, loc)
		if err != nil {
			return err
		}
		if err := n.driver.Click(ctx, el); err != nil {
			return fmt.Errorf("calendar %s: %w", dir, err)
		}
		if n.OnPage != nil {
			n.OnPage(dir)
		}
	}
}

func (n *Navigator) readHeader(ctx context.Context, w Widget) (string, error) {
	el, err := n.driver.Find(ctx, w.Header)
	if err != nil {
		return "", err
	}
	return n.driver.ReadText(ctx, el)
}

func (n *Navigator) pickDay(ctx context.Context, w Widget, target Date) error {
	cells, err := n.driver.FindAll(ctx, w.Days)
	if err != nil {
		return err
	}
	want := target.DayText()
	for _, cell := range cells {
		text, err := n.driver.ReadText(ctx, cell)
		if err != nil {
			return err
		}
		if padDay(text) != want {
			continue
		}
		if err := n.driver.Click(ctx, cell); err != nil {
			return fmt.Errorf("click day %s: %w", want, err)
		}
		return nil
	}
	return core.ErrDaySelectionFailed.WithMessage(
		fmt.Sprintf("no day cell %s among %d cells for %s", want, len(cells), target))
}

// padDay zero-pads numeric cell text to two digits ("7" -> "07").
// Non-numeric text is returned trimmed.
func padDay(text string) string {
	text = strings.TrimSpace(text)
	n, err := strconv.Atoi(text)
	if err != nil {
		return text
	}
	return fmt.Sprintf("%02d", n)
}
