package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/keyword-runner/pkg/calendar"
	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// Row is one raw row of a script source.
type Row struct {
	Line        int
	Keyword     string
	ElementName string
	ElementKey  string
	Data        string
}

// IsBlank reports whether every cell of the row is empty.
func (r Row) IsBlank() bool {
	return strings.TrimSpace(r.Keyword+r.ElementName+r.ElementKey+r.Data) == ""
}

// Options controls script compilation.
type Options struct {
	Years calendar.Years
}

// DefaultOptions returns the default compile options.
func DefaultOptions() Options {
	return Options{Years: calendar.DefaultYears()}
}

// ParseError represents a script error with location info.
type ParseError struct {
	Path    string
	Sheet   string
	Line    int
	Message string
	Err     error // sentinel from core, for errors.Is
}

func (e *ParseError) Error() string {
	where := e.Path
	if e.Sheet != "" {
		where += "[" + e.Sheet + "]"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", where, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// compiler accumulates every problem in a script rather than stopping at
// the first.
type compiler struct {
	path   string
	sheet  string
	locs   LocatorMap
	opts   Options
	errs   []error
	script *Script
}

// Compile validates rows and builds a Script. All problems are returned
// joined; no Script is returned when any exist.
func Compile(path, sheet string, rows []Row, locs LocatorMap, opts Options) (*Script, error) {
	c := &compiler{
		path:   path,
		sheet:  sheet,
		locs:   locs,
		opts:   opts,
		script: &Script{SourcePath: path, Sheet: sheet},
	}

	if len(rows) == 0 {
		c.fail(0, core.ErrInvalidScript, "script has no steps")
		return nil, errors.Join(c.errs...)
	}

	for i, row := range rows {
		kw, ok := c.keyword(row)
		if !ok {
			continue
		}
		if i < len(header) && kw != header[i] {
			c.fail(row.Line, core.ErrInvalidScript,
				fmt.Sprintf("row %d must be %s, got %s", i+1, header[i], kw))
			continue
		}
		if step := c.step(kw, row); step != nil {
			c.script.Steps = append(c.script.Steps, step)
		}
	}
	if len(rows) < len(header) {
		c.fail(0, core.ErrInvalidScript,
			fmt.Sprintf("script must start with %s, %s, %s, %s", header[0], header[1], header[2], header[3]))
	}

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return c.script, nil
}

func (c *compiler) fail(line int, sentinel error, msg string) {
	c.errs = append(c.errs, &ParseError{Path: c.path, Sheet: c.sheet, Line: line, Message: msg, Err: sentinel})
}

func (c *compiler) keyword(row Row) (Keyword, bool) {
	if strings.TrimSpace(row.Keyword) == "" {
		c.fail(row.Line, core.ErrInvalidScript, "empty keyword cell")
		return "", false
	}
	kw, ok := ParseKeyword(row.Keyword)
	if !ok {
		c.fail(row.Line, core.ErrUnknownKeyword, fmt.Sprintf("unknown keyword %q", row.Keyword))
	}
	return kw, ok
}

func (c *compiler) required(row Row, value, what string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		c.fail(row.Line, core.ErrMissingRequired, fmt.Sprintf("%s requires %s", row.Keyword, what))
		return "", false
	}
	return value, true
}

func (c *compiler) element(row Row) (Element, bool) {
	key, ok := c.required(row, row.ElementKey, "an element key")
	if !ok {
		return Element{}, false
	}
	return c.lookup(row, key, strings.TrimSpace(row.ElementName))
}

func (c *compiler) lookup(row Row, key, name string) (Element, bool) {
	loc, ok := c.locs.Resolve(key)
	if !ok {
		c.fail(row.Line, core.ErrUnknownLocator, fmt.Sprintf("locator %q not found in locator map", key))
		return Element{}, false
	}
	return Element{Name: name, Key: key, Locator: loc}, true
}

func (c *compiler) step(kw Keyword, row Row) Step {
	base := BaseStep{StepKeyword: kw, Row: row.Line, Label: strings.TrimSpace(row.ElementName)}
	data := strings.TrimSpace(row.Data)

	switch kw {
	case KeywordIdentify:
		id, ok := c.required(row, data, "a test case id")
		if !ok {
			return nil
		}
		c.script.TestCaseID = id
		return &IdentifyStep{BaseStep: base, TestCaseID: id}

	case KeywordDescribe:
		desc, ok := c.required(row, data, "a description")
		if !ok {
			return nil
		}
		c.script.Description = desc
		return &DescribeStep{BaseStep: base, Description: desc}

	case KeywordOpenBrowser:
		return &OpenBrowserStep{BaseStep: base, Browser: data}

	case KeywordNavigate:
		url, ok := c.required(row, data, "a URL")
		if !ok {
			return nil
		}
		return &NavigateStep{BaseStep: base, URL: url}

	case KeywordTypeText:
		el, ok := c.element(row)
		if !ok {
			return nil
		}
		// Text is typed verbatim, including surrounding spaces.
		return &TypeTextStep{BaseStep: base, Element: el, Text: row.Data}

	case KeywordClick:
		if el, ok := c.element(row); ok {
			return &ClickStep{BaseStep: base, Element: el}
		}

	case KeywordSelectFile:
		el, ok := c.element(row)
		path, ok2 := c.required(row, data, "a file path")
		if ok && ok2 {
			return &SelectFileStep{BaseStep: base, Element: el, Path: path}
		}

	case KeywordVerifyText:
		if el, ok := c.element(row); ok {
			return &VerifyTextStep{BaseStep: base, Element: el, Expected: data}
		}

	case KeywordCheckEnabled:
		if el, ok := c.element(row); ok {
			return &CheckEnabledStep{BaseStep: base, Element: el}
		}

	case KeywordCheckDisabled:
		if el, ok := c.element(row); ok {
			return &CheckDisabledStep{BaseStep: base, Element: el}
		}

	case KeywordCheckDisplayed:
		if el, ok := c.element(row); ok {
			return &CheckDisplayedStep{BaseStep: base, Element: el}
		}

	case KeywordSwitchFrame:
		if el, ok := c.element(row); ok {
			return &SwitchFrameStep{BaseStep: base, Element: el}
		}

	case KeywordDefaultFrame:
		return &DefaultFrameStep{BaseStep: base}

	case KeywordWait:
		return c.wait(base, row, data)

	case KeywordPickDate:
		return c.pickDate(base, row, data)

	case KeywordLogin:
		return c.login(base, row, data)

	case KeywordStepMarker:
		desc, ok := c.required(row, row.ElementName, "a step description in the element name column")
		if !ok {
			return nil
		}
		return &StepMarkerStep{BaseStep: base, Description: desc, ExpectedResult: data}
	}
	return nil
}

func (c *compiler) wait(base BaseStep, row Row, data string) Step {
	raw, ok := c.required(row, data, "a number of seconds")
	if !ok {
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		c.fail(row.Line, core.ErrInvalidScript, fmt.Sprintf("wait needs a non-negative number of seconds, got %q", raw))
		return nil
	}
	return &WaitStep{BaseStep: base, Duration: time.Duration(secs * float64(time.Second))}
}

func (c *compiler) pickDate(base BaseStep, row Row, data string) Step {
	key, okKey := c.required(row, row.ElementKey, "a calendar element key")
	literal, okData := c.required(row, data, "a date")
	if !okKey || !okData {
		return nil
	}

	target, err := calendar.ParseTarget(literal, c.opts.Years)
	if err != nil {
		c.fail(row.Line, core.ErrInvalidDate, err.Error())
		return nil
	}

	step := &PickDateStep{BaseStep: base, Key: key, Target: target}
	var missing []string
	if target.IsRange() {
		var m1, m2 []string
		step.RangeStart, m1 = c.locs.widget(key + ".start")
		step.RangeEnd, m2 = c.locs.widget(key + ".end")
		missing = append(m1, m2...)
	} else {
		step.Widget, missing = c.locs.widget(key)
	}
	if len(missing) > 0 {
		c.fail(row.Line, core.ErrUnknownLocator,
			fmt.Sprintf("calendar %q is missing locators: %s", key, strings.Join(missing, ", ")))
		return nil
	}
	return step
}

func (c *compiler) login(base BaseStep, row Row, data string) Step {
	key, ok := c.required(row, row.ElementKey, "a login form element key")
	if !ok {
		return nil
	}
	user, secret, found := strings.Cut(row.Data, "|")
	if !found || strings.TrimSpace(user) == "" {
		c.fail(row.Line, core.ErrMissingRequired, "log-in-flow data must be user|password")
		return nil
	}

	step := &LoginStep{BaseStep: base, User: strings.TrimSpace(user), Secret: secret}
	okAll := true
	for _, f := range []struct {
		suffix string
		dst    *Element
	}{
		{"username", &step.Username},
		{"password", &step.Password},
		{"submit", &step.Submit},
	} {
		el, ok := c.lookup(row, key+"."+f.suffix, f.suffix)
		if !ok {
			okAll = false
			continue
		}
		*f.dst = el
	}
	if !okAll {
		return nil
	}
	return step
}
