package script

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

var testLocators = LocatorMap{
	"login.button":        "css=#login",
	"search.box":          "//input[@name='q']",
	"upload":              "id=file",
	"frame":               "css=iframe#pay",
	"checkin.header":      "//div[@class='month']",
	"checkin.previous":    "//button[@class='prev']",
	"checkin.next":        "//button[@class='next']",
	"checkin.days":        "//td[@class='day']",
	"stay.start.header":   "css=.start .month",
	"stay.start.previous": "css=.start .prev",
	"stay.start.next":     "css=.start .next",
	"stay.start.days":     "css=.start td",
	"stay.end.header":     "css=.end .month",
	"stay.end.previous":   "css=.end .prev",
	"stay.end.next":       "css=.end .next",
	"stay.end.days":       "css=.end td",
	"signin.username":     "id=user",
	"signin.password":     "id=pass",
	"signin.submit":       "css=button[type=submit]",
}

func headerRows() []Row {
	return []Row{
		{Line: 2, Keyword: "Identify Test Case", Data: "TC-001"},
		{Line: 3, Keyword: "describe_test_case", Data: "Login works"},
		{Line: 4, Keyword: "OpenBrowser", Data: "chrome"},
		{Line: 5, Keyword: "navigate-to-url", Data: "https://example.com"},
	}
}

func TestCompile_AllKeywords(t *testing.T) {
	rows := append(headerRows(),
		Row{Line: 6, Keyword: "step-marker", ElementName: "Log in", Data: "User sees dashboard"},
		Row{Line: 7, Keyword: "type-text", ElementName: "Search", ElementKey: "search.box", Data: " shoes "},
		Row{Line: 8, Keyword: "click", ElementName: "Login", ElementKey: "login.button"},
		Row{Line: 9, Keyword: "select-file", ElementKey: "upload", Data: "/tmp/a.pdf"},
		Row{Line: 10, Keyword: "verify-text", ElementKey: "login.button", Data: "Log in"},
		Row{Line: 11, Keyword: "pick-calendar-date", ElementKey: "checkin", Data: "7 March 2024"},
		Row{Line: 12, Keyword: "pick-calendar-date", ElementKey: "stay", Data: "1 Jan 2024 to 5 Jan 2024"},
		Row{Line: 13, Keyword: "wait", Data: "1.5"},
		Row{Line: 14, Keyword: "login", ElementKey: "signin", Data: "alice|s3cret|x"},
		Row{Line: 15, Keyword: "check-enabled", ElementKey: "login.button"},
		Row{Line: 16, Keyword: "check-disabled", ElementKey: "login.button"},
		Row{Line: 17, Keyword: "check-displayed", ElementKey: "login.button"},
		Row{Line: 18, Keyword: "switch-to-frame", ElementKey: "frame"},
		Row{Line: 19, Keyword: "switch-to-default-frame"},
	)

	s, err := Compile("login.xlsx", "Sheet1", rows, testLocators, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "TC-001", s.TestCaseID)
	assert.Equal(t, "Login works", s.Description)
	assert.Equal(t, "login.xlsx[Sheet1]", s.Name())
	require.Len(t, s.Steps, len(rows))

	for i, step := range s.Steps {
		assert.Equal(t, rows[i].Line, step.Line())
	}

	typ := s.Steps[5].(*TypeTextStep)
	assert.Equal(t, " shoes ", typ.Text)
	assert.Equal(t, core.Locator{Kind: core.LocatorXPath, Value: "//input[@name='q']"}, typ.Element.Locator)

	single := s.Steps[9].(*PickDateStep)
	assert.False(t, single.Target.IsRange())
	assert.Equal(t, "//td[@class='day']", single.Widget.Days.Value)

	rng := s.Steps[10].(*PickDateStep)
	assert.True(t, rng.Target.IsRange())
	assert.Equal(t, ".start .month", rng.RangeStart.Header.Value)
	assert.Equal(t, ".end td", rng.RangeEnd.Days.Value)

	assert.Equal(t, 1500*time.Millisecond, s.Steps[11].(*WaitStep).Duration)

	login := s.Steps[12].(*LoginStep)
	assert.Equal(t, "alice", login.User)
	assert.Equal(t, "s3cret|x", login.Secret)
	assert.NotContains(t, login.Describe(), "s3cret")
	assert.Equal(t, core.LocatorID, login.Username.Locator.Kind)

	marker := s.Steps[4].(*StepMarkerStep)
	assert.Equal(t, "Log in", marker.Describe())
	assert.Equal(t, "User sees dashboard", marker.ExpectedResult)
}

func TestCompile_HeaderOrder(t *testing.T) {
	rows := headerRows()
	rows[2] = Row{Line: 4, Keyword: "click", ElementKey: "login.button"}

	_, err := Compile("a.yaml", "", rows, testLocators, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidScript)
	assert.Contains(t, err.Error(), "a.yaml:4: row 3 must be open-browser")
}

func TestCompile_TooShort(t *testing.T) {
	_, err := Compile("a.yaml", "", headerRows()[:2], testLocators, DefaultOptions())
	assert.ErrorIs(t, err, core.ErrInvalidScript)

	_, err = Compile("a.yaml", "", nil, testLocators, DefaultOptions())
	assert.ErrorIs(t, err, core.ErrInvalidScript)
}

func TestCompile_CollectsEveryProblem(t *testing.T) {
	rows := append(headerRows(),
		Row{Line: 6, Keyword: "hover", ElementKey: "login.button"},
		Row{Line: 7, Keyword: "click", ElementKey: "missing.key"},
		Row{Line: 8, Keyword: "", ElementName: "orphan"},
		Row{Line: 9, Keyword: "pick-calendar-date", ElementKey: "checkin", Data: "31 February 2024"},
		Row{Line: 10, Keyword: "pick-calendar-date", ElementKey: "nocal", Data: "1 March 2024"},
		Row{Line: 11, Keyword: "wait", Data: "-1"},
		Row{Line: 12, Keyword: "login", ElementKey: "signin", Data: "nobar"},
		Row{Line: 13, Keyword: "select-file", ElementKey: "upload"},
		Row{Line: 14, Keyword: "step-marker"},
	)

	_, err := Compile("bad.yaml", "", rows, testLocators, DefaultOptions())
	require.Error(t, err)

	for _, sentinel := range []error{
		core.ErrUnknownKeyword,
		core.ErrUnknownLocator,
		core.ErrInvalidScript,
		core.ErrInvalidDate,
		core.ErrMissingRequired,
	} {
		assert.ErrorIs(t, err, sentinel)
	}

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 9)

	for _, line := range []string{":6:", ":7:", ":8:", ":9:", ":10:", ":11:", ":12:", ":13:", ":14:"} {
		assert.Contains(t, err.Error(), line)
	}
	assert.True(t, strings.Contains(err.Error(), "nocal.header"))
}

func TestCompile_YearWhitelist(t *testing.T) {
	rows := append(headerRows(), Row{Line: 6, Keyword: "pick-calendar-date", ElementKey: "checkin", Data: "1 March 2150"})
	_, err := Compile("a.yaml", "", rows, testLocators, DefaultOptions())
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestParseError_Format(t *testing.T) {
	err := &ParseError{Path: "s.xlsx", Sheet: "Login", Line: 3, Message: "boom", Err: core.ErrInvalidScript}
	assert.Equal(t, "s.xlsx[Login]:3: boom", err.Error())
	assert.ErrorIs(t, err, core.ErrInvalidScript)

	err = &ParseError{Path: "s.yaml", Message: "boom"}
	assert.Equal(t, "s.yaml: boom", err.Error())
}
