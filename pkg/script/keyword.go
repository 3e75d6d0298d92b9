// Package script handles loading and representation of keyword test scripts.
package script

import "strings"

// Keyword identifies what a step does. The vocabulary is closed.
type Keyword string

// Keyword constants.
const (
	// Script header
	KeywordIdentify    Keyword = "identify-test-case"
	KeywordDescribe    Keyword = "describe-test-case"
	KeywordOpenBrowser Keyword = "open-browser"
	KeywordNavigate    Keyword = "navigate-to-url"

	// Interaction
	KeywordTypeText     Keyword = "type-text"
	KeywordClick        Keyword = "click"
	KeywordSelectFile   Keyword = "select-file"
	KeywordPickDate     Keyword = "pick-calendar-date"
	KeywordWait         Keyword = "wait"
	KeywordLogin        Keyword = "log-in-flow"
	KeywordSwitchFrame  Keyword = "switch-to-frame"
	KeywordDefaultFrame Keyword = "switch-to-default-frame"

	// Assertions
	KeywordVerifyText     Keyword = "verify-text"
	KeywordCheckEnabled   Keyword = "check-enabled"
	KeywordCheckDisabled  Keyword = "check-disabled"
	KeywordCheckDisplayed Keyword = "check-displayed"

	// Report structure
	KeywordStepMarker Keyword = "step-marker"
)

// Keywords lists the vocabulary in documentation order.
var Keywords = []Keyword{
	KeywordIdentify, KeywordDescribe, KeywordOpenBrowser, KeywordNavigate,
	KeywordTypeText, KeywordClick, KeywordSelectFile, KeywordVerifyText,
	KeywordPickDate, KeywordWait, KeywordLogin,
	KeywordCheckEnabled, KeywordCheckDisabled, KeywordCheckDisplayed,
	KeywordStepMarker, KeywordSwitchFrame, KeywordDefaultFrame,
}

// header is the mandatory opening sequence of every script.
var header = []Keyword{KeywordIdentify, KeywordDescribe, KeywordOpenBrowser, KeywordNavigate}

var aliases = map[string]Keyword{
	"testcaseid":          KeywordIdentify,
	"tcid":                KeywordIdentify,
	"testcasedescription": KeywordDescribe,
	"navigate":            KeywordNavigate,
	"openurl":             KeywordNavigate,
	"entertext":           KeywordTypeText,
	"type":                KeywordTypeText,
	"upload":              KeywordSelectFile,
	"selectdate":          KeywordPickDate,
	"login":               KeywordLogin,
	"step":                KeywordStepMarker,
}

var canonical = func() map[string]Keyword {
	m := make(map[string]Keyword, len(Keywords)+len(aliases))
	for _, k := range Keywords {
		m[normalizeName(string(k))] = k
	}
	for alias, k := range aliases {
		m[alias] = k
	}
	return m
}()

// ParseKeyword resolves a keyword cell. Case, spaces, '_' and '-' are ignored.
func ParseKeyword(cell string) (Keyword, bool) {
	k, ok := canonical[normalizeName(cell)]
	return k, ok
}

// RecordsSubStep reports whether executing k appends a sub-step to the report.
func (k Keyword) RecordsSubStep() bool {
	switch k {
	case KeywordIdentify, KeywordDescribe, KeywordStepMarker:
		return false
	default:
		return true
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "").Replace(strings.TrimSpace(s)))
}
