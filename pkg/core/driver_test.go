package core

import (
	"errors"
	"testing"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		raw  string
		want Locator
	}{
		{"//button[@id='login']", Locator{Kind: LocatorXPath, Value: "//button[@id='login']"}},
		{"xpath=//input", Locator{Kind: LocatorXPath, Value: "//input"}},
		{"css=#user", Locator{Kind: LocatorCSS, Value: "#user"}},
		{"CSS= .btn ", Locator{Kind: LocatorCSS, Value: ".btn"}},
		{"id=password", Locator{Kind: LocatorID, Value: "password"}},
		{"  //div  ", Locator{Kind: LocatorXPath, Value: "//div"}},
	}

	for _, tt := range tests {
		if got := ParseLocator(tt.raw); got != tt.want {
			t.Errorf("ParseLocator(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestLocator_String(t *testing.T) {
	loc := Locator{Kind: LocatorCSS, Value: "#go"}
	if got := loc.String(); got != "css=#go" {
		t.Errorf("String() = %q, want css=#go", got)
	}
	if !(Locator{}).IsEmpty() {
		t.Error("zero Locator should be empty")
	}
}

func TestCommandResult_Status(t *testing.T) {
	if got := Passed("ok").Status(); got != StatusPass {
		t.Errorf("Passed().Status() = %s", got)
	}
	failed := Failed(errors.New("boom"), "Click on Login")
	if got := failed.Status(); got != StatusFail {
		t.Errorf("Failed().Status() = %s", got)
	}
	if got := failed.ErrorMessage(); got != "boom" {
		t.Errorf("ErrorMessage() = %q, want boom", got)
	}

	var nilResult *CommandResult
	if nilResult.Status() != StatusFail {
		t.Error("nil result should count as a failure")
	}
}
