package core

import "testing"

func TestDecide_Table(t *testing.T) {
	tests := []struct {
		strategy ScreenshotStrategy
		status   Status
		want     bool
	}{
		{ScreenshotAlways, StatusPass, true},
		{ScreenshotAlways, StatusFail, true},
		{ScreenshotOnError, StatusPass, false},
		{ScreenshotOnError, StatusFail, true},
		{ScreenshotNever, StatusPass, false},
		{ScreenshotNever, StatusFail, true},
		{ScreenshotStrategy("bogus"), StatusPass, true},
	}

	for _, tt := range tests {
		if got := Decide(tt.strategy, tt.status); got != tt.want {
			t.Errorf("Decide(%s, %s) = %v, want %v", tt.strategy, tt.status, got, tt.want)
		}
	}
}

func TestDecide_NeverEqualsOnError(t *testing.T) {
	for _, status := range []Status{StatusPass, StatusFail} {
		if Decide(ScreenshotNever, status) != Decide(ScreenshotOnError, status) {
			t.Errorf("never and on-error disagree for %s", status)
		}
	}
}

func TestScreenshotStrategy_Normalize(t *testing.T) {
	if got := ScreenshotNever.Normalize(); got != ScreenshotOnError {
		t.Errorf("Normalize(never) = %s, want on-error", got)
	}
	if got := ScreenshotAlways.Normalize(); got != ScreenshotAlways {
		t.Errorf("Normalize(always) = %s, want always", got)
	}
}

func TestParseScreenshotStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    ScreenshotStrategy
		wantErr bool
	}{
		{"always", ScreenshotAlways, false},
		{"ALWAYS", ScreenshotAlways, false},
		{"on-error", ScreenshotOnError, false},
		{"on_error", ScreenshotOnError, false},
		{"OnError", ScreenshotOnError, false},
		{"never", ScreenshotNever, false},
		{"sometimes", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseScreenshotStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScreenshotStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScreenshotStrategy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
