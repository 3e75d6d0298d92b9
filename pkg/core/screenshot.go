package core

import (
	"fmt"
	"strings"
)

// ScreenshotStrategy controls when evidence is captured after an action.
type ScreenshotStrategy string

// Screenshot strategies.
const (
	ScreenshotAlways  ScreenshotStrategy = "always"
	ScreenshotOnError ScreenshotStrategy = "on-error"
	ScreenshotNever   ScreenshotStrategy = "never"
)

// ParseScreenshotStrategy parses a configured strategy string.
// Matching is case-insensitive and accepts "on_error"/"onerror".
func ParseScreenshotStrategy(s string) (ScreenshotStrategy, error) {
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)) {
	case "always":
		return ScreenshotAlways, nil
	case "onerror":
		return ScreenshotOnError, nil
	case "never":
		return ScreenshotNever, nil
	default:
		return "", ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown screenshot strategy %q", s))
	}
}

// Normalize maps never to on-error: failure evidence is always kept.
func (s ScreenshotStrategy) Normalize() ScreenshotStrategy {
	if s == ScreenshotNever {
		return ScreenshotOnError
	}
	return s
}

// Decide reports whether a screenshot is captured for an outcome.
//
//	strategy  | Pass | Fail
//	always    | yes  | yes
//	on-error  | no   | yes
//	never     | no   | yes
//
// Unknown strategies behave like always.
func Decide(strategy ScreenshotStrategy, status Status) bool {
	if status == StatusFail {
		return true
	}
	switch strategy {
	case ScreenshotOnError, ScreenshotNever:
		return false
	default:
		return true
	}
}
