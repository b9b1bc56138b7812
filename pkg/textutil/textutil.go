// Package textutil provides small, total text-processing helpers shared
// across adapters and the discussion engine.
package textutil

import "regexp"

// ansiPattern matches the C1 CSI escape range; compiled once at package
// init since it is read-only and shared across goroutines.
var ansiPattern = regexp.MustCompile("\x1b(?:[@-Z\\\\-_]|\\[[0-?]*[ -/]*[@-~])")

// StripANSI removes all ANSI escape sequences from text. Idempotent:
// StripANSI(StripANSI(s)) == StripANSI(s).
func StripANSI(text string) string {
	if text == "" {
		return text
	}
	return ansiPattern.ReplaceAllString(text, "")
}

// Truncate trims text to at most maxLength characters (by rune count),
// appending suffix only if truncation actually occurred. Returns text
// unchanged when len(text) <= maxLength.
func Truncate(text string, maxLength int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength < 0 {
		maxLength = 0
	}
	return string(runes[:maxLength]) + suffix
}
