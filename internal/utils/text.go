package utils

import "strings"

// TruncateRunes cuts s to at most maxLen characters. It never splits a
// multi-byte character. A non-positive maxLen leaves s untouched.
func TruncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i]
		}
		n++
	}
	return s
}

// EscapeForLogging shortens text and escapes control characters so that it
// fits on a single log line.
func EscapeForLogging(text string, maxLen int) string {
	if short := TruncateRunes(text, maxLen); short != text {
		text = short + "..."
	}

	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")

	return text
}
