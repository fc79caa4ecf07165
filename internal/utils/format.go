package utils

import (
	"fmt"
	"time"
)

// Infinity is displayed for rates over an empty time window.
const Infinity = "∞"

// FormatDuration formats a duration in a human-readable format
// Examples: "45ms", "1.5s", "2m 30s", "1h 15m"
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes < 60 {
		if seconds > 0 {
			return fmt.Sprintf("%dm %ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	minutes = minutes % 60
	if minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}

// FormatSpeed formats count per minute over a window of seconds with one
// decimal, e.g. 51 edits in 93 seconds -> "32.9". An empty or negative
// window gives Infinity.
func FormatSpeed(count int, seconds float64) string {
	if seconds <= 0 {
		return Infinity
	}
	return fmt.Sprintf("%.1f", float64(count)*60/seconds)
}
