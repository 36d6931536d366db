package format

import (
	"fmt"
	"time"
)

// Elapsed formats a run duration for human display.
// Examples: "1h30m", "2m05s", "1.5s", "340ms"
func Elapsed(d time.Duration) string {
	if d >= time.Hour {
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes > 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", d/time.Minute, (d%time.Minute)/time.Second)
	}
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}

// Percent formats a ratio as a whole percentage. A zero total reads as 100%,
// matching an empty run with nothing to fail.
func Percent(part, total int) string {
	if total == 0 {
		return "100%"
	}
	return fmt.Sprintf("%d%%", part*100/total)
}

// Count formats a number with a unit, pluralized with a trailing s.
// Examples: "1 sentence", "12 sentences"
func Count(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
