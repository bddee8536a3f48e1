package tui

import (
	"strconv"
	"strings"
	"time"
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// truncate shortens s to at most width runes, ellipsized.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

// padOrTruncate forces s to exactly width runes.
func padOrTruncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > width {
		return truncate(s, width)
	}
	return s + spaces(width-len(runes))
}

// relativeTime renders a compact age for list rows.
func relativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	case d < 7*24*time.Hour:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	default:
		return t.Format("Jan 2")
	}
}

// visibleWindow picks the [start, end) slice of count rows that keeps
// selected in view within height rows.
func visibleWindow(count, selected, height int) (int, int) {
	if height <= 0 || count <= height {
		return 0, count
	}
	start := selected - height/2
	if start < 0 {
		start = 0
	}
	if start+height > count {
		start = count - height
	}
	return start, start + height
}

// lastWindow returns the trailing slice of lines that fits height rows,
// shifted up by scroll.
func lastWindow(lines []string, height, scroll int) []string {
	if height <= 0 {
		return nil
	}
	end := len(lines) - scroll
	if end > len(lines) {
		end = len(lines)
	}
	if end < 0 {
		end = 0
	}
	start := end - height
	if start < 0 {
		start = 0
	}
	return lines[start:end]
}
