package strx

import "strings"

// Coalesce returns s if non-empty, otherwise d.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// Fit truncates s to n bytes or right-pads it with spaces to exactly n.
func Fit(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// Lines splits a display message on '\n' and keeps at most max rows.
func Lines(msg string, max int) []string {
	rows := strings.Split(msg, "\n")
	if max > 0 && len(rows) > max {
		rows = rows[:max]
	}
	return rows
}
