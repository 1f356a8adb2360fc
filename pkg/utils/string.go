package utils

import "strings"

// Truncate shortens s to at most maxLen runes, ending in "..." when cut.
// Newlines are folded to spaces so the result fits on one line.
func Truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
