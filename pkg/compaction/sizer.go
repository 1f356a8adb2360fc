package compaction

import "unicode/utf8"

// Sizer measures a fragment's text. Sizes must be non-negative integers so
// that compaction stays monotonic in its budget.
type Sizer func(text string) int

// TokenSizer approximates tokens as one per four runes, rounded up.
func TokenSizer(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// ByteSizer measures text in bytes.
func ByteSizer(text string) int {
	return len(text)
}
