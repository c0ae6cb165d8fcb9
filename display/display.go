// Package display holds formatting helpers shared by the table printers.
package display

import "unicode/utf8"

// Truncate shortens s to at most maxLen characters, ending with "..." when
// there is room for it. It never splits a multi-byte character.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
