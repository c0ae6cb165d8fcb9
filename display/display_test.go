package display

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"The Fellowship of the Ring", 10, "The Fel..."},
		{"The", 2, "Th"},
		{"Les Misérables", 9, "Les Mi..."},
		{"Les Misérables", 14, "Les Misérables"},
		{"百年の孤独と夜の図書館", 6, "百年の..."},
		{"吾輩は猫である", 2, "吾輩"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.maxLen), "Truncate(%q, %d)", tt.in, tt.maxLen)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		maxLen := rapid.IntRange(0, 60).Draw(rt, "maxLen")

		got := Truncate(s, maxLen)
		if utf8.ValidString(s) && !utf8.ValidString(got) {
			rt.Fatalf("Truncate(%q, %d) = %q is not valid UTF-8", s, maxLen, got)
		}
		if n := utf8.RuneCountInString(got); n > maxLen {
			rt.Fatalf("Truncate(%q, %d) has %d characters", s, maxLen, n)
		}
	})
}
