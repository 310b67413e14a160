package extract

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// normalizeWhitespace trims and collapses whitespace to single spaces.
func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// wordSet is a case-insensitive set of words.
type wordSet map[string]struct{}

func newWordSet(words ...string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

func (s wordSet) has(w string) bool {
	_, ok := s[strings.ToLower(w)]
	return ok
}

// stripHandle removes a leading "@".
func stripHandle(h string) string { return strings.TrimPrefix(h, "@") }

func sameHandle(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(stripHandle(a), stripHandle(b))
}
