// Package resolver matches user-typed names against record names.
package resolver

import (
	"strings"
	"unicode"
)

const (
	minAcronymPrefix   = 2
	minOverlapQueryLen = 5
	minTokenLen        = 2
	minOverlapRatio    = 0.5
)

// Matches reports whether query refers to candidate. It is case-insensitive
// and never fails; empty input on either side returns false.
func Matches(query, candidate string) bool {
	q := Normalize(query)
	c := Normalize(candidate)
	if q == "" || c == "" {
		return false
	}

	if strings.Contains(c, q) || strings.Contains(q, c) {
		return true
	}

	if matchAcronym(q, c) {
		return true
	}

	if len(q) > minOverlapQueryLen {
		return tokenOverlap(q, c) >= minOverlapRatio
	}
	return false
}

// MatchesAny reports whether query matches at least one of the candidates.
func MatchesAny(query string, candidates ...string) bool {
	for _, c := range candidates {
		if Matches(query, c) {
			return true
		}
	}
	return false
}

// Normalize lowercases s, drops punctuation and symbols and collapses
// whitespace.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func initials(normalized string) string {
	var b strings.Builder
	for _, w := range strings.Fields(normalized) {
		for _, r := range w {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}

func matchAcronym(q, c string) bool {
	compact := strings.ReplaceAll(q, " ", "")
	ini := initials(c)
	if compact == ini {
		return true
	}
	return len([]rune(compact)) >= minAcronymPrefix && strings.HasPrefix(ini, compact)
}

func tokens(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) > minTokenLen {
			set[w] = struct{}{}
		}
	}
	return set
}

func tokenOverlap(q, c string) float64 {
	qt := tokens(q)
	if len(qt) == 0 {
		return 0
	}
	ct := tokens(c)
	shared := 0
	for w := range qt {
		if _, ok := ct[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(qt))
}
