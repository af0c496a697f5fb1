// Package textnorm canonicalizes book titles and author names for comparison.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns s in a form suitable for similarity comparison.
// Width variants are unified with NFKC, Latin letters are case folded, and
// whitespace, punctuation and symbols are dropped. CJK characters, kana and
// digits are kept as-is.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	// Casers may keep state, so each call gets its own
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r), unicode.IsControl(r):
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// seriesSuffix matches one trailing volume marker. StripSeriesSuffix applies it
// repeatedly so "上巻 (2)" style endings are removed entirely.
var seriesSuffix = regexp.MustCompile(`(?i)[\s　:：\-－‐・]*(?:` +
	`[(（\[［]\s*(?:第\s*)?[0-9０-９一二三四五六七八九十]+\s*(?:巻|集|部)?\s*[)）\]］]` +
	`|[(（]\s*(?:上巻|中巻|下巻|前編|後編|上|中|下)\s*[)）]` +
	`|第\s*[0-9０-９一二三四五六七八九十百]+\s*(?:巻|集|部|話)` +
	`|\b(?:vol|volume|part|no|book)\.?\s*[0-9０-９]+` +
	`|[0-9０-９]+\s*巻` +
	`|[0-9０-９]+` +
	`|上巻|中巻|下巻|前編|後編|完結編|上|中|下` +
	`|[ⅠⅡⅢⅣⅤⅥⅦⅧⅨⅩ]` +
	`)\s*$`)

// StripSeriesSuffix removes trailing numerals and volume markers so that
// "ドラゴンたいじ2" and "ドラゴンたいじ" share a base title. If nothing would
// remain, s is returned unchanged.
func StripSeriesSuffix(s string) string {
	trimmed := strings.TrimSpace(s)
	base := trimmed
	for i := 0; i < 4; i++ {
		next := strings.TrimSpace(seriesSuffix.ReplaceAllString(base, ""))
		if next == base {
			break
		}
		base = next
	}
	if Normalize(base) == "" {
		return s
	}
	return base
}

// HasSeriesSuffix reports whether s ends with a volume marker.
func HasSeriesSuffix(s string) bool {
	return Normalize(StripSeriesSuffix(s)) != Normalize(s)
}

// CleanISBN removes hyphens and whitespace and upper-cases a trailing check digit X.
func CleanISBN(isbn string) string {
	isbn = norm.NFKC.String(strings.TrimSpace(isbn))
	var b strings.Builder
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return len([]rune(s))
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
