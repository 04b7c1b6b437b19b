package sqltext

import "strings"

var identQuoteStripper = strings.NewReplacer(`"`, "", "`", "", "[", "", "]", "")

// CleanIdentifier removes quoting and bracket characters and surrounding space.
// It never fails: `[dbo].[Orders]` becomes `dbo.Orders`, `"x"` becomes `x`.
func CleanIdentifier(raw string) string {
	return strings.TrimSpace(identQuoteStripper.Replace(raw))
}

// LastSegment returns the part of a dotted name after the final dot.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// SplitTopLevel splits text on commas that are not nested inside parentheses
// or quotes. Segments are trimmed; a trailing empty segment is dropped.
// Excess closing parentheses clamp the depth at zero; excess opening ones keep
// everything after them in the final segment.
func SplitTopLevel(text string) []string {
	var parts []string
	depth := 0
	start := 0
	n := len(text)
	for i := 0; i < n; i++ {
		switch ch := text[i]; ch {
		case '\'', '"', '`':
			i = skipQuoted(text, i, ch) - 1
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(text[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(text[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}

// MatchParen returns the index of the ')' matching the '(' at open, skipping
// quoted text. If the parentheses never balance it returns len(s).
func MatchParen(s string, open int) int {
	depth := 0
	n := len(s)
	for i := open; i < n; i++ {
		switch ch := s[i]; ch {
		case '\'', '"', '`':
			i = skipQuoted(s, i, ch) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return n
}

// Unwrap removes one pair of parentheses enclosing the whole of s.
func Unwrap(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && MatchParen(s, 0) == len(s)-1 {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
