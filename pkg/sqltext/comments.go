package sqltext

import "strings"

// StripComments removes -- line comments and /* */ block comments, leaving
// string literals untouched, and trims the result. Block comments become a
// single space so adjacent words do not fuse; line comments keep their newline.
func StripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	n := len(text)
	for i := 0; i < n; {
		ch := text[i]
		switch {
		case ch == '\'':
			end := skipQuoted(text, i, '\'')
			b.WriteString(text[i:end])
			i = end
		case ch == '-' && i+1 < n && text[i+1] == '-':
			for i < n && text[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < n && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 4
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return strings.TrimSpace(b.String())
}
