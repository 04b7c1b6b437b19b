package sqltext

import "strings"

// SplitStatements splits comment-free SQL into statements on semicolons
// outside quoted text and on T-SQL batch separators (a line holding only GO).
// Statements are trimmed and empty ones discarded.
func SplitStatements(text string) []string {
	var out []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	lineStart := true
	n := len(text)
	for i := 0; i < n; i++ {
		if lineStart {
			lineStart = false
			if end, ok := batchSeparator(text, i); ok {
				emit(text[start:i])
				start = end
				i = end - 1
				lineStart = true
				continue
			}
		}
		switch ch := text[i]; ch {
		case '\'', '"', '`':
			i = skipQuoted(text, i, ch) - 1
		case ';':
			emit(text[start:i])
			start = i + 1
		case '\n':
			lineStart = true
		}
	}
	emit(text[start:])
	return out
}

// batchSeparator reports whether the line starting at i consists of GO alone
// and returns the offset after its line break.
func batchSeparator(text string, i int) (int, bool) {
	end := strings.IndexByte(text[i:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += i
	}
	if !strings.EqualFold(strings.TrimSpace(text[i:end]), "GO") {
		return 0, false
	}
	if end < len(text) {
		end++
	}
	return end, true
}
