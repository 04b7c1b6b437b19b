package parser

import (
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/sqltext"
)

// body is a piece of SQL text with its tokens and paren structure.
type body struct {
	text  string
	toks  []sqltext.Token
	depth []int // paren depth of each token; '(' and its ')' sit at the outer depth
	encl  []int // index of the innermost open paren enclosing each token, or -1
}

func newBody(text string) *body {
	toks := sqltext.Tokenize(text)
	b := &body{
		text:  text,
		toks:  toks,
		depth: make([]int, len(toks)),
		encl:  make([]int, len(toks)),
	}
	var stack []int
	for i, t := range toks {
		if t.IsPunct(')') && len(stack) > 0 {
			stack = stack[:len(stack)-1]
		}
		b.depth[i] = len(stack)
		b.encl[i] = -1
		if len(stack) > 0 {
			b.encl[i] = stack[len(stack)-1]
		}
		if t.IsPunct('(') {
			stack = append(stack, i)
		}
	}
	return b
}

func (b *body) len() int { return len(b.toks) }

// is reports whether token i is the given keyword.
func (b *body) is(i int, keyword string) bool {
	return i >= 0 && i < len(b.toks) && b.toks[i].Is(keyword)
}

// punct reports whether token i is the given punctuation.
func (b *body) punct(i int, ch byte) bool {
	return i >= 0 && i < len(b.toks) && b.toks[i].IsPunct(ch)
}

// matchParen returns the index of the ')' closing the '(' at i, or len(toks)
// when it never closes.
func (b *body) matchParen(i int) int {
	depth := 0
	for j := i; j < len(b.toks); j++ {
		switch {
		case b.toks[j].IsPunct('('):
			depth++
		case b.toks[j].IsPunct(')'):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(b.toks)
}

// skipParen returns the index after the group opened at i.
func (b *body) skipParen(i int) int {
	return min(b.matchParen(i)+1, len(b.toks))
}

// chain reads a dotted name starting at i and returns its cleaned parts and
// the index after its last part.
func (b *body) chain(i int) ([]string, int) {
	if i >= len(b.toks) || !b.toks[i].IsIdent() {
		return nil, i
	}
	parts := []string{b.toks[i].Value()}
	j := i + 1
	for j+1 < len(b.toks) && b.toks[j].IsPunct('.') && b.toks[j+1].IsIdent() {
		parts = append(parts, b.toks[j+1].Value())
		j += 2
	}
	return parts, j
}

// qualified joins the parts of a dotted name. A name with an empty part,
// such as "" or "".t, names nothing and yields "".
func qualified(parts []string) string {
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}
	return strings.Join(parts, ".")
}

// span returns the source text covering tokens [from, to).
func (b *body) span(from, to int) string {
	to = min(to, len(b.toks))
	if from < 0 || from >= to {
		return ""
	}
	return b.text[b.toks[from].Pos:b.toks[to-1].End]
}

// rest returns the source text from token i to the end.
func (b *body) rest(i int) string {
	if i >= len(b.toks) {
		return ""
	}
	return b.text[b.toks[i].Pos:]
}

// nameList reads the comma-separated names inside the group opened at i.
func (b *body) nameList(i int) []string {
	if !b.punct(i, '(') {
		return nil
	}
	var out []string
	for _, part := range sqltext.SplitTopLevel(b.span(i+1, b.matchParen(i))) {
		if name := sqltext.CleanIdentifier(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// insideFromCaller reports whether token i sits directly in the argument list
// of EXTRACT, SUBSTRING and friends, where FROM is not a clause.
func (b *body) insideFromCaller(i int) bool {
	open := b.encl[i]
	if open < 1 {
		return false
	}
	prev := b.toks[open-1]
	return prev.Kind == sqltext.TokenIdent && sqltext.IsFromCaller(prev.Text)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
