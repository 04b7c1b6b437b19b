package sqltext

import "strings"

// TokenKind classifies a token.
type TokenKind int

const (
	// TokenIdent is a bare identifier or keyword.
	TokenIdent TokenKind = iota
	// TokenQuotedIdent is a "quoted", `quoted` or [bracketed] identifier.
	TokenQuotedIdent
	// TokenNumber is a numeric literal.
	TokenNumber
	// TokenString is a string literal (single-quoted or dollar-quoted).
	TokenString
	// TokenPunct is one of ( ) , . ;
	TokenPunct
	// TokenOperator is any other symbol run (+, ::, ||, >=, *, ...).
	TokenOperator
)

// Token is a lexical unit with its byte span in the input.
type Token struct {
	Kind TokenKind
	Text string // raw text as written
	Pos  int    // start offset
	End  int    // end offset (exclusive)
}

// IsIdent reports whether the token names something (bare or quoted).
func (t Token) IsIdent() bool {
	return t.Kind == TokenIdent || t.Kind == TokenQuotedIdent
}

// Value returns the identifier with quoting removed.
func (t Token) Value() string {
	if t.Kind == TokenQuotedIdent {
		return CleanIdentifier(t.Text)
	}
	return t.Text
}

// Is reports whether the token is the given unquoted keyword (case-insensitive).
func (t Token) Is(keyword string) bool {
	return t.Kind == TokenIdent && strings.EqualFold(t.Text, keyword)
}

// IsPunct reports whether the token is the given punctuation character.
func (t Token) IsPunct(ch byte) bool {
	return t.Kind == TokenPunct && len(t.Text) == 1 && t.Text[0] == ch
}

// IsKeyword reports whether the token is an unquoted reserved keyword.
func (t Token) IsKeyword() bool {
	return t.Kind == TokenIdent && IsKeyword(t.Text)
}

// IsLiteral reports whether the token is a number or string literal.
func (t Token) IsLiteral() bool {
	return t.Kind == TokenNumber || t.Kind == TokenString
}

const operatorChars = "+-*/%<>=!|&^~:?"

// Tokenize splits input into tokens. Whitespace and comments are dropped.
// Unterminated strings and quoted identifiers run to the end of input.
func Tokenize(input string) []Token {
	var tokens []Token
	n := len(input)
	i := 0
	for i < n {
		ch := input[i]
		start := i
		switch {
		case isSpace(ch):
			i++
			continue
		case ch == '-' && i+1 < n && input[i+1] == '-':
			for i < n && input[i] != '\n' {
				i++
			}
			continue
		case ch == '/' && i+1 < n && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 4
			}
			continue
		case ch == '\'':
			i = skipQuoted(input, i, '\'')
			tokens = append(tokens, Token{Kind: TokenString, Text: input[start:i], Pos: start, End: i})
			continue
		case ch == '"' || ch == '`':
			i = skipQuoted(input, i, ch)
			tokens = append(tokens, Token{Kind: TokenQuotedIdent, Text: input[start:i], Pos: start, End: i})
			continue
		case ch == '[' && isBracketIdent(input, i):
			i = skipQuoted(input, i, ']')
			tokens = append(tokens, Token{Kind: TokenQuotedIdent, Text: input[start:i], Pos: start, End: i})
			continue
		case ch == '$' && i+1 < n && (input[i+1] == '$' || isIdentStart(input[i+1])):
			if end, ok := dollarQuoted(input, i); ok {
				i = end
				tokens = append(tokens, Token{Kind: TokenString, Text: input[start:i], Pos: start, End: i})
				continue
			}
			i++
			tokens = append(tokens, Token{Kind: TokenOperator, Text: "$", Pos: start, End: i})
			continue
		case isDigit(ch) || (ch == '.' && i+1 < n && isDigit(input[i+1]) && !prevIsName(tokens, start)):
			i = scanNumber(input, i)
			tokens = append(tokens, Token{Kind: TokenNumber, Text: input[start:i], Pos: start, End: i})
			continue
		case isIdentStart(ch):
			for i < n && isIdentPart(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: input[start:i], Pos: start, End: i})
			continue
		case strings.IndexByte("(),.;", ch) >= 0:
			i++
			tokens = append(tokens, Token{Kind: TokenPunct, Text: input[start:i], Pos: start, End: i})
			continue
		case ch == '*':
			// * stays a single token so wildcards survive next to other operators.
			i++
			tokens = append(tokens, Token{Kind: TokenOperator, Text: "*", Pos: start, End: i})
			continue
		case strings.IndexByte(operatorChars, ch) >= 0:
			for i < n && input[i] != '*' && strings.IndexByte(operatorChars, input[i]) >= 0 {
				if i > start && input[i] == '-' && i+1 < n && input[i+1] == '-' {
					break
				}
				i++
			}
			tokens = append(tokens, Token{Kind: TokenOperator, Text: input[start:i], Pos: start, End: i})
			continue
		default:
			i++
			tokens = append(tokens, Token{Kind: TokenOperator, Text: input[start:i], Pos: start, End: i})
		}
	}
	return tokens
}

// skipQuoted returns the offset just past the quote that closes the one at i.
// A doubled closing quote is an escape.
func skipQuoted(s string, i int, closer byte) int {
	n := len(s)
	i++
	for i < n {
		if s[i] == closer {
			if i+1 < n && s[i+1] == closer && closer != ']' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

// isBracketIdent distinguishes [identifier] from an array subscript.
func isBracketIdent(s string, i int) bool {
	if i+1 >= len(s) {
		return false
	}
	next := s[i+1]
	return next != ']' && next != ':' && !isDigit(next) && !isSpace(next)
}

// dollarQuoted scans a Postgres $tag$...$tag$ string starting at i.
func dollarQuoted(s string, i int) (int, bool) {
	j := i + 1
	for j < len(s) && s[j] != '$' {
		if !isIdentPart(s[j]) {
			return 0, false
		}
		j++
	}
	if j >= len(s) {
		return 0, false
	}
	tag := s[i : j+1]
	end := strings.Index(s[j+1:], tag)
	if end < 0 {
		return len(s), true
	}
	return j + 1 + end + len(tag), true
}

func scanNumber(s string, i int) int {
	n := len(s)
	for i < n && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < n && isDigit(s[j]) {
			i = j
			for i < n && isDigit(s[i]) {
				i++
			}
		}
	}
	return i
}

// prevIsName reports whether the previous token ends exactly at pos and names
// something, so ".5" after "t" is a member access rather than a number.
func prevIsName(tokens []Token, pos int) bool {
	if len(tokens) == 0 {
		return false
	}
	last := tokens[len(tokens)-1]
	return last.End == pos && (last.IsIdent() || last.IsPunct(')'))
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '@' || ch == '#' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}
