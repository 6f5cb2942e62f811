package pythonic

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer turns region text into tokens. Whitespace is skipped, strings are
// taken verbatim up to the next matching quote. Anything at the very end of
// the input that could still grow into a different token (an open string,
// a partial marker, a dangling exponent) is reported as TokenIncomplete so
// incremental callers can wait for more text.
type Lexer struct {
	src     string
	pos     int
	markers Markers
}

// NewLexer returns a lexer over src. Markers with empty strings are never
// recognized.
func NewLexer(src string, markers Markers) *Lexer {
	return &Lexer{src: src, markers: markers}
}

// Tokenize lexes src completely. The returned slice always ends with a
// TokenEOF or a TokenIncomplete.
func Tokenize(src string, markers Markers) []Token {
	l := NewLexer(src, markers)
	toks := make([]Token, 0, len(src)/4+1)
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.terminal() {
			return toks
		}
	}
}

// Next returns the next token
func (l *Lexer) Next() Token {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEOF, Start: len(l.src), End: len(l.src)}
	}

	rest := l.src[l.pos:]
	if tok, ok := l.marker(rest); ok {
		return tok
	}

	c := l.src[l.pos]
	switch c {
	case '(':
		return l.single(TokenLParen)
	case ')':
		return l.single(TokenRParen)
	case '[':
		return l.single(TokenLBracket)
	case ']':
		return l.single(TokenRBracket)
	case '{':
		return l.single(TokenLBrace)
	case '}':
		return l.single(TokenRBrace)
	case ',':
		return l.single(TokenComma)
	case '=':
		return l.single(TokenEquals)
	case ':':
		return l.single(TokenColon)
	case '"', '\'':
		return l.str(c)
	}

	if isDigit(c) || c == '-' || c == '+' {
		if tok, ok := l.number(); ok {
			return tok
		}
	}
	if isIdentStart(c) {
		return l.ident()
	}
	return l.illegal()
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) marker(rest string) (Token, bool) {
	start := l.pos
	for _, m := range []struct {
		text string
		kind TokenKind
	}{
		{l.markers.Start, TokenMarkerStart},
		{l.markers.End, TokenMarkerEnd},
	} {
		if m.text == "" {
			continue
		}
		if strings.HasPrefix(rest, m.text) {
			l.pos += len(m.text)
			return Token{Kind: m.kind, Text: m.text, Start: start, End: l.pos}, true
		}
		// a partial marker at the end of input may still complete
		if len(rest) < len(m.text) && strings.HasPrefix(m.text, rest) {
			l.pos = len(l.src)
			return Token{Kind: TokenIncomplete, Text: rest, Start: start, End: l.pos}, true
		}
	}
	return Token{}, false
}

func (l *Lexer) single(kind TokenKind) Token {
	start := l.pos
	l.pos++
	return Token{Kind: kind, Text: l.src[start:l.pos], Start: start, End: l.pos}
}

func (l *Lexer) str(quote byte) Token {
	start := l.pos
	idx := strings.IndexByte(l.src[start+1:], quote)
	if idx < 0 {
		l.pos = len(l.src)
		return Token{Kind: TokenIncomplete, Text: l.src[start:], Start: start, End: l.pos}
	}
	end := start + 1 + idx
	l.pos = end + 1
	return Token{Kind: TokenString, Text: l.src[start+1 : end], Start: start, End: l.pos}
}

// number scans [+-]?digits(.digits?)?([eE][+-]?digits)?. A sign that is
// not followed by a digit is not a number.
func (l *Lexer) number() (Token, bool) {
	start := l.pos
	i := l.pos
	if l.src[i] == '-' || l.src[i] == '+' {
		i++
		if i >= len(l.src) {
			l.pos = len(l.src)
			return Token{Kind: TokenIncomplete, Text: l.src[start:], Start: start, End: l.pos}, true
		}
		if !isDigit(l.src[i]) {
			return Token{}, false
		}
	}
	for i < len(l.src) && isDigit(l.src[i]) {
		i++
	}
	if i < len(l.src) && l.src[i] == '.' {
		i++
		for i < len(l.src) && isDigit(l.src[i]) {
			i++
		}
	}
	if i < len(l.src) && (l.src[i] == 'e' || l.src[i] == 'E') {
		j := i + 1
		if j < len(l.src) && (l.src[j] == '-' || l.src[j] == '+') {
			j++
		}
		switch {
		case j >= len(l.src):
			l.pos = len(l.src)
			return Token{Kind: TokenIncomplete, Text: l.src[start:], Start: start, End: l.pos}, true
		case isDigit(l.src[j]):
			for j < len(l.src) && isDigit(l.src[j]) {
				j++
			}
			i = j
		}
	}

	text := l.src[start:i]
	l.pos = i
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// out of range literals would otherwise become Inf
		return Token{Kind: TokenIllegal, Text: text, Start: start, End: i}, true
	}
	return Token{Kind: TokenNumber, Text: text, Num: num, Start: start, End: i}, true
}

func (l *Lexer) ident() Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	text := l.src[start:l.pos]
	switch text {
	case "True":
		return Token{Kind: TokenBool, Text: text, Bool: true, Start: start, End: l.pos}
	case "False":
		return Token{Kind: TokenBool, Text: text, Bool: false, Start: start, End: l.pos}
	}
	return Token{Kind: TokenIdent, Text: text, Start: start, End: l.pos}
}

func (l *Lexer) illegal() Token {
	start := l.pos
	_, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	return Token{Kind: TokenIllegal, Text: l.src[start:l.pos], Start: start, End: l.pos}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
