package pythonic

import "fmt"

// TokenKind represents the type of a lexical token
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIllegal
	TokenIncomplete

	TokenIdent
	TokenString
	TokenNumber
	TokenBool

	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenComma    // ,
	TokenEquals   // =
	TokenColon    // :

	TokenMarkerStart
	TokenMarkerEnd
)

var tokenNames = map[TokenKind]string{
	TokenEOF:         "EOF",
	TokenIllegal:     "Illegal",
	TokenIncomplete:  "Incomplete",
	TokenIdent:       "Ident",
	TokenString:      "String",
	TokenNumber:      "Number",
	TokenBool:        "Bool",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenComma:       ",",
	TokenEquals:      "=",
	TokenColon:       ":",
	TokenMarkerStart: "MarkerStart",
	TokenMarkerEnd:   "MarkerEnd",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexical unit. Start and End are byte offsets into the
// lexed source.
type Token struct {
	Kind  TokenKind
	Text  string // lexeme; the unquoted contents for strings
	Num   float64
	Bool  bool
	Start int
	End   int
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent, TokenNumber, TokenIllegal:
		return fmt.Sprintf("%s(%s)@%d", t.Kind, t.Text, t.Start)
	case TokenString:
		return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Start)
	case TokenBool:
		return fmt.Sprintf("%s(%t)@%d", t.Kind, t.Bool, t.Start)
	default:
		return fmt.Sprintf("%s@%d", t.Kind, t.Start)
	}
}

// terminal reports whether the token ends the stream
func (t Token) terminal() bool {
	return t.Kind == TokenEOF || t.Kind == TokenIncomplete
}
