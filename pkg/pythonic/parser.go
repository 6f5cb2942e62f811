package pythonic

import (
	"fmt"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// callParser is the recursive descent parser of the primary engine. It
// works on a token slice produced by Tokenize.
//
//	call   = IDENT "(" [ kwarg { "," kwarg } [","] ] ")"
//	kwarg  = IDENT "=" [ value ]
//	value  = STRING | NUMBER | BOOL | list | dict | call | IDENT
//	list   = "[" [ value { "," value } [","] ] "]"
//	dict   = "{" [ entry { "," entry } [","] ] "}"
//	entry  = (STRING | IDENT) ":" [ value ]
type callParser struct {
	toks     []Token
	pos      int
	depth    int
	maxDepth int
}

func (p *callParser) peek() Token {
	return p.toks[p.pos]
}

func (p *callParser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *callParser) advance() Token {
	tok := p.toks[p.pos]
	if !tok.terminal() {
		p.pos++
	}
	return tok
}

// fail builds an error for the current token. Running into the end of the
// input is always reported as incomplete.
func (p *callParser) fail(format string, args ...any) *parseError {
	tok := p.peek()
	kind := failUnexpected
	if tok.terminal() {
		kind = failIncomplete
	}
	return &parseError{kind: kind, pos: p.pos, offset: tok.Start, msg: fmt.Sprintf(format, args...)}
}

func (p *callParser) enter() *parseError {
	p.depth++
	if p.depth > p.maxDepth {
		tok := p.peek()
		return &parseError{kind: failTooDeep, pos: p.pos, offset: tok.Start, msg: fmt.Sprintf("nesting exceeds %d", p.maxDepth)}
	}
	return nil
}

func (p *callParser) leave() {
	p.depth--
}

func (p *callParser) expect(kind TokenKind) (Token, *parseError) {
	if p.peek().Kind != kind {
		return Token{}, p.fail("expected %s, got %s", kind, p.peek())
	}
	return p.advance(), nil
}

func (p *callParser) parseCall() (toolcall.ToolCall, *parseError) {
	name, perr := p.expect(TokenIdent)
	if perr != nil {
		return toolcall.ToolCall{}, perr
	}
	if _, perr := p.expect(TokenLParen); perr != nil {
		return toolcall.ToolCall{}, perr
	}
	if perr := p.enter(); perr != nil {
		return toolcall.ToolCall{}, perr
	}
	defer p.leave()

	call := toolcall.ToolCall{Name: name.Text, Kwargs: toolcall.Fields{}}
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokenRParen:
			p.advance()
			return call, nil
		case TokenComma:
			p.advance()
			continue
		case TokenIdent:
		default:
			return toolcall.ToolCall{}, p.fail("expected argument name in %s, got %s", call.Name, tok)
		}

		key := p.advance()
		if _, perr := p.expect(TokenEquals); perr != nil {
			return toolcall.ToolCall{}, perr
		}
		value, perr := p.parseOptionalValue(TokenRParen)
		if perr != nil {
			return toolcall.ToolCall{}, perr
		}
		call.Kwargs.Set(key.Text, value)

		if perr := p.separator(TokenRParen); perr != nil {
			return toolcall.ToolCall{}, perr
		}
	}
}

// separator requires a comma or the closing token after an element
func (p *callParser) separator(closer TokenKind) *parseError {
	switch p.peek().Kind {
	case TokenComma:
		p.advance()
		return nil
	case closer:
		return nil
	default:
		return p.fail("expected , or %s, got %s", closer, p.peek())
	}
}

// parseOptionalValue yields the empty placeholder when the value is
// omitted, as in `f(a=, b=1)`.
func (p *callParser) parseOptionalValue(closer TokenKind) (toolcall.Value, *parseError) {
	switch p.peek().Kind {
	case TokenComma, closer:
		return toolcall.Empty(), nil
	}
	return p.parseValue()
}

func (p *callParser) parseValue() (toolcall.Value, *parseError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenString:
		p.advance()
		return toolcall.String(tok.Text), nil
	case TokenNumber:
		p.advance()
		return toolcall.Number(tok.Num), nil
	case TokenBool:
		p.advance()
		return toolcall.Bool(tok.Bool), nil
	case TokenLBracket:
		return p.parseList()
	case TokenLBrace:
		return p.parseDict()
	case TokenIdent:
		if p.peekAt(1).Kind == TokenLParen {
			call, perr := p.parseCall()
			if perr != nil {
				return toolcall.Value{}, perr
			}
			return toolcall.Nested(call), nil
		}
		p.advance()
		if tok.Text == "None" {
			return toolcall.Empty(), nil
		}
		return toolcall.String(tok.Text), nil
	default:
		return toolcall.Value{}, p.fail("expected value, got %s", tok)
	}
}

func (p *callParser) parseList() (toolcall.Value, *parseError) {
	p.advance()
	if perr := p.enter(); perr != nil {
		return toolcall.Value{}, perr
	}
	defer p.leave()

	items := []toolcall.Value{}
	for {
		switch p.peek().Kind {
		case TokenRBracket:
			p.advance()
			return toolcall.List(items...), nil
		case TokenComma:
			p.advance()
			continue
		}

		item, perr := p.parseValue()
		if perr != nil {
			return toolcall.Value{}, perr
		}
		items = append(items, item)

		if perr := p.separator(TokenRBracket); perr != nil {
			return toolcall.Value{}, perr
		}
	}
}

func (p *callParser) parseDict() (toolcall.Value, *parseError) {
	p.advance()
	if perr := p.enter(); perr != nil {
		return toolcall.Value{}, perr
	}
	defer p.leave()

	fields := toolcall.Fields{}
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokenRBrace:
			p.advance()
			return toolcall.Object(fields), nil
		case TokenComma:
			p.advance()
			continue
		case TokenString, TokenIdent:
		default:
			return toolcall.Value{}, p.fail("expected dict key, got %s", tok)
		}

		key := p.advance()
		if _, perr := p.expect(TokenColon); perr != nil {
			return toolcall.Value{}, perr
		}
		value, perr := p.parseOptionalValue(TokenRBrace)
		if perr != nil {
			return toolcall.Value{}, perr
		}
		fields.Set(key.Text, value)

		if perr := p.separator(TokenRBrace); perr != nil {
			return toolcall.Value{}, perr
		}
	}
}
