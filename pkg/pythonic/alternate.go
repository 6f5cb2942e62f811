package pythonic

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
	numberRe = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]*)?([eE][+-]?[0-9]+)?`)
)

// alternateEngine parses regions directly from characters, without a
// token stream. It accepts the same grammar as the primary engine.
type alternateEngine struct {
	opts Options
}

func (e *alternateEngine) Name() string {
	return string(EngineAlternate)
}

func (e *alternateEngine) ParseRegion(region string) ([]toolcall.ToolCall, error) {
	p := &scanner{src: region, maxDepth: e.opts.MaxDepth, markers: e.opts.Markers}
	depth, inner := 0, 0
	var calls []toolcall.ToolCall

	for {
		p.skipSpace()
		if p.eof() {
			return calls, nil
		}
		if n := p.markerAt(); n > 0 {
			p.pos += n
			depth, inner = 0, 0
			continue
		}

		switch c := p.src[p.pos]; {
		case c == '[':
			p.pos++
			if inner > 0 {
				inner++
			} else {
				depth++
			}
		case c == ']':
			p.pos++
			if inner > 0 {
				inner--
			} else if depth > 0 {
				depth--
			}
		case c == '"' || c == '\'':
			if _, ok := p.quoted(); !ok {
				return calls, nil
			}
		case isDigit(c):
			// consumed whole so exponents are not read as names
			if m := numberRe.FindString(p.rest()); m != "" {
				p.pos += len(m)
			} else {
				p.pos++
			}
		case isIdentStart(c):
			start := p.pos
			name := identRe.FindString(p.rest())
			p.pos += len(name)
			if name == "True" || name == "False" || !p.followedBy('(') {
				continue
			}

			p.pos = start
			call, perr := p.call()
			if perr == nil {
				if e.opts.promotes(depth) {
					calls = append(calls, call)
				}
				continue
			}
			switch perr.kind {
			case failIncomplete:
				return calls, nil
			case failTooDeep:
				return nil, ErrNestingTooDeep
			}
			if e.opts.Debug {
				log.Printf("[PYTHONIC] Recovering from %s: %v", name, perr)
			}
			resume := max(perr.offset, start+1)
			inner += openBracketsIn(region[start:resume])
			p.pos = resume
			p.depth = 0
		default:
			p.pos++
		}
	}
}

// scanner is a small set of parsing primitives over a string
type scanner struct {
	src      string
	pos      int
	depth    int
	maxDepth int
	markers  Markers
}

func (p *scanner) eof() bool    { return p.pos >= len(p.src) }
func (p *scanner) rest() string { return p.src[p.pos:] }

func (p *scanner) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}

func (p *scanner) markerAt() int {
	for _, m := range []string{p.markers.Start, p.markers.End} {
		if m != "" && strings.HasPrefix(p.rest(), m) {
			return len(m)
		}
	}
	return 0
}

// followedBy peeks past whitespace for c without consuming anything
func (p *scanner) followedBy(c byte) bool {
	save := p.pos
	p.skipSpace()
	ok := !p.eof() && p.src[p.pos] == c
	p.pos = save
	return ok
}

func (p *scanner) fail(format string, args ...any) *parseError {
	p.skipSpace()
	kind := failUnexpected
	if p.eof() {
		kind = failIncomplete
	}
	return &parseError{kind: kind, offset: p.pos, msg: fmt.Sprintf(format, args...)}
}

func (p *scanner) lit(c byte) bool {
	p.skipSpace()
	if !p.eof() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *scanner) enter() *parseError {
	p.depth++
	if p.depth > p.maxDepth {
		return &parseError{kind: failTooDeep, offset: p.pos, msg: fmt.Sprintf("nesting exceeds %d", p.maxDepth)}
	}
	return nil
}

func (p *scanner) leave() { p.depth-- }

func (p *scanner) quoted() (string, bool) {
	quote := p.src[p.pos]
	idx := strings.IndexByte(p.src[p.pos+1:], quote)
	if idx < 0 {
		p.pos = len(p.src)
		return "", false
	}
	s := p.src[p.pos+1 : p.pos+1+idx]
	p.pos += idx + 2
	return s, true
}

func (p *scanner) ident() (string, bool) {
	p.skipSpace()
	name := identRe.FindString(p.rest())
	p.pos += len(name)
	return name, name != ""
}

// delimited parses element { "," element } [","] closer, tolerating
// leading and repeated commas. The opener has already been consumed.
func (p *scanner) delimited(closer byte, element func() *parseError) *parseError {
	if perr := p.enter(); perr != nil {
		return perr
	}
	defer p.leave()

	for {
		if p.lit(closer) {
			return nil
		}
		if p.lit(',') {
			continue
		}
		if perr := element(); perr != nil {
			return perr
		}
		p.skipSpace()
		if p.lit(',') {
			continue
		}
		if p.eof() || p.src[p.pos] != closer {
			return p.fail("expected , or %c", closer)
		}
	}
}

// optional parses a value unless the element ends right away
func (p *scanner) optional(closer byte) (toolcall.Value, *parseError) {
	p.skipSpace()
	if !p.eof() && (p.src[p.pos] == ',' || p.src[p.pos] == closer) {
		return toolcall.Empty(), nil
	}
	return p.value()
}

func (p *scanner) call() (toolcall.ToolCall, *parseError) {
	name, ok := p.ident()
	if !ok {
		return toolcall.ToolCall{}, p.fail("expected call name")
	}
	if !p.lit('(') {
		return toolcall.ToolCall{}, p.fail("expected ( after %s", name)
	}

	call := toolcall.ToolCall{Name: name, Kwargs: toolcall.Fields{}}
	perr := p.delimited(')', func() *parseError {
		key, ok := p.ident()
		if !ok || key == "True" || key == "False" {
			return p.fail("expected argument name in %s", name)
		}
		if !p.lit('=') {
			return p.fail("expected = after %s", key)
		}
		v, perr := p.optional(')')
		if perr != nil {
			return perr
		}
		call.Kwargs.Set(key, v)
		return nil
	})
	if perr != nil {
		return toolcall.ToolCall{}, perr
	}
	return call, nil
}

func (p *scanner) value() (toolcall.Value, *parseError) {
	p.skipSpace()
	if p.eof() {
		return toolcall.Value{}, p.fail("expected value")
	}

	switch c := p.src[p.pos]; {
	case c == '"' || c == '\'':
		s, ok := p.quoted()
		if !ok {
			return toolcall.Value{}, p.fail("unterminated string")
		}
		return toolcall.String(s), nil
	case c == '[':
		p.pos++
		items := []toolcall.Value{}
		perr := p.delimited(']', func() *parseError {
			v, perr := p.value()
			if perr != nil {
				return perr
			}
			items = append(items, v)
			return nil
		})
		if perr != nil {
			return toolcall.Value{}, perr
		}
		return toolcall.List(items...), nil
	case c == '{':
		p.pos++
		fields := toolcall.Fields{}
		perr := p.delimited('}', func() *parseError {
			key, perr := p.dictKey()
			if perr != nil {
				return perr
			}
			if !p.lit(':') {
				return p.fail("expected : after %s", key)
			}
			v, perr := p.optional('}')
			if perr != nil {
				return perr
			}
			fields.Set(key, v)
			return nil
		})
		if perr != nil {
			return toolcall.Value{}, perr
		}
		return toolcall.Object(fields), nil
	}

	if m := numberRe.FindString(p.rest()); m != "" {
		n, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return toolcall.Value{}, p.fail("number %s out of range", m)
		}
		p.pos += len(m)
		return toolcall.Number(n), nil
	}

	start := p.pos
	name, ok := p.ident()
	if !ok {
		return toolcall.Value{}, p.fail("expected value")
	}
	switch name {
	case "True":
		return toolcall.Bool(true), nil
	case "False":
		return toolcall.Bool(false), nil
	case "None":
		if !p.followedBy('(') {
			return toolcall.Empty(), nil
		}
	}
	if p.followedBy('(') {
		p.pos = start
		call, perr := p.call()
		if perr != nil {
			return toolcall.Value{}, perr
		}
		return toolcall.Nested(call), nil
	}
	return toolcall.String(name), nil
}

func (p *scanner) dictKey() (string, *parseError) {
	p.skipSpace()
	if !p.eof() && (p.src[p.pos] == '"' || p.src[p.pos] == '\'') {
		s, ok := p.quoted()
		if !ok {
			return "", p.fail("unterminated string")
		}
		return s, nil
	}
	name, ok := p.ident()
	if !ok || name == "True" || name == "False" {
		return "", p.fail("expected dict key")
	}
	return name, nil
}

// openBracketsIn counts square brackets left open in s, ignoring quoted text
func openBracketsIn(s string) int {
	open := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '[':
			open++
		case ']':
			if open > 0 {
				open--
			}
		case '"', '\'':
			idx := strings.IndexByte(s[i+1:], c)
			if idx < 0 {
				return open
			}
			i += idx + 1
		}
	}
	return open
}
