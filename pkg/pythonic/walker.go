package pythonic

import (
	"log"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

type eventKind int

const (
	evCall eventKind = iota
	evListClosed
	evDelimiter
	evMarkerStart
	evMarkerEnd
	evIncomplete
	evFatal
	evEOF
)

type event struct {
	kind eventKind
	call toolcall.ToolCall
	// end is the byte offset just past the token or call that produced the event
	end int
	err *parseError
}

// walker steps through the tokens of a region. It tracks region-level list
// depth, parses every name( it meets, and skips over whatever cannot be
// parsed. Batch parsing and the incremental parser consume the same event
// stream; they differ only in where they commit.
type walker struct {
	toks []Token
	i    int
	// depth of region-level lists around the current token
	depth int
	// brackets still open inside a call that failed to parse
	inner int
	opts  Options
	// streaming treats a name at the end of input as possibly incomplete
	streaming bool
}

func newWalker(toks []Token, opts Options, streaming bool) *walker {
	return &walker{toks: toks, opts: opts, streaming: streaming}
}

func (w *walker) next() event {
	for w.i < len(w.toks) {
		tok := w.toks[w.i]
		switch tok.Kind {
		case TokenEOF:
			return event{kind: evEOF, end: tok.Start}
		case TokenIncomplete:
			return event{kind: evIncomplete, end: tok.Start}
		case TokenMarkerStart, TokenMarkerEnd:
			w.i++
			w.depth, w.inner = 0, 0
			if tok.Kind == TokenMarkerStart {
				return event{kind: evMarkerStart, end: tok.End}
			}
			return event{kind: evMarkerEnd, end: tok.End}
		case TokenLBracket:
			w.i++
			if w.inner > 0 {
				w.inner++
			} else {
				w.depth++
			}
		case TokenRBracket:
			w.i++
			switch {
			case w.inner > 0:
				w.inner--
			case w.depth > 0:
				w.depth--
				if w.depth == 0 {
					return event{kind: evListClosed, end: tok.End}
				}
			default:
				return event{kind: evDelimiter, end: tok.End}
			}
		case TokenComma:
			w.i++
			if w.depth == 0 && w.inner == 0 {
				return event{kind: evDelimiter, end: tok.End}
			}
		case TokenIdent:
			if ev, ok := w.call(tok); ok {
				return ev
			}
		default:
			w.i++
		}
	}
	return event{kind: evEOF}
}

// call handles an identifier. It reports an event when the caller must see
// one and false when walking simply continues.
func (w *walker) call(tok Token) (event, bool) {
	following := w.toks[w.i+1]
	if following.Kind != TokenLParen {
		if w.streaming && following.terminal() {
			return event{kind: evIncomplete, end: tok.Start}, true
		}
		w.i++
		return event{}, false
	}

	p := callParser{toks: w.toks, pos: w.i, maxDepth: w.opts.MaxDepth}
	call, perr := p.parseCall()
	if perr == nil {
		w.i = p.pos
		if !w.opts.promotes(w.depth) {
			if w.opts.Debug {
				log.Printf("[PYTHONIC] Skipping %s at list depth %d", call.Name, w.depth)
			}
			return event{}, false
		}
		return event{kind: evCall, call: call, end: w.toks[p.pos-1].End}, true
	}

	switch perr.kind {
	case failIncomplete:
		return event{kind: evIncomplete, end: tok.Start, err: perr}, true
	case failTooDeep:
		return event{kind: evFatal, end: perr.offset, err: perr}, true
	}

	if w.opts.Debug {
		log.Printf("[PYTHONIC] Recovering from %s: %v", tok.Text, perr)
	}
	resume := resumeFrom(perr, w.i)
	w.inner += openBrackets(w.toks, w.i, resume)
	w.i = resume
	return event{}, false
}

// walkRegion parses one complete region with batch semantics. A region
// that nests too deeply yields no calls at all.
func walkRegion(region string, opts Options) ([]toolcall.ToolCall, error) {
	w := newWalker(Tokenize(region, opts.Markers), opts, false)
	var calls []toolcall.ToolCall
	for {
		ev := w.next()
		switch ev.kind {
		case evCall:
			calls = append(calls, ev.call)
		case evFatal:
			return nil, ErrNestingTooDeep
		case evEOF, evIncomplete:
			return calls, nil
		}
	}
}
