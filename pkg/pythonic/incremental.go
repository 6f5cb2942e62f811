package pythonic

import (
	"bytes"
	"crypto/sha256"
	"hash"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// MarkerState tells whether the commit offset sits inside a marked region
type MarkerState int

const (
	Outside MarkerState = iota
	InsideMarkers
)

func (s MarkerState) String() string {
	if s == InsideMarkers {
		return "inside_markers"
	}
	return "outside"
}

// State is a snapshot of an IncrementalParser's resumable state
type State struct {
	// Committed is the absolute offset up to which text is final
	Committed int
	// Retained is how many bytes are still buffered
	Retained int
	// Trimmed is how many committed bytes were dropped from the buffer
	Trimmed int
	// OpenDepth is the region-level list depth at the end of the last scan
	OpenDepth int
	Marker    MarkerState
}

// IncrementalParser consumes model output chunk by chunk and returns each
// call once, as soon as it can no longer change. It is owned by a single
// stream; calls must not be made concurrently.
//
// Inside a marked region a call is released when the construct holding it
// reaches a commit point: a region-level list closing back to depth zero, a
// comma or ']' right after a call at depth zero, or the region's end marker.
// Requiring a delimiter after the call keeps a trailing `limit=5` from being
// released before it becomes `limit=50`. Bare [...] regions are released
// whole once their closing bracket arrives.
type IncrementalParser struct {
	opts Options

	buffer    string
	base      int
	committed int
	openDepth int
	marker    MarkerState
	// parentheses open in the prose before the first region
	parens int

	markersSeen bool
	emitted     []toolcall.ToolCall
	trimmed     hash.Hash
	finished    bool
}

// NewIncrementalParser creates a parser with empty state. The zero Options
// value selects the defaults. Regions are always parsed with the primary
// engine.
func NewIncrementalParser(opts Options) *IncrementalParser {
	p := &IncrementalParser{opts: opts.withDefaults()}
	p.Reset()
	return p
}

// Reset discards all state, including emitted calls
func (p *IncrementalParser) Reset() {
	p.buffer = ""
	p.base = 0
	p.committed = 0
	p.openDepth = 0
	p.marker = Outside
	p.parens = 0
	p.markersSeen = false
	p.emitted = nil
	p.trimmed = sha256.New()
	p.finished = false
}

// ParseChunk appends text and returns the calls that became complete. A
// chunk that is not valid UTF-8 is rejected with a *ContractError and leaves
// the parser unchanged.
func (p *IncrementalParser) ParseChunk(text string) ([]toolcall.ToolCall, error) {
	if p.finished {
		return nil, contractErr("chunk submitted after Finish")
	}
	if !utf8.ValidString(text) {
		return nil, contractErr("chunk at offset %d is not valid UTF-8", p.base+len(p.buffer))
	}

	p.buffer += text
	released := p.scan(false)
	p.release(released)
	p.trim()
	return cloneCalls(released), nil
}

// ParseText feeds a snapshot of the whole output so far. current must
// extend everything seen before; only the new suffix is parsed.
func (p *IncrementalParser) ParseText(current string) ([]toolcall.ToolCall, error) {
	seen := p.base + len(p.buffer)
	if len(current) < seen {
		return nil, contractErr("snapshot of %d bytes is shorter than the %d bytes already seen", len(current), seen)
	}
	if p.base > 0 {
		sum := sha256.Sum256([]byte(current[:p.base]))
		if !bytes.Equal(sum[:], p.trimmed.Sum(nil)) {
			return nil, contractErr("snapshot does not extend the text already seen")
		}
	}
	if current[p.base:seen] != p.buffer {
		return nil, contractErr("snapshot does not extend the text already seen")
	}
	return p.ParseChunk(current[seen:])
}

// Finish marks the end of the stream and returns the calls still pending,
// parsed with batch semantics. When the stream released nothing at all the
// whole text is parsed as a batch, so bare calls and the fallback heuristic
// behave as they do for Parser.
func (p *IncrementalParser) Finish() []toolcall.ToolCall {
	if p.finished {
		return []toolcall.ToolCall{}
	}

	released := p.scan(true)
	if len(released) == 0 && len(p.emitted) == 0 && p.base == 0 {
		opts := p.opts
		opts.Observer = nil
		batch := &Parser{opts: opts, engine: &primaryEngine{opts: opts}}
		released = batch.Parse(p.buffer)
	}
	p.committed = p.base + len(p.buffer)
	p.finished = true
	p.release(released)
	return cloneCalls(released)
}

// ParsedFunctions returns every call released so far, in order
func (p *IncrementalParser) ParsedFunctions() []toolcall.ToolCall {
	return cloneCalls(p.emitted)
}

// State returns the current resumable state
func (p *IncrementalParser) State() State {
	return State{
		Committed: p.committed,
		Retained:  len(p.buffer),
		Trimmed:   p.base,
		OpenDepth: p.openDepth,
		Marker:    p.marker,
	}
}

func (p *IncrementalParser) release(calls []toolcall.ToolCall) {
	p.emitted = append(p.emitted, calls...)
	if p.opts.Debug && len(calls) > 0 {
		log.Printf("[STREAM] Released %d calls at offset %d (%s)", len(calls), p.committed, p.marker)
	}
	if p.opts.Observer != nil {
		p.opts.Observer.ObserveChunk(len(calls), len(p.buffer))
	}
}

func (p *IncrementalParser) tail() string {
	return p.buffer[p.committed-p.base:]
}

func (p *IncrementalParser) scan(final bool) []toolcall.ToolCall {
	var released []toolcall.ToolCall
	for {
		if p.marker == Outside {
			if !p.seek() {
				return released
			}
			if p.marker == Outside {
				got, more := p.scanBare(final)
				released = append(released, got...)
				if !more {
					return released
				}
				continue
			}
		}

		got, more := p.scanMarked(final)
		released = append(released, got...)
		if !more {
			return released
		}
	}
}

// seek moves the commit offset through prose to the next region. Once a
// start marker has been seen, bare brackets no longer open regions.
func (p *IncrementalParser) seek() bool {
	tail := p.tail()
	startIdx := strings.Index(tail, p.opts.Markers.Start)
	// a marker split across chunks must be seen again
	limit := len(tail) - partialSuffix(tail, p.opts.Markers.Start)
	if startIdx >= 0 {
		limit = startIdx
	}

	if !p.markersSeen {
		for i := 0; i < limit; i++ {
			switch tail[i] {
			case '(':
				p.parens++
			case ')':
				if p.parens > 0 {
					p.parens--
				}
			case '[':
				if p.parens == 0 {
					p.committed += i
					return true
				}
			}
		}
	}

	if startIdx >= 0 {
		p.committed += startIdx + len(p.opts.Markers.Start)
		p.marker = InsideMarkers
		p.markersSeen = true
		p.openDepth = 0
		return true
	}
	p.committed += limit
	return false
}

// scanBare handles a [...] region starting at the commit offset. It reports
// whether scanning should go on.
func (p *IncrementalParser) scanBare(final bool) ([]toolcall.ToolCall, bool) {
	tail := p.tail()
	end, closed := matchBracket(tail, 0)

	if idx := strings.Index(tail, p.opts.Markers.Start); idx >= 0 && idx < end {
		// markers take over; the bare text before them is prose
		p.committed += idx
		return nil, true
	}
	if !closed && !final {
		p.openDepth = openBracketsIn(tail)
		return nil, false
	}

	block := tail[:end]
	p.committed += end
	p.openDepth = 0
	if !callPattern.MatchString(block) {
		return nil, closed
	}
	calls, err := walkRegion(block, p.opts)
	if err != nil && p.opts.Debug {
		log.Printf("[STREAM] Dropping region: %v", err)
	}
	return calls, closed
}

// scanMarked walks the marked region at the commit offset. A region whose
// end is already buffered is parsed whole.
func (p *IncrementalParser) scanMarked(final bool) ([]toolcall.ToolCall, bool) {
	tail := p.tail()

	if bound, skip, closes := p.regionBound(tail); bound >= 0 {
		calls, _ := p.walk(tail[:bound], true)
		p.committed += bound + skip
		p.openDepth = 0
		if closes {
			p.marker = Outside
		}
		return calls, true
	}

	calls, commit := p.walk(tail, final)
	p.committed += commit
	return calls, false
}

// regionBound finds the end (or start) marker terminating the current
// region. It returns the offset of the marker, its length and whether it
// closes the region, or -1 when the region is still open.
func (p *IncrementalParser) regionBound(tail string) (int, int, bool) {
	endIdx := strings.Index(tail, p.opts.Markers.End)
	startIdx := strings.Index(tail, p.opts.Markers.Start)
	switch {
	case endIdx >= 0 && (startIdx < 0 || endIdx < startIdx):
		return endIdx, len(p.opts.Markers.End), true
	case startIdx >= 0:
		return startIdx, len(p.opts.Markers.Start), false
	default:
		return -1, 0, false
	}
}

// walk parses src and returns the calls released in it along with the
// offset committed. complete means src is the rest of the region, so every
// parsed call is final.
func (p *IncrementalParser) walk(src string, complete bool) ([]toolcall.ToolCall, int) {
	w := newWalker(Tokenize(src, p.opts.Markers), p.opts, !complete)

	var released, pending []toolcall.ToolCall
	commit := 0
	for {
		ev := w.next()
		switch ev.kind {
		case evCall:
			pending = append(pending, ev.call)
		case evListClosed, evDelimiter, evMarkerStart, evMarkerEnd:
			released = append(released, pending...)
			pending = nil
			commit = ev.end
		case evFatal:
			if p.opts.Debug {
				log.Printf("[STREAM] Dropping region: %v", ev.err)
			}
			if complete {
				return nil, len(src)
			}
			// wait for the end of the region
			return nil, 0
		case evEOF, evIncomplete:
			p.openDepth = w.depth
			if complete {
				released = append(released, pending...)
				commit = len(src)
			}
			return released, commit
		}
	}
}

// trim drops committed text from the buffer once it passes the threshold.
// Until a call or marker has appeared the whole text is kept so Finish can
// still parse it as a batch.
func (p *IncrementalParser) trim() {
	drop := p.committed - p.base
	if drop < p.opts.TrimThreshold || (len(p.emitted) == 0 && !p.markersSeen) {
		return
	}
	_, _ = io.WriteString(p.trimmed, p.buffer[:drop])
	p.buffer = strings.Clone(p.buffer[drop:])
	p.base = p.committed
	if p.opts.Debug {
		log.Printf("[STREAM] Trimmed %d committed bytes", drop)
	}
}
