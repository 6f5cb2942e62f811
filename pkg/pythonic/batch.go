package pythonic

import (
	"errors"
	"log"
	"time"

	"github.com/efortin/vllm-toolparser/pkg/fallback"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// Parser extracts tool calls from complete model output. It holds no
// per-parse state and is safe for concurrent use.
type Parser struct {
	opts   Options
	engine Engine
}

// NewParser creates a parser. It fails only for an unknown engine.
func NewParser(opts Options) (*Parser, error) {
	opts = opts.withDefaults()
	engine, err := EngineByName(string(opts.Engine), opts)
	if err != nil {
		return nil, err
	}
	return &Parser{opts: opts, engine: engine}, nil
}

// Engine returns the engine regions are parsed with
func (p *Parser) Engine() Engine {
	return p.engine
}

// Parse returns the calls found in text, in textual order. An empty result
// means no calls were found.
func (p *Parser) Parse(text string) []toolcall.ToolCall {
	calls, _ := p.parse(text)
	return calls
}

// Extract parses text and also returns the prose around the regions
func (p *Parser) Extract(text string) ([]toolcall.ToolCall, string) {
	calls, ext := p.parse(text)
	return calls, ext.Content
}

func (p *Parser) parse(text string) ([]toolcall.ToolCall, Extraction) {
	start := time.Now()
	ext := Extract(text, p.opts.Markers)
	calls := p.parseRegions(text, ext)

	usedFallback := false
	if len(calls) == 0 && !p.opts.DisableFallback && fallback.LooksCallShaped(text) {
		calls = fallback.Parse(text)
		usedFallback = true
		if p.opts.Debug {
			log.Printf("[FALLBACK] Strict parse found nothing, heuristic found %d calls", len(calls))
		}
	}

	if p.opts.Debug {
		log.Printf("[PYTHONIC] Parsed %d calls with %s engine in %s", len(calls), p.engine.Name(), time.Since(start))
	}
	if p.opts.Observer != nil {
		p.opts.Observer.ObserveParse(p.engine.Name(), len(calls), usedFallback, time.Since(start))
	}
	return cloneCalls(calls), ext
}

func (p *Parser) parseRegions(text string, ext Extraction) []toolcall.ToolCall {
	if p.opts.Debug {
		log.Printf("[PYTHONIC] Found %d regions", len(ext.Regions))
	}

	var calls []toolcall.ToolCall
	for _, r := range ext.Regions {
		got, err := p.engine.ParseRegion(text[r.Start:r.End])
		if err != nil {
			if p.opts.Debug && errors.Is(err, ErrNestingTooDeep) {
				log.Printf("[PYTHONIC] Dropping region at offset %d: %v", r.Start, err)
			}
			continue
		}
		calls = append(calls, got...)
	}
	return calls
}

// ParseTools parses text with default options. The first engine given, if
// any, replaces the primary engine. An unknown engine yields no calls.
func ParseTools(text string, engine ...EngineKind) []toolcall.ToolCall {
	opts := DefaultOptions()
	if len(engine) > 0 {
		opts.Engine = engine[0]
	}
	p, err := NewParser(opts)
	if err != nil {
		log.Printf("[PYTHONIC] %v", err)
		return nil
	}
	return p.Parse(text)
}
