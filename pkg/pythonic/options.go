// Package pythonic extracts python-call-style tool invocations
// (`name(key=value, ...)`) from language model output.
//
// Two grammar-equivalent engines are available behind the Engine interface.
// Parser is the stateless batch entry point; IncrementalParser consumes text
// chunk by chunk and only returns calls that became complete.
package pythonic

import (
	"time"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

const (
	// DefaultStartMarker opens a machine-consumable region
	DefaultStartMarker = "<|python_start|>"
	// DefaultEndMarker closes it
	DefaultEndMarker = "<|python_end|>"
	// DefaultMaxDepth bounds list/dict/call nesting
	DefaultMaxDepth = 64
	// DefaultTrimThreshold is how many committed bytes an IncrementalParser
	// keeps before dropping them from its buffer
	DefaultTrimThreshold = 4096
)

// Markers are the sentinel strings bounding a region
type Markers struct {
	Start string
	End   string
}

// DefaultMarkers returns the Llama python-tag markers
func DefaultMarkers() Markers {
	return Markers{Start: DefaultStartMarker, End: DefaultEndMarker}
}

// Observer receives parse outcomes. Implementations must be safe for
// concurrent use when shared between parsers.
type Observer interface {
	ObserveParse(engine string, calls int, fallback bool, duration time.Duration)
	ObserveChunk(released int, buffered int)
}

// Options configures parsers. The zero value is usable: empty fields take
// the package defaults.
type Options struct {
	// Engine selects the grammar implementation (primary when empty)
	Engine EngineKind
	// Markers bound explicit regions
	Markers Markers
	// MaxDepth is the deepest list/dict/call nesting accepted in a region
	MaxDepth int
	// PromotionDepth is the deepest region-level list whose member calls are
	// returned as top-level calls. Zero means no limit.
	PromotionDepth int
	// DisableFallback turns off the heuristic engine
	DisableFallback bool
	// TrimThreshold controls buffer trimming in IncrementalParser
	TrimThreshold int
	// Debug enables verbose logging
	Debug bool
	// Observer, when set, is notified after each parse
	Observer Observer
}

// DefaultOptions returns options with every default filled in
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = EnginePrimary
	}
	if o.Markers.Start == "" {
		o.Markers.Start = DefaultStartMarker
	}
	if o.Markers.End == "" {
		o.Markers.End = DefaultEndMarker
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.PromotionDepth < 0 {
		o.PromotionDepth = 0
	}
	if o.TrimThreshold <= 0 {
		o.TrimThreshold = DefaultTrimThreshold
	}
	return o
}

func (o Options) promotes(depth int) bool {
	return o.PromotionDepth == 0 || depth <= o.PromotionDepth
}

func cloneCalls(calls []toolcall.ToolCall) []toolcall.ToolCall {
	if calls == nil {
		return []toolcall.ToolCall{}
	}
	out := make([]toolcall.ToolCall, len(calls))
	copy(out, calls)
	return out
}
