package pythonic

import (
	"fmt"
	"strings"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// EngineKind names a grammar implementation
type EngineKind string

const (
	// EnginePrimary lexes regions into tokens and parses them by recursive descent
	EnginePrimary EngineKind = "primary"
	// EngineAlternate parses regions character by character
	EngineAlternate EngineKind = "alternate"
)

var engineAliases = map[string]EngineKind{
	"primary":   EnginePrimary,
	"token":     EnginePrimary,
	"logos":     EnginePrimary,
	"alternate": EngineAlternate,
	"scanner":   EngineAlternate,
	"nom":       EngineAlternate,
}

// ParseEngineKind resolves an engine name, case-insensitively
func ParseEngineKind(name string) (EngineKind, error) {
	kind, ok := engineAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return kind, nil
}

// Engine parses the calls of a single region. Implementations must be
// deterministic and free of side effects.
type Engine interface {
	Name() string
	ParseRegion(region string) ([]toolcall.ToolCall, error)
}

type primaryEngine struct {
	opts Options
}

func (e *primaryEngine) Name() string {
	return string(EnginePrimary)
}

func (e *primaryEngine) ParseRegion(region string) ([]toolcall.ToolCall, error) {
	return walkRegion(region, e.opts)
}

// EngineByName returns the engine registered under name. An empty name
// selects the primary engine.
func EngineByName(name string, opts Options) (Engine, error) {
	opts = opts.withDefaults()
	if name == "" {
		name = string(EnginePrimary)
	}
	resolved, err := ParseEngineKind(name)
	if err != nil {
		return nil, err
	}
	switch resolved {
	case EngineAlternate:
		return &alternateEngine{opts: opts}, nil
	default:
		return &primaryEngine{opts: opts}, nil
	}
}

// EngineNames lists the canonical engine names
func EngineNames() []string {
	return []string{string(EnginePrimary), string(EngineAlternate)}
}
