// Package adapter presents parsed calls in the OpenAI chat completion
// tool_calls shape used by vLLM tool parsers.
package adapter

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/efortin/vllm-toolparser/pkg/pythonic"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// ErrUnsupported is returned by operations the adapter does not implement
var ErrUnsupported = errors.New("operation not supported")

// ToolCall represents a tool call in OpenAI format
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function part of a tool call
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ExtractedToolCallInformation is the result of extracting calls from a
// complete model response
type ExtractedToolCallInformation struct {
	ToolsCalled bool       `json:"tools_called"`
	ToolCalls   []ToolCall `json:"tool_calls"`
	Content     string     `json:"content"`
}

// DeltaMessage is one streamed increment of an assistant message
type DeltaMessage struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Extractor handles conversion of model output into tool calls
type Extractor struct {
	parser  *pythonic.Parser
	flatten bool
	debug   bool
}

// NewExtractor creates an extractor around parser. With flatten set,
// arguments go through Flatten before encoding.
func NewExtractor(parser *pythonic.Parser, flatten, debug bool) *Extractor {
	return &Extractor{parser: parser, flatten: flatten, debug: debug}
}

// ExtractToolCalls extracts the tool calls from a complete model response.
// Without calls the whole output is returned as content.
func (e *Extractor) ExtractToolCalls(modelOutput string) ExtractedToolCallInformation {
	calls, content := e.parser.Extract(modelOutput)
	if len(calls) == 0 {
		if e.debug {
			log.Printf("[ADAPTER] No tool calls found in output (length: %d)", len(modelOutput))
		}
		return ExtractedToolCallInformation{
			ToolsCalled: false,
			ToolCalls:   []ToolCall{},
			Content:     modelOutput,
		}
	}

	converted, err := Convert(calls, e.flatten)
	if err != nil {
		log.Printf("[ADAPTER] Failed to encode tool calls: %v", err)
		return ExtractedToolCallInformation{ToolsCalled: false, ToolCalls: []ToolCall{}, Content: modelOutput}
	}
	return ExtractedToolCallInformation{
		ToolsCalled: true,
		ToolCalls:   converted,
		Content:     strings.TrimSpace(content),
	}
}

// ExtractToolCallsStreaming is not implemented; streaming callers use
// pythonic.IncrementalParser directly.
func (e *Extractor) ExtractToolCallsStreaming(previous, current, delta string, previousIDs, currentIDs, deltaIDs []int) (*DeltaMessage, error) {
	return nil, fmt.Errorf("streaming tool call extraction: %w", ErrUnsupported)
}

// Convert turns parsed calls into OpenAI tool calls with sequential IDs
func Convert(calls []toolcall.ToolCall, flatten bool) ([]ToolCall, error) {
	out := make([]ToolCall, 0, len(calls))
	for i, call := range calls {
		args, err := encodeArguments(call.Kwargs, flatten)
		if err != nil {
			return nil, fmt.Errorf("tool call %s: %w", call.Name, err)
		}
		out = append(out, ToolCall{
			ID:   GenerateToolCallID(i),
			Type: "function",
			Function: ToolCallFunction{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}
	return out, nil
}

// GenerateToolCallID generates a simple tool call ID: call_a ... call_z,
// then call_a1 and so on
func GenerateToolCallID(index int) string {
	letter := 'a' + rune(index%26)
	num := index / 26
	if num == 0 {
		return fmt.Sprintf("call_%c", letter)
	}
	return fmt.Sprintf("call_%c%d", letter, num)
}
