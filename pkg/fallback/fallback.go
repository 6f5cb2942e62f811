// Package fallback recovers tool calls from text the strict grammar
// rejects. It is a flat, regex-based scan: nested values are not
// understood and every argument is a scalar.
package fallback

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

var (
	callRe    = regexp.MustCompile(`(\w+)\s*\((.*?)\)`)
	kwargRe   = regexp.MustCompile(`(\w+)\s*=\s*("[^"]*"|'[^']*'|[^,"'\s]+)`)
	specialRe = regexp.MustCompile(`<\|[^|<>]*\|>`)
)

// LooksCallShaped reports whether text has the outline of a call list:
// square brackets, parentheses, and a comma outside any parentheses.
func LooksCallShaped(text string) bool {
	for _, c := range "[()]" {
		if !strings.ContainsRune(text, c) {
			return false
		}
	}

	depth := 0
	for _, c := range text {
		switch c {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// Parse extracts every name(...) in text with its key=value pairs. Special
// tokens such as <|python_start|> are ignored. It never fails; text with no
// recognizable call yields nil.
func Parse(text string) []toolcall.ToolCall {
	text = specialRe.ReplaceAllString(text, " ")

	var calls []toolcall.ToolCall
	for _, m := range callRe.FindAllStringSubmatch(text, -1) {
		call := toolcall.ToolCall{Name: m[1], Kwargs: toolcall.Fields{}}
		for _, kv := range kwargRe.FindAllStringSubmatch(m[2], -1) {
			call.Kwargs.Set(kv[1], Scalar(kv[2]))
		}
		calls = append(calls, call)
	}
	return calls
}

// Scalar types a raw argument: quoted string, then boolean
// (case-insensitive), then number, then a plain string.
func Scalar(raw string) toolcall.Value {
	if len(raw) >= 2 {
		if q := raw[0]; (q == '"' || q == '\'') && raw[len(raw)-1] == q {
			return toolcall.String(raw[1 : len(raw)-1])
		}
	}
	switch strings.ToLower(raw) {
	case "true":
		return toolcall.Bool(true)
	case "false":
		return toolcall.Bool(false)
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return toolcall.Number(n)
	}
	return toolcall.String(raw)
}
