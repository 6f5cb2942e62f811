package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// Plain converts a tagged value to plain Go values: string, float64, bool,
// []any and map[string]any.
func Plain(v toolcall.Value) any {
	switch v.Kind {
	case toolcall.KindNumber:
		return v.Num
	case toolcall.KindBool:
		return v.Bool
	case toolcall.KindList:
		items := make([]any, len(v.List))
		for i, item := range v.List {
			items[i] = Plain(item)
		}
		return items
	case toolcall.KindObject:
		out := make(map[string]any, len(v.Object))
		for _, f := range v.Object {
			out[f.Key] = Plain(f.Value)
		}
		return out
	default:
		return v.Str
	}
}

// FlattenValue is Plain, except that an object with a single entry is
// replaced by that entry's value, recursively. The collapse is lossy: a
// nested call with one argument becomes the argument's value.
func FlattenValue(v toolcall.Value) any {
	switch v.Kind {
	case toolcall.KindList:
		items := make([]any, len(v.List))
		for i, item := range v.List {
			items[i] = FlattenValue(item)
		}
		return items
	case toolcall.KindObject:
		if len(v.Object) == 1 {
			return FlattenValue(v.Object[0].Value)
		}
		out := make(map[string]any, len(v.Object))
		for _, f := range v.Object {
			out[f.Key] = FlattenValue(f.Value)
		}
		return out
	default:
		return Plain(v)
	}
}

// Flatten applies FlattenValue to every argument
func Flatten(fields toolcall.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key] = FlattenValue(f.Value)
	}
	return out
}

// encodeArguments renders kwargs as a JSON object in argument order
func encodeArguments(fields toolcall.Fields, flatten bool) (string, error) {
	convert := Plain
	if flatten {
		convert = FlattenValue
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return "", err
		}
		val, err := json.Marshal(convert(f.Value))
		if err != nil {
			return "", fmt.Errorf("argument %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
