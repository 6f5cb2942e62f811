package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the value in tagged form, e.g. {"String":"x"}
func (v Value) MarshalJSON() ([]byte, error) {
	var payload []byte
	var err error

	switch v.Kind {
	case KindString:
		payload, err = json.Marshal(v.Str)
	case KindNumber:
		payload, err = json.Marshal(v.Num)
	case KindBool:
		payload, err = json.Marshal(v.Bool)
	case KindList:
		items := v.List
		if items == nil {
			items = []Value{}
		}
		payload, err = json.Marshal(items)
	case KindObject:
		payload, err = v.Object.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown value kind %d", int(v.Kind))
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"`)
	buf.WriteString(v.Kind.String())
	buf.WriteString(`":`)
	buf.Write(payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON
func (v *Value) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("tagged value: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("tagged value must have exactly one tag, got %d", len(tagged))
	}

	for tag, raw := range tagged {
		switch tag {
		case "String":
			v.Kind = KindString
			return json.Unmarshal(raw, &v.Str)
		case "Number":
			v.Kind = KindNumber
			return json.Unmarshal(raw, &v.Num)
		case "Bool":
			v.Kind = KindBool
			return json.Unmarshal(raw, &v.Bool)
		case "List":
			v.Kind = KindList
			v.List = []Value{}
			return json.Unmarshal(raw, &v.List)
		case "Object":
			v.Kind = KindObject
			v.Object = Fields{}
			return v.Object.UnmarshalJSON(raw)
		default:
			return fmt.Errorf("unknown value tag %q", tag)
		}
	}
	return nil
}

// MarshalJSON encodes the fields as a JSON object, keeping key order
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		val, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into fields, keeping key order
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", tok)
		}
		var val Value
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}
