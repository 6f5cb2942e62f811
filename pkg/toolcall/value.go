// Package toolcall defines the typed result of tool-call extraction: calls,
// their ordered keyword arguments and the tagged values they carry.
package toolcall

import "fmt"

// Kind identifies which variant a Value holds
type Kind int

const (
	// KindString is a quoted string, a bare identifier or the empty placeholder
	KindString Kind = iota
	// KindNumber is a 64-bit float
	KindNumber
	// KindBool is True/False
	KindBool
	// KindList is an ordered sequence of values
	KindList
	// KindObject is an ordered mapping (dict literal or nested call)
	KindObject
)

var kindNames = map[Kind]string{
	KindString: "String",
	KindNumber: "Number",
	KindBool:   "Bool",
	KindList:   "List",
	KindObject: "Object",
}

// String returns the wire tag of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a tagged literal. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Str    string
	Num    float64
	Bool   bool
	List   []Value
	Object Fields
}

// String builds a string value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number builds a number value
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Bool builds a boolean value
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// List builds a list value
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindList, List: items}
}

// Object builds an object value
func Object(fields Fields) Value {
	if fields == nil {
		fields = Fields{}
	}
	return Value{Kind: KindObject, Object: fields}
}

// Empty is the placeholder stored for an argument written without a value (`a=,`)
func Empty() Value { return String("") }

// Nested wraps a call used as an argument value. The call name becomes the
// single key so the name survives alongside the arguments.
func Nested(call ToolCall) Value {
	return Object(Fields{{Key: call.Name, Value: Object(call.Kwargs)}})
}

// Equal reports deep, order-sensitive equality
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.Object.Equal(o.Object)
	}
	return false
}

// GoString renders the value compactly for test failure output
func (v Value) GoString() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Value{Kind: %s}", v.Kind)
	}
	return string(data)
}
