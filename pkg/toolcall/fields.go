package toolcall

// Field is one key/value pair of an ordered mapping
type Field struct {
	Key   string
	Value Value
}

// Fields is an ordered mapping from string keys to values. Keys are unique;
// order is insertion order.
type Fields []Field

// Get returns the value stored under key
func (f Fields) Get(key string) (Value, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Set stores value under key. An existing key keeps its position.
func (f *Fields) Set(key string, value Value) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

// Keys returns the keys in order
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

// Len returns the number of entries
func (f Fields) Len() int { return len(f) }

// Equal reports order-sensitive equality
func (f Fields) Equal(o Fields) bool {
	if len(f) != len(o) {
		return false
	}
	for i := range f {
		if f[i].Key != o[i].Key || !f[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// ToolCall is one extracted invocation: a function name plus keyword arguments
type ToolCall struct {
	Name   string `json:"name"`
	Kwargs Fields `json:"kwargs"`
}

// Equal reports deep equality of two calls
func (c ToolCall) Equal(o ToolCall) bool {
	return c.Name == o.Name && c.Kwargs.Equal(o.Kwargs)
}

// EqualCalls compares two call sequences element by element
func EqualCalls(a, b []ToolCall) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Names returns the call names in order
func Names(calls []ToolCall) []string {
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return names
}
