package annotate

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase name of the kind, as used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over the JSON-like payload tree produced by the
// scrub engine. The merge only ever reads values; callers retain ownership.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array value holding items.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Object returns an object value holding fields.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsScalar reports whether the value is null, bool, number or string.
func (v Value) IsScalar() bool {
	return v.kind != KindArray && v.kind != KindObject
}

// Str returns the string payload; valid only for KindString.
func (v Value) Str() string { return v.s }

// BoolVal returns the boolean payload; valid only for KindBool.
func (v Value) BoolVal() bool { return v.b }

// Num returns the numeric payload; valid only for KindNumber.
func (v Value) Num() float64 { return v.n }

// Len returns the number of elements or fields for arrays and objects.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the array element at i; valid only for KindArray with i in bounds.
func (v Value) Index(i int) Value { return v.arr[i] }

// Field returns the object field named k and whether it exists.
func (v Value) Field(k string) (Value, bool) {
	val, ok := v.obj[k]
	return val, ok
}

// UnmarshalJSON decodes an arbitrary JSON document into the variant tree.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}

// fromInterface converts a decoded encoding/json value into a Value.
func fromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromInterface(item)
		}
		return Array(items...)
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = fromInterface(item)
		}
		return Object(fields)
	default:
		// encoding/json never produces other types for interface{} targets.
		return Null()
	}
}

// MarshalJSON encodes the variant tree back to JSON. Object fields are
// emitted in sorted key order so output is byte-stable.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.obj[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("%w: cannot marshal value of kind %d", ErrFormat, v.kind)
	}
}
