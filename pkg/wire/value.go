package wire

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a decoded wire unit. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	obj  Object
	arr  Array
}

// Array is an ordered sequence of values accessed positionally.
type Array []Value

// Object maps string keys to values. Key order is irrelevant.
type Object map[string]Value

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Real wraps a floating point number.
func Real(f float64) Value { return Value{kind: KindReal, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// FromObject wraps an object.
func FromObject(o Object) Value {
	if o == nil {
		o = Object{}
	}
	return Value{kind: KindObject, obj: o}
}

// FromArray wraps an array.
func FromArray(a Array) Value {
	if a == nil {
		a = Array{}
	}
	return Value{kind: KindArray, arr: a}
}

// Kind reports the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns v as an integer. Reals are accepted only when integral.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindReal:
		if v.f == math.Trunc(v.f) && v.f >= -(1<<63) && v.f < 1<<63 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// AsDouble returns v as a float, widening integers.
func (v Value) AsDouble() (float64, bool) {
	switch v.kind {
	case KindReal:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsObject returns the object held by v.
func (v Value) AsObject() (Object, bool) {
	return v.obj, v.kind == KindObject
}

// AsArray returns the array held by v.
func (v Value) AsArray() (Array, bool) {
	return v.arr, v.kind == KindArray
}

// Interface converts v into plain Go values: nil, bool, int64, float64,
// string, map[string]any and []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindReal:
		return v.f
	case KindString:
		return v.s
	case KindObject:
		return v.obj.Interface()
	case KindArray:
		return v.arr.Interface()
	default:
		return nil
	}
}

// Interface converts the object into a map of plain Go values.
func (o Object) Interface() map[string]any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v.Interface()
	}
	return out
}

// Interface converts the array into a slice of plain Go values.
func (a Array) Interface() []any {
	out := make([]any, len(a))
	for i, v := range a {
		out[i] = v.Interface()
	}
	return out
}

// Clone returns a shallow copy of o so callers can stamp fields without
// touching the original.
func (o Object) Clone() Object {
	out := make(Object, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes v as JSON text.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindReal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, &json.UnsupportedValueError{Str: strconv.FormatFloat(v.f, 'g', -1, 64)}
		}
		return strconv.AppendFloat(nil, v.f, 'g', -1, 64), nil
	case KindString:
		return json.Marshal(v.s)
	case KindObject:
		return json.Marshal(v.obj)
	case KindArray:
		return json.Marshal(v.arr)
	}
	return nil, &json.UnsupportedValueError{Str: v.kind.String()}
}

// MarshalJSON encodes a nil array as [] rather than null.
func (a Array) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Value(a))
}

// UnmarshalJSON decodes JSON text into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(string(data))
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// String renders v as compact JSON; handy in logs.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<" + v.kind.String() + ">"
	}
	return string(data)
}
