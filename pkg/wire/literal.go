package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Literal renders v as text that can be spliced into a generated call
// script. Strings are JSON quoted, which escapes quotes, backslashes and
// control characters; U+2028 and U+2029 are escaped as well since they
// terminate lines in older script engines.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case Value:
		return valueLiteral(x)
	case Array:
		return jsonLiteral(x)
	case Object:
		return jsonLiteral(x)
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return floatLiteral(float64(x))
	case float64:
		return floatLiteral(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "null", nil
		}
		return Literal(rv.Elem().Interface())
	}
	return jsonLiteral(v)
}

func valueLiteral(v Value) (string, error) {
	switch v.Kind() {
	case KindString:
		return quote(v.s)
	case KindReal:
		return floatLiteral(v.f)
	}
	return jsonLiteral(v)
}

func floatLiteral(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: non-finite number %v", ErrMalformed, f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func quote(s string) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return escapeLineTerminators(string(data)), nil
}

func jsonLiteral(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode literal: %w", err)
	}
	return escapeLineTerminators(string(data)), nil
}

// json.Marshal already escapes these with HTML escaping enabled; keep the
// guarantee explicit in case a Marshaler emits them raw.
func escapeLineTerminators(s string) string {
	if !strings.ContainsAny(s, "\u2028\u2029") {
		return s
	}
	return strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`).Replace(s)
}

// FromAny converts plain Go data (as produced by encoding/json or
// Interface) into a Value.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Int(int64(x)), nil
		}
		return Real(x), nil
	case json.Number:
		return decodeNumber(x)
	case map[string]any:
		obj := make(Object, len(x))
		for k, elem := range x {
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, err
			}
			obj[k] = ev
		}
		return FromObject(obj), nil
	case []any:
		arr := make(Array, 0, len(x))
		for _, elem := range x {
			ev, err := FromAny(elem)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, ev)
		}
		return FromArray(arr), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported Go type %T", ErrTypeMismatch, v)
}
