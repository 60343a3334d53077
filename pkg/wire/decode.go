package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decode parses JSON text into a Value. Numbers without a fraction or
// exponent decode as integers when they fit in 64 bits, otherwise as reals.
func Decode(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("%w: trailing data after value", ErrMalformed)
	}
	return v, nil
}

// DecodeArray parses an argument list. A blank payload yields an empty
// array so calls without arguments never fail here.
func DecodeArray(text string) (Array, error) {
	if strings.TrimSpace(text) == "" {
		return Array{}, nil
	}
	v, err := Decode(text)
	if err != nil {
		return nil, err
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil, fmt.Errorf("%w: want array, got %s", ErrMalformed, v.Kind())
	}
	return arr, nil
}

// DecodeObject parses a JSON object.
func DecodeObject(text string) (Object, error) {
	v, err := Decode(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("%w: want object, got %s", ErrMalformed, v.Kind())
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, errors.New("unexpected end of input")
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return decodeNumber(t)
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return FromArray(arr), nil
		case '{':
			obj := Object{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key %v is not a string", keyTok)
				}
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj[key] = elem
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return FromObject(obj), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func decodeNumber(n json.Number) (Value, error) {
	text := n.String()
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, fmt.Errorf("number %s: %w", text, err)
	}
	return Real(f), nil
}
