package wire

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrMalformed indicates text that is not valid JSON for the expected shape.
	ErrMalformed = errors.New("malformed wire value")
	// ErrMissing indicates an absent index or key.
	ErrMissing = errors.New("missing argument")
	// ErrTypeMismatch indicates a value whose tag differs from the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// AccessError identifies the failing index or key of an extraction.
type AccessError struct {
	Index int // -1 for keyed access
	Key   string
	Want  Kind
	Got   Kind
	Err   error
}

func (e *AccessError) Error() string {
	where := "key " + strconv.Quote(e.Key)
	if e.Index >= 0 {
		where = "index " + strconv.Itoa(e.Index)
	}
	if errors.Is(e.Err, ErrMissing) {
		return fmt.Sprintf("%s: %v (want %s)", where, e.Err, e.Want)
	}
	return fmt.Sprintf("%s: %v (want %s, got %s)", where, e.Err, e.Want, e.Got)
}

func (e *AccessError) Unwrap() error { return e.Err }

func indexError(i int, want Kind, got Kind, err error) error {
	return &AccessError{Index: i, Want: want, Got: got, Err: err}
}

func keyError(key string, want Kind, got Kind, err error) error {
	return &AccessError{Index: -1, Key: key, Want: want, Got: got, Err: err}
}

// Len reports the number of elements.
func (a Array) Len() int { return len(a) }

// At returns the element at i.
func (a Array) At(i int) (Value, bool) {
	if i < 0 || i >= len(a) {
		return Value{}, false
	}
	return a[i], true
}

func (a Array) at(i int, want Kind) (Value, error) {
	v, ok := a.At(i)
	if !ok {
		return Value{}, indexError(i, want, KindNull, ErrMissing)
	}
	return v, nil
}

// GetString extracts a string at index i.
func (a Array) GetString(i int) (string, error) {
	v, err := a.at(i, KindString)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", indexError(i, KindString, v.Kind(), ErrTypeMismatch)
	}
	return s, nil
}

// GetInt extracts an integer at index i.
func (a Array) GetInt(i int) (int64, error) {
	v, err := a.at(i, KindInt)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, indexError(i, KindInt, v.Kind(), ErrTypeMismatch)
	}
	return n, nil
}

// GetDouble extracts a number at index i, widening integers.
func (a Array) GetDouble(i int) (float64, error) {
	v, err := a.at(i, KindReal)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsDouble()
	if !ok {
		return 0, indexError(i, KindReal, v.Kind(), ErrTypeMismatch)
	}
	return f, nil
}

// GetBool extracts a boolean at index i.
func (a Array) GetBool(i int) (bool, error) {
	v, err := a.at(i, KindBool)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, indexError(i, KindBool, v.Kind(), ErrTypeMismatch)
	}
	return b, nil
}

// GetArray extracts an array at index i.
func (a Array) GetArray(i int) (Array, error) {
	v, err := a.at(i, KindArray)
	if err != nil {
		return nil, err
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil, indexError(i, KindArray, v.Kind(), ErrTypeMismatch)
	}
	return arr, nil
}

// GetObject extracts an object at index i.
func (a Array) GetObject(i int) (Object, error) {
	v, err := a.at(i, KindObject)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, indexError(i, KindObject, v.Kind(), ErrTypeMismatch)
	}
	return obj, nil
}

// OptString returns the string at i, or false when absent or not a string.
func (a Array) OptString(i int) (string, bool) {
	s, err := a.GetString(i)
	return s, err == nil
}

// OptInt returns the integer at i, or false.
func (a Array) OptInt(i int) (int64, bool) {
	n, err := a.GetInt(i)
	return n, err == nil
}

// OptDouble returns the number at i, or false.
func (a Array) OptDouble(i int) (float64, bool) {
	f, err := a.GetDouble(i)
	return f, err == nil
}

// OptBool returns the boolean at i, or false.
func (a Array) OptBool(i int) (bool, bool) {
	b, err := a.GetBool(i)
	return b, err == nil
}

// OptArray returns the array at i, or false.
func (a Array) OptArray(i int) (Array, bool) {
	arr, err := a.GetArray(i)
	return arr, err == nil
}

// OptObject returns the object at i, or false.
func (a Array) OptObject(i int) (Object, bool) {
	obj, err := a.GetObject(i)
	return obj, err == nil
}

func (o Object) get(key string, want Kind) (Value, error) {
	v, ok := o[key]
	if !ok {
		return Value{}, keyError(key, want, KindNull, ErrMissing)
	}
	return v, nil
}

// GetString extracts a string under key.
func (o Object) GetString(key string) (string, error) {
	v, err := o.get(key, KindString)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", keyError(key, KindString, v.Kind(), ErrTypeMismatch)
	}
	return s, nil
}

// GetInt extracts an integer under key.
func (o Object) GetInt(key string) (int64, error) {
	v, err := o.get(key, KindInt)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, keyError(key, KindInt, v.Kind(), ErrTypeMismatch)
	}
	return n, nil
}

// GetDouble extracts a number under key, widening integers.
func (o Object) GetDouble(key string) (float64, error) {
	v, err := o.get(key, KindReal)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsDouble()
	if !ok {
		return 0, keyError(key, KindReal, v.Kind(), ErrTypeMismatch)
	}
	return f, nil
}

// GetBool extracts a boolean under key.
func (o Object) GetBool(key string) (bool, error) {
	v, err := o.get(key, KindBool)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, keyError(key, KindBool, v.Kind(), ErrTypeMismatch)
	}
	return b, nil
}

// GetArray extracts an array under key.
func (o Object) GetArray(key string) (Array, error) {
	v, err := o.get(key, KindArray)
	if err != nil {
		return nil, err
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil, keyError(key, KindArray, v.Kind(), ErrTypeMismatch)
	}
	return arr, nil
}

// GetObject extracts an object under key.
func (o Object) GetObject(key string) (Object, error) {
	v, err := o.get(key, KindObject)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, keyError(key, KindObject, v.Kind(), ErrTypeMismatch)
	}
	return obj, nil
}

// OptString returns the string under key, or false.
func (o Object) OptString(key string) (string, bool) {
	s, err := o.GetString(key)
	return s, err == nil
}

// OptInt returns the integer under key, or false.
func (o Object) OptInt(key string) (int64, bool) {
	n, err := o.GetInt(key)
	return n, err == nil
}

// OptDouble returns the number under key, or false.
func (o Object) OptDouble(key string) (float64, bool) {
	f, err := o.GetDouble(key)
	return f, err == nil
}

// OptBool returns the boolean under key, or false.
func (o Object) OptBool(key string) (bool, bool) {
	b, err := o.GetBool(key)
	return b, err == nil
}

// OptArray returns the array under key, or false.
func (o Object) OptArray(key string) (Array, bool) {
	arr, err := o.GetArray(key)
	return arr, err == nil
}

// OptObject returns the object under key, or false.
func (o Object) OptObject(key string) (Object, bool) {
	obj, err := o.GetObject(key)
	return obj, err == nil
}
