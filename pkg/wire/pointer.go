package wire

import (
	"fmt"

	"github.com/qri-io/jsonpointer"
)

// Pointer resolves an RFC 6901 JSON pointer against v. The empty pointer
// returns v itself. A path holding JSON null yields Null; an absent path
// yields ErrMissing.
func (v Value) Pointer(path string) (Value, error) {
	if path == "" {
		return v, nil
	}
	ptr, err := jsonpointer.Parse(path)
	if err != nil {
		return Value{}, fmt.Errorf("invalid pointer %q: %w", path, err)
	}
	doc := v.Interface()
	result, err := ptr.Eval(doc)
	if err != nil || (result == nil && !present(ptr, doc)) {
		return Value{}, keyError(path, KindNull, KindNull, ErrMissing)
	}
	return FromAny(result)
}

// present reports whether the last token of ptr names an existing member.
// jsonpointer returns (nil, nil) for absent object keys.
func present(ptr jsonpointer.Pointer, doc any) bool {
	if len(ptr) == 0 {
		return true
	}
	parent, err := ptr[:len(ptr)-1].Eval(doc)
	if err != nil {
		return false
	}
	switch p := parent.(type) {
	case map[string]any:
		_, ok := p[ptr[len(ptr)-1]]
		return ok
	case []any:
		return true
	}
	return false
}

// Pointer resolves path against the object.
func (o Object) Pointer(path string) (Value, error) {
	return FromObject(o).Pointer(path)
}
