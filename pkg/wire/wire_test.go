package wire

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArray(t *testing.T) {
	t.Run("blank payload is empty array", func(t *testing.T) {
		for _, text := range []string{"", "   ", "\n"} {
			arr, err := DecodeArray(text)
			require.NoError(t, err)
			assert.Empty(t, arr)
		}
	})

	t.Run("mixed kinds", func(t *testing.T) {
		arr, err := DecodeArray(`["ch1", 3, 2.5, true, null, {"note":"x"}, [1,2]]`)
		require.NoError(t, err)
		require.Len(t, arr, 7)
		assert.Equal(t, KindString, arr[0].Kind())
		assert.Equal(t, KindInt, arr[1].Kind())
		assert.Equal(t, KindReal, arr[2].Kind())
		assert.Equal(t, KindBool, arr[3].Kind())
		assert.True(t, arr[4].IsNull())
		assert.Equal(t, KindObject, arr[5].Kind())
		assert.Equal(t, KindArray, arr[6].Kind())
	})

	t.Run("malformed", func(t *testing.T) {
		for _, text := range []string{`[1,`, `[1,]`, `{"a":1}`, `[1] [2]`, `"str"`} {
			_, err := DecodeArray(text)
			assert.ErrorIs(t, err, ErrMalformed, text)
		}
	})

	t.Run("large integers fall back to real", func(t *testing.T) {
		arr, err := DecodeArray(`[123456789012345678901234567890]`)
		require.NoError(t, err)
		assert.Equal(t, KindReal, arr[0].Kind())
	})
}

func TestArrayExtraction(t *testing.T) {
	arr, err := DecodeArray(`["title", 7, 0.5, false, [1], {"k":"v"}, 4.0]`)
	require.NoError(t, err)

	s, err := arr.GetString(0)
	require.NoError(t, err)
	assert.Equal(t, "title", s)

	n, err := arr.GetInt(1)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	f, err := arr.GetDouble(1)
	require.NoError(t, err, "integers widen to double")
	assert.Equal(t, 7.0, f)

	_, err = arr.GetInt(2)
	assert.ErrorIs(t, err, ErrTypeMismatch, "fractional reals do not narrow")

	n, err = arr.GetInt(6)
	require.NoError(t, err, "integral reals narrow")
	assert.EqualValues(t, 4, n)

	bounds, err := DecodeArray(`[9223372036854775808.0, -9223372036854775808.0]`)
	require.NoError(t, err)
	_, err = bounds.GetInt(0)
	assert.ErrorIs(t, err, ErrTypeMismatch, "2^63 does not fit an int64")
	n, err = bounds.GetInt(1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), n)

	b, err := arr.GetBool(3)
	require.NoError(t, err)
	assert.False(t, b)

	inner, err := arr.GetArray(4)
	require.NoError(t, err)
	assert.Len(t, inner, 1)

	obj, err := arr.GetObject(5)
	require.NoError(t, err)
	v, err := obj.GetString("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	t.Run("type mismatch names index and kinds", func(t *testing.T) {
		_, err := arr.GetString(1)
		require.ErrorIs(t, err, ErrTypeMismatch)
		var accessErr *AccessError
		require.True(t, errors.As(err, &accessErr))
		assert.Equal(t, 1, accessErr.Index)
		assert.Equal(t, KindString, accessErr.Want)
		assert.Equal(t, KindInt, accessErr.Got)
		assert.Contains(t, err.Error(), "index 1")
	})

	t.Run("missing index", func(t *testing.T) {
		_, err := arr.GetBool(42)
		assert.ErrorIs(t, err, ErrMissing)
		_, err = arr.GetString(-1)
		assert.ErrorIs(t, err, ErrMissing)
	})

	t.Run("optional variants", func(t *testing.T) {
		_, ok := arr.OptString(1)
		assert.False(t, ok)
		_, ok = arr.OptString(99)
		assert.False(t, ok)
		s, ok := arr.OptString(0)
		assert.True(t, ok)
		assert.Equal(t, "title", s)
		_, ok = obj.OptInt("k")
		assert.False(t, ok)
	})

	t.Run("keyed missing", func(t *testing.T) {
		_, err := obj.GetString("uuid")
		require.ErrorIs(t, err, ErrMissing)
		assert.Contains(t, err.Error(), `key "uuid"`)
	})
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "null"},
		{name: "bool", in: true, want: "true"},
		{name: "int", in: 42, want: "42"},
		{name: "float", in: 1.25, want: "1.25"},
		{name: "plain string", in: "single", want: `"single"`},
		{name: "quote", in: `say "hi"`, want: `"say \"hi\""`},
		{name: "backslash", in: `a\b`, want: `"a\\b"`},
		{name: "newline", in: "a\nb", want: `"a\nb"`},
		{name: "line separator", in: "a\u2028b", want: `"a\u2028b"`},
		{name: "nil pointer", in: (*string)(nil), want: "null"},
		{name: "ints", in: []int{1, 2, 3}, want: "[1,2,3]"},
		{name: "wire string", in: String(`x"`), want: `"x\""`},
		{name: "wire array", in: Array{Int(1), String("a")}, want: `[1,"a"]`},
		{name: "wire object", in: Object{"note": String("x")}, want: `{"note":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("string pointer", func(t *testing.T) {
		s := "kw"
		got, err := Literal(&s)
		require.NoError(t, err)
		assert.Equal(t, `"kw"`, got)
	})

	t.Run("non-finite rejected", func(t *testing.T) {
		_, err := Literal(math.Inf(1))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestPointer(t *testing.T) {
	obj, err := DecodeObject(`{"text":"quoted","range":{"start":3,"end":9},"tags":["a","b"]}`)
	require.NoError(t, err)

	v, err := obj.Pointer("/text")
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "quoted", s)

	v, err = obj.Pointer("/range/end")
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	assert.EqualValues(t, 9, n)

	v, err = obj.Pointer("/tags/1")
	require.NoError(t, err)
	s, _ = v.AsString()
	assert.Equal(t, "b", s)

	_, err = obj.Pointer("/missing")
	assert.ErrorIs(t, err, ErrMissing)

	t.Run("null member is present", func(t *testing.T) {
		obj, err := DecodeObject(`{"a":null,"list":[null]}`)
		require.NoError(t, err)

		v, err := obj.Pointer("/a")
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		v, err = obj.Pointer("/list/0")
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		_, err = obj.Pointer("/b")
		assert.ErrorIs(t, err, ErrMissing)
		_, err = obj.Pointer("/a/b")
		assert.ErrorIs(t, err, ErrMissing)
		_, err = obj.Pointer("/list/1")
		assert.ErrorIs(t, err, ErrMissing)
	})
}

func TestValueJSONRoundTrip(t *testing.T) {
	in := `{"a":[1,2.5,"x",true,null]}`
	v, err := Decode(in)
	require.NoError(t, err)
	assert.JSONEq(t, in, v.String())

	data, err := Array(nil).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
