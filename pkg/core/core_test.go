package core

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/folio/pkg/wire"
)

func TestParseLayoutMode(t *testing.T) {
	for _, mode := range LayoutModes {
		got, ok := ParseLayoutMode(string(mode))
		require.True(t, ok, mode)
		assert.Equal(t, mode, got)
	}

	for _, raw := range []string{"", "Single", "scroll", "side-by-side"} {
		_, ok := ParseLayoutMode(raw)
		assert.False(t, ok, raw)
		assert.ErrorIs(t, ValidateLayoutMode(LayoutMode(raw)), ErrInvalidLayoutMode)
	}
}

func TestParseTOC(t *testing.T) {
	entries, err := wire.DecodeArray(`[
		{"title":"Cover","level":0,"link":"cover.xhtml"},
		{"title":"Part One"},
		{"level":2,"link":"ch1.xhtml#s1"},
		{"title":"Odd","level":-3}
	]`)
	require.NoError(t, err)

	toc, err := ParseTOC(entries)
	require.NoError(t, err)
	require.Len(t, toc, 4)

	assert.Equal(t, "Cover", toc[0].Title)
	require.NotNil(t, toc[0].Link)
	assert.Equal(t, "cover.xhtml", *toc[0].Link)

	assert.Nil(t, toc[1].Link, "heading without link")
	assert.Equal(t, 0, toc[1].Level)

	assert.Equal(t, "[unknown]", toc[2].Title)
	assert.Equal(t, 2, toc[2].Level)

	assert.Equal(t, 0, toc[3].Level)

	t.Run("non-object entry", func(t *testing.T) {
		entries, err := wire.DecodeArray(`[{"title":"ok"}, "bad"]`)
		require.NoError(t, err)
		_, err = ParseTOC(entries)
		assert.ErrorIs(t, err, ErrInvalidTOC)
	})
}

func TestColor(t *testing.T) {
	arr, err := wire.DecodeArray(`[128, 64, 255]`)
	require.NoError(t, err)
	c, err := ParseColor(arr)
	require.NoError(t, err)
	assert.Equal(t, RGB(128, 64, 255), c)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, "[128,64,255]", string(data))

	arr, err = wire.DecodeArray(`[300, 0, 0]`)
	require.NoError(t, err)
	_, err = ParseColor(arr)
	assert.ErrorIs(t, err, ErrInvalidColor)

	arr, err = wire.DecodeArray(`[1, 2]`)
	require.NoError(t, err)
	_, err = ParseColor(arr)
	assert.ErrorIs(t, err, wire.ErrMissing)

	var decoded Color
	assert.ErrorIs(t, json.Unmarshal([]byte(`[0,-1,0]`), &decoded), ErrInvalidColor)
}

func TestParsePosition(t *testing.T) {
	arr, err := wire.DecodeArray(`["ch3", "epubcfi(/6/4!/4/2)", 12, 240]`)
	require.NoError(t, err)
	pos, err := ParsePosition(arr)
	require.NoError(t, err)
	assert.Equal(t, Position{Chapter: "ch3", CFI: "epubcfi(/6/4!/4/2)", Current: 12, Total: 240}, pos)

	arr, err = wire.DecodeArray(`["ch3", 7, 12, 240]`)
	require.NoError(t, err)
	_, err = ParsePosition(arr)
	assert.ErrorIs(t, err, wire.ErrTypeMismatch)
}

func TestFontScale(t *testing.T) {
	assert.Equal(t, 1.25, StepFontScale(DefaultFontScale, 1))
	assert.Equal(t, MaxFontScale, StepFontScale(3.9, 1))
	assert.Equal(t, MinFontScale, StepFontScale(0.3, -1))
	assert.NoError(t, ValidateFontScale(2))
	assert.ErrorIs(t, ValidateFontScale(0), ErrInvalidFontScale)
}

func TestValidateBookURL(t *testing.T) {
	assert.NoError(t, ValidateBookURL("https://books.example/book/"))
	assert.NoError(t, ValidateBookURL("file:///srv/books/moby/"))
	assert.ErrorIs(t, ValidateBookURL(""), ErrInvalidURL)
	assert.ErrorIs(t, ValidateBookURL("app://loadBook"), ErrInvalidURL)
}

func TestIDs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewAnnotationID()
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
	a, b := NewTraceID(), NewTraceID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b, "trace ids are monotonic")
}
