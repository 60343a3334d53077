package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: ``, want: ""},
		{raw: `null`, want: ""},
		{raw: `"single"`, want: "single"},
		{raw: `"[1,2,3]"`, want: "[1,2,3]"},
		{raw: `1.25`, want: "1.25"},
		{raw: `true`, want: "true"},
		{raw: `{"a":1}`, want: `{"a":1}`},
	}
	for _, tt := range tests {
		got, err := ResultText([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ResultText([]byte(`"unterminated`))
	assert.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "viewer.js")
	require.NoError(t, os.WriteFile(doc, []byte("var Viewer = {};"), 0o600))

	url := FileURL(doc)
	assert.Equal(t, "file://"+filepath.ToSlash(doc), url)
	path, err := LocalPath(url)
	require.NoError(t, err)
	assert.Equal(t, doc, path)
	assert.True(t, Exists(url))
	assert.True(t, Exists(doc))

	_, err = LocalPath("https://books.example/viewer/index.html")
	assert.Error(t, err)
	assert.Equal(t, "https://x/y", FileURL("https://x/y"))
	assert.False(t, Exists(filepath.Join(dir, "missing.js")))
}
