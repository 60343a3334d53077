package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/folio/pkg/config"
)

func TestConfigureWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "foliod.log")
	logger := New("test")
	require.NoError(t, logger.Configure("foliod", config.LoggingConfig{Level: "debug", Format: "json", FilePath: path}))
	t.Cleanup(func() { logger.Close() })

	assert.Equal(t, slog.LevelDebug, logger.Level())
	logger.Debug("bridge bound", "namespace", "Viewer")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"bridge bound"`)
	assert.Contains(t, string(data), `"component":"foliod"`)
}

func TestConfigureRejectsUnknown(t *testing.T) {
	logger := New("test")
	assert.Error(t, logger.Configure("x", config.LoggingConfig{Level: "chatty"}))
	assert.Error(t, logger.Configure("x", config.LoggingConfig{Format: "xml"}))
}

func TestRollingFileKeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roll.log")
	w, err := newRollingFile(path, 1, 2)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 5; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(name)
		require.NoError(t, err, name)
		assert.LessOrEqual(t, info.Size(), int64(1024*1024), name)
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "only two backups are kept")
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
