// Package engine defines the content contexts a bridge can drive.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BindingName is the global function content calls to hand an envelope to
// the host without a real navigation.
const BindingName = "__appBridge"

// ErrClosed is returned by engines after Close.
var ErrClosed = errors.New("engine closed")

// Hooks connect an engine to its host. Both run on the engine's executor,
// so they may evaluate scripts with the context they receive.
type Hooks struct {
	// Navigate is offered every navigation the content attempts. It
	// reports whether the host consumed it.
	Navigate func(ctx context.Context, url string) bool
	// Loaded runs after a document finished loading.
	Loaded func(ctx context.Context, url string)
}

// Engine is a content context with a single serialized executor. Evaluate
// called from inside Do or a hook runs inline; called from anywhere else it
// waits for the executor.
type Engine interface {
	Evaluate(ctx context.Context, script string) (string, error)
	Open(ctx context.Context, url string) error
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	Close() error
}

// ResultText converts a JSON-encoded script result to the text form the
// bridge expects: strings unquoted, undefined and null empty, anything else
// as its JSON text.
func ResultText(raw []byte) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode result: %w", err)
		}
		return s, nil
	}
	return text, nil
}

// LocalPath maps a file URL or plain path to a filesystem path.
func LocalPath(url string) (string, error) {
	path := url
	if strings.HasPrefix(url, "file://") {
		path = strings.TrimPrefix(url, "file://")
	} else if strings.Contains(url, "://") {
		return "", fmt.Errorf("not a local document: %s", url)
	}
	if path == "" {
		return "", errors.New("empty document path")
	}
	return filepath.Abs(path)
}

// FileURL returns the file URL for path, leaving URLs untouched.
func FileURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

// Exists reports whether a local document is present.
func Exists(url string) bool {
	path, err := LocalPath(url)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
