package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rexliu/folio/pkg/config"
)

// Logger is a slog.Logger whose level and sinks can be reconfigured.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// New returns a text logger on stderr tagged with the component name until
// Configure applies profile settings.
func New(component string) *Logger {
	level := new(slog.LevelVar)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger: slog.New(handler).With("component", component),
		level:  level,
	}
}

// Level returns the active level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Configure applies logging settings from config. Paths in cfg must
// already be resolved.
func (l *Logger) Configure(component string, cfg config.LoggingConfig) error {
	if l == nil {
		return nil
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	l.level.Set(level)

	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o700); err != nil {
			return err
		}
		writer, err := newRollingFile(cfg.FilePath, cfg.FileMaxSize, cfg.FileBackups)
		if err != nil {
			return err
		}
		l.Close()
		l.closer = writer
		out = io.MultiWriter(os.Stderr, writer)
	}

	opts := &slog.HandlerOptions{Level: l.level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	l.Logger = slog.New(handler).With("component", component)
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

type rollingFile struct {
	mu      sync.Mutex
	path    string
	max     int
	backups int
	file    *os.File
}

func newRollingFile(path string, maxMB, backups int) (*rollingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	if backups < 1 {
		backups = 1
	}
	return &rollingFile{path: path, max: maxMB, backups: backups, file: f}, nil
}

func (r *rollingFile) limit() int64 {
	return int64(r.max) * 1024 * 1024
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 {
		if info, err := r.file.Stat(); err == nil && info.Size() > 0 && info.Size()+int64(len(p)) > r.limit() {
			if err := r.rotate(); err != nil {
				return 0, err
			}
		}
	}
	return r.file.Write(p)
}

// rotate shifts path.N to path.N+1, dropping the oldest, then reopens path.
func (r *rollingFile) rotate() error {
	r.file.Close()
	os.Remove(fmt.Sprintf("%s.%d", r.path, r.backups))
	for i := r.backups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", r.path, i), fmt.Sprintf("%s.%d", r.path, i+1))
	}
	os.Rename(r.path, r.path+".1")
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	r.file = f
	return nil
}

func (r *rollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
