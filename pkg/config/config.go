package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the profile configuration file inside a profile directory.
const FileName = "config.toml"

// Engine kinds.
const (
	EngineGoja     = "goja"
	EngineChromeDP = "chromedp"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ViewerConfig points at the viewer document and the book it opens.
type ViewerConfig struct {
	// DocumentURL is the viewer document: a script for goja, an HTML page
	// for chromedp. Relative paths resolve against the profile.
	DocumentURL string `toml:"documentURL"`
	BookURL     string `toml:"bookURL"`
	Namespace   string `toml:"namespace"`
	// ScriptPath overrides the embedded bridge script.
	ScriptPath string `toml:"scriptPath"`
}

// EngineConfig selects the content context.
type EngineConfig struct {
	Kind                   string `toml:"kind"`
	RemoteURL              string `toml:"remoteURL"`
	Headless               bool   `toml:"headless"`
	TimeoutSeconds         int    `toml:"timeoutSeconds"`
	BreakerFailures        uint32 `toml:"breakerFailures"`
	BreakerCooldownSeconds int    `toml:"breakerCooldownSeconds"`
}

// Timeout returns the per-turn timeout.
func (e EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// BreakerCooldown returns how long engine calls fail fast after
// BreakerFailures consecutive turns timed out.
func (e EngineConfig) BreakerCooldown() time.Duration {
	return time.Duration(e.BreakerCooldownSeconds) * time.Second
}

// StorageConfig defines the annotation store and SQLite tuning options.
type StorageConfig struct {
	Backend     string `toml:"backend"`
	DBPath      string `toml:"dbPath"`
	JournalMode string `toml:"journalMode"`
	Synchronous string `toml:"synchronous"`
}

// IPCConfig defines socket settings.
type IPCConfig struct {
	SocketPath string `toml:"socketPath"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	FilePath    string `toml:"filePath"`
	FileMaxSize int    `toml:"fileMaxSizeMB"`
	FileBackups int    `toml:"fileMaxBackups"`
}

// ProfileConfig aggregates service configuration for a profile.
type ProfileConfig struct {
	ProfileName string        `toml:"profileName"`
	Viewer      ViewerConfig  `toml:"viewer"`
	Engine      EngineConfig  `toml:"engine"`
	Storage     StorageConfig `toml:"storage"`
	IPC         IPCConfig     `toml:"ipc"`
	Logging     LoggingConfig `toml:"logging"`
}

// DefaultProfile returns the configuration written by `folio init`.
func DefaultProfile(name string) *ProfileConfig {
	return &ProfileConfig{
		ProfileName: name,
		Viewer: ViewerConfig{
			DocumentURL: "viewer/viewer.js",
			BookURL:     "http://localhost:8080/book/",
			Namespace:   "Viewer",
		},
		Engine: EngineConfig{
			Kind:                   EngineGoja,
			Headless:               true,
			TimeoutSeconds:         10,
			BreakerFailures:        3,
			BreakerCooldownSeconds: 30,
		},
		Storage: StorageConfig{
			Backend:     BackendMemory,
			DBPath:      "state.db",
			JournalMode: "WAL",
			Synchronous: "NORMAL",
		},
		IPC: IPCConfig{SocketPath: "ipc.sock"},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			FilePath:    "logs/foliod.log",
			FileMaxSize: 10,
			FileBackups: 3,
		},
	}
}

// Load reads config.toml from the provided path.
func Load(path string) (*ProfileConfig, error) {
	var cfg ProfileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadProfile reads the configuration of a profile directory.
func LoadProfile(profileDir string) (*ProfileConfig, error) {
	return Load(filepath.Join(profileDir, FileName))
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *ProfileConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// ResolvePath resolves a profile-relative path. Absolute paths and URLs are
// returned unchanged.
func ResolvePath(profileDir, path string) string {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(profileDir, path)
}

func (cfg *ProfileConfig) validate() error {
	if cfg.ProfileName == "" {
		return fmt.Errorf("profileName required")
	}
	if cfg.Viewer.DocumentURL == "" {
		return fmt.Errorf("viewer.documentURL required")
	}
	if cfg.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socketPath required")
	}
	if cfg.Viewer.Namespace == "" {
		cfg.Viewer.Namespace = "Viewer"
	}

	switch cfg.Engine.Kind {
	case "":
		cfg.Engine.Kind = EngineGoja
	case EngineGoja, EngineChromeDP:
	default:
		return fmt.Errorf("engine.kind %q must be %s or %s", cfg.Engine.Kind, EngineGoja, EngineChromeDP)
	}
	if cfg.Engine.TimeoutSeconds <= 0 {
		cfg.Engine.TimeoutSeconds = 10
	}
	if cfg.Engine.BreakerFailures == 0 {
		cfg.Engine.BreakerFailures = 3
	}
	if cfg.Engine.BreakerCooldownSeconds <= 0 {
		cfg.Engine.BreakerCooldownSeconds = 30
	}

	switch cfg.Storage.Backend {
	case "":
		cfg.Storage.Backend = BackendMemory
	case BackendMemory:
	case BackendSQLite:
		if cfg.Storage.DBPath == "" {
			return fmt.Errorf("storage.dbPath required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend %q must be %s or %s", cfg.Storage.Backend, BackendMemory, BackendSQLite)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.FileBackups < 0 {
		return fmt.Errorf("logging.fileMaxBackups must not be negative")
	}
	return nil
}
