package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/bridge"
	"github.com/rexliu/folio/pkg/config"
	"github.com/rexliu/folio/pkg/engine"
	"github.com/rexliu/folio/pkg/engine/chromedpengine"
	"github.com/rexliu/folio/pkg/engine/gojaengine"
	"github.com/rexliu/folio/pkg/ipc"
	"github.com/rexliu/folio/pkg/logging"
	"github.com/rexliu/folio/pkg/storage/sqlite"
)

func main() {
	profile := flag.String("profile", "./_dev_profile", "Path to profile directory")
	socket := flag.String("socket", "", "Override IPC socket path (optional)")
	flag.Parse()

	logger := logging.New("foliod")
	logger.Info("starting daemon", "profile", *profile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *profile, *socket, logger); err != nil {
		logger.Error("fatal error", "err", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

type daemon struct {
	cfg        *config.ProfileConfig
	profileDir string
	engine     engine.Engine
	bridge     *bridge.Bridge
	session    *session
	events     *eventHub
	logger     *slog.Logger

	mu      sync.Mutex
	bookURL string
	fatal   chan error
}

func run(ctx context.Context, profileDir, socketOverride string, logger *logging.Logger) error {
	cfg, err := config.LoadProfile(profileDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logCfg := cfg.Logging
	logCfg.FilePath = config.ResolvePath(profileDir, logCfg.FilePath)
	if err := logger.Configure("foliod", logCfg); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	highlights, bookmarks, closeStores, err := openStores(ctx, cfg, profileDir)
	if err != nil {
		return err
	}
	defer closeStores()

	d, err := newDaemon(cfg, profileDir, logger.Logger, highlights, bookmarks)
	if err != nil {
		return err
	}
	defer d.engine.Close()

	socketPath := socketOverride
	if socketPath == "" {
		socketPath = config.ResolvePath(profileDir, cfg.IPC.SocketPath)
	}
	if err := cleanupSocket(socketPath); err != nil {
		return err
	}

	srv := ipc.NewServer(logger.Logger)
	d.registerHandlers(srv)
	if err := srv.Start(ctx, socketPath); err != nil {
		return fmt.Errorf("start ipc: %w", err)
	}
	defer func() {
		srv.Stop()
		cleanupSocket(socketPath)
	}()

	if err := d.open(ctx); err != nil {
		return err
	}
	logger.Info("daemon ready", "socket", socketPath, "engine", cfg.Engine.Kind)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-d.fatal:
		return err
	}
}

// newDaemon builds the engine and the bridge around it. The engine hooks
// reach the bridge through d, which is filled in before the document opens.
func newDaemon(cfg *config.ProfileConfig, profileDir string, logger *slog.Logger, highlights, bookmarks annotations.Store) (*daemon, error) {
	script := ""
	if cfg.Viewer.ScriptPath != "" {
		raw, err := os.ReadFile(config.ResolvePath(profileDir, cfg.Viewer.ScriptPath))
		if err != nil {
			return nil, fmt.Errorf("read bridge script: %w", err)
		}
		script = string(raw)
	}

	hub := newEventHub(logger)
	d := &daemon{
		cfg:        cfg,
		profileDir: profileDir,
		session:    newSession(hub),
		events:     hub,
		logger:     logger,
		bookURL:    cfg.Viewer.BookURL,
		fatal:      make(chan error, 1),
	}
	eng, err := newEngine(cfg.Engine, logger, engine.Hooks{
		Navigate: d.navigate,
		Loaded:   d.loaded,
	})
	if err != nil {
		return nil, err
	}
	d.engine = engine.Guard(eng, engine.BreakerConfig{
		MaxFailures: cfg.Engine.BreakerFailures,
		Cooldown:    cfg.Engine.BreakerCooldown(),
	}, logger)
	d.bridge = bridge.New(d.engine, d.session, bridge.Options{
		Namespace:  cfg.Viewer.Namespace,
		Script:     script,
		Logger:     logger,
		Highlights: highlights,
		Bookmarks:  bookmarks,
	})
	return d, nil
}

func newEngine(cfg config.EngineConfig, logger *slog.Logger, hooks engine.Hooks) (engine.Engine, error) {
	switch cfg.Kind {
	case config.EngineChromeDP:
		eng, err := chromedpengine.New(chromedpengine.Config{
			RemoteURL: cfg.RemoteURL,
			Headless:  cfg.Headless,
			Timeout:   cfg.Timeout(),
			Logger:    logger,
		}, hooks)
		if err != nil {
			return nil, fmt.Errorf("start chromedp engine: %w", err)
		}
		return eng, nil
	default:
		return gojaengine.New(gojaengine.Config{Timeout: cfg.Timeout(), Logger: logger}, hooks), nil
	}
}

// openStores returns the highlight and bookmark stores for the configured
// backend and a func releasing them.
func openStores(ctx context.Context, cfg *config.ProfileConfig, profileDir string) (annotations.Store, annotations.Store, func() error, error) {
	if cfg.Storage.Backend != config.BackendSQLite {
		return annotations.NewMemoryStore(), annotations.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := sqlite.Open(config.ResolvePath(profileDir, cfg.Storage.DBPath), sqlite.Options{
		JournalMode: cfg.Storage.JournalMode,
		Synchronous: cfg.Storage.Synchronous,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("init sqlite: %w", err)
	}
	return store.Annotations(annotations.KindHighlight), store.Annotations(annotations.KindBookmark), store.Close, nil
}

func (d *daemon) documentURL() string {
	return engine.FileURL(config.ResolvePath(d.profileDir, d.cfg.Viewer.DocumentURL))
}

func (d *daemon) open(ctx context.Context) error {
	url := d.documentURL()
	if err := d.engine.Open(ctx, url); err != nil {
		return fmt.Errorf("open viewer %s: %w", url, err)
	}
	return nil
}

func (d *daemon) navigate(ctx context.Context, url string) bool {
	return d.bridge.HandleNavigation(ctx, url)
}

// loaded binds the bridge into the fresh document and reopens the current
// book. A document that cannot be bound leaves the reader unusable, so the
// daemon stops.
func (d *daemon) loaded(ctx context.Context, url string) {
	d.bridge.Reset()
	if err := d.bridge.Bind(ctx); err != nil {
		d.logger.Error("bridge bind failed", "document", url, "err", err)
		select {
		case d.fatal <- err:
		default:
		}
		return
	}
	if book := d.currentBook(); book != "" {
		d.loadBook(ctx, book)
	}
}

func (d *daemon) currentBook() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bookURL
}

func (d *daemon) loadBook(ctx context.Context, url string) {
	d.mu.Lock()
	d.bookURL = url
	d.mu.Unlock()
	d.session.bookLoaded(url)
	d.bridge.LoadBook(ctx, url)
}

func cleanupSocket(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
