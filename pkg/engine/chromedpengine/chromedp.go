// Package chromedpengine hosts the viewer in a Chrome tab driven over the
// DevTools protocol. Content reaches the host through a runtime binding;
// binding calls and load events are queued and serviced on the executor.
package chromedpengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/rexliu/folio/pkg/engine"
)

// Config holds configuration for the browser.
type Config struct {
	// RemoteURL is the DevTools WebSocket endpoint of a running Chrome.
	// If empty, a local Chrome instance is launched.
	RemoteURL string
	// Headless controls whether a locally launched Chrome runs headless.
	Headless bool
	// Timeout is the per-turn timeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

type eventKind int

const (
	eventNavigate eventKind = iota
	eventLoaded
)

type event struct {
	kind eventKind
	url  string
}

// Engine drives one Chrome tab.
type Engine struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	hooks         engine.Hooks
	timeout       time.Duration
	logger        *slog.Logger
	closed        bool

	events chan event
	done   chan struct{}
}

var _ engine.Engine = (*Engine)(nil)

type heldKey struct{}

// New starts or connects to Chrome, opens a tab and installs the bridge
// binding.
func New(cfg Config, hooks engine.Hooks) (*Engine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("engine", "chromedp")

	e := &Engine{
		hooks:   hooks,
		timeout: cfg.Timeout,
		logger:  logger,
		events:  make(chan event, 64),
		done:    make(chan struct{}),
	}

	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		logger.Info("chromedp connecting to remote browser", "url", cfg.RemoteURL)
	} else {
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("allow-file-access-from-files", true),
			chromedp.WindowSize(1024, 768),
		)
		allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		logger.Info("chromedp launching local browser", "headless", cfg.Headless)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Error(fmt.Sprintf(format, args...))
		}),
		chromedp.WithDebugf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	e.browserCancel = browserCancel
	e.tabCtx, e.tabCancel = chromedp.NewContext(browserCtx)

	chromedp.ListenTarget(e.tabCtx, e.listen)

	// The first Run binds the session to tabCtx, so it must not carry a
	// derived deadline.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(e.tabCtx, runtime.AddBinding(engine.BindingName)) }()
	select {
	case err := <-started:
		if err != nil {
			e.shutdown()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-time.After(cfg.Timeout):
		e.shutdown()
		return nil, fmt.Errorf("start browser: timed out after %v", cfg.Timeout)
	}

	go e.loop()
	logger.Info("chromedp browser started")
	return e, nil
}

// listen runs on the chromedp event goroutine and must not issue commands.
func (e *Engine) listen(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name == engine.BindingName {
			e.enqueue(event{kind: eventNavigate, url: ev.Payload})
		}
	case *page.EventLoadEventFired:
		e.enqueue(event{kind: eventLoaded})
	}
}

func (e *Engine) enqueue(ev event) {
	select {
	case e.events <- ev:
	case <-e.done:
	default:
		e.logger.Warn("event queue full, dropping", "kind", ev.kind, "url", ev.url)
	}
}

func (e *Engine) loop() {
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.events:
			err := e.Do(context.Background(), func(ctx context.Context) error {
				switch ev.kind {
				case eventNavigate:
					if e.hooks.Navigate == nil || !e.hooks.Navigate(ctx, ev.url) {
						e.logger.Debug("navigation ignored", "url", ev.url)
					}
				case eventLoaded:
					var loc string
					if err := e.run(ctx, chromedp.Location(&loc)); err != nil {
						return err
					}
					e.logger.Info("document loaded", "url", loc)
					if e.hooks.Loaded != nil {
						e.hooks.Loaded(ctx, loc)
					}
				}
				return nil
			})
			if err != nil {
				e.logger.Warn("event failed", "kind", ev.kind, "err", err)
			}
		}
	}
}

// Do runs fn as one executor turn. Nested calls from inside a turn run
// inline.
func (e *Engine) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(heldKey{}).(*Engine); owner == e {
		return fn(ctx)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return fn(context.WithValue(ctx, heldKey{}, e))
}

// run executes actions on the tab, bounded by ctx.
func (e *Engine) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(e.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

// Evaluate runs script in the page and returns its result as text.
func (e *Engine) Evaluate(ctx context.Context, script string) (string, error) {
	var out string
	err := e.Do(ctx, func(ctx context.Context) error {
		var raw []byte
		if err := e.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
			return err
		}
		text, err := engine.ResultText(raw)
		out = text
		return err
	})
	return out, err
}

// Open navigates the tab to url. The Loaded hook fires from the load event.
func (e *Engine) Open(ctx context.Context, url string) error {
	return e.Do(ctx, func(ctx context.Context) error {
		return e.run(ctx, chromedp.Navigate(url))
	})
}

// Close shuts down the tab and browser.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.shutdown()
	return nil
}

func (e *Engine) shutdown() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
	if e.tabCancel != nil {
		e.tabCancel()
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	e.logger.Info("chromedp browser closed")
}
