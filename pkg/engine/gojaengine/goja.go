// Package gojaengine hosts the viewer in an in-process JavaScript runtime.
// The viewer document is a script file; there is no DOM, so content reaches
// the host through the __appBridge binding or location.assign.
package gojaengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/rexliu/folio/pkg/engine"
)

// Config tunes the runtime.
type Config struct {
	// Timeout bounds one executor turn. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Engine is a goja runtime guarded by a single executor lock.
type Engine struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	hooks   engine.Hooks
	logger  *slog.Logger
	timeout time.Duration
	closed  bool

	// cur is the executor context of the running turn; native callbacks
	// hand it to hooks.
	cur      context.Context
	location string
}

var _ engine.Engine = (*Engine)(nil)

type heldKey struct{}

// New builds a runtime with window, console, location and the bridge
// binding installed.
func New(cfg Config, hooks engine.Hooks) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		vm:       goja.New(),
		hooks:    hooks,
		logger:   cfg.Logger.With("engine", "goja"),
		timeout:  cfg.Timeout,
		cur:      context.Background(),
		location: "about:blank",
	}
	e.install()
	return e
}

func (e *Engine) install() {
	global := e.vm.GlobalObject()
	if err := global.Set("window", global); err != nil {
		e.logger.Error("set window global", "err", err)
	}
	if err := global.Set("self", global); err != nil {
		e.logger.Error("set self global", "err", err)
	}

	console := e.vm.NewObject()
	console.Set("log", e.consoleFunc(slog.LevelInfo))
	console.Set("info", e.consoleFunc(slog.LevelInfo))
	console.Set("warn", e.consoleFunc(slog.LevelWarn))
	console.Set("error", e.consoleFunc(slog.LevelError))
	console.Set("debug", e.consoleFunc(slog.LevelDebug))
	global.Set("console", console)

	location := e.vm.NewObject()
	location.DefineAccessorProperty("href",
		e.vm.ToValue(func(goja.FunctionCall) goja.Value { return e.vm.ToValue(e.location) }),
		e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			e.navigate(call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	location.Set("assign", func(call goja.FunctionCall) goja.Value {
		e.navigate(call.Argument(0).String())
		return goja.Undefined()
	})
	global.Set("location", location)

	global.Set(engine.BindingName, func(call goja.FunctionCall) goja.Value {
		return e.vm.ToValue(e.navigate(call.Argument(0).String()))
	})
}

func (e *Engine) consoleFunc(level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		e.logger.Log(e.cur, level, "console", "message", strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// navigate runs on the executor, inside the script that triggered it.
func (e *Engine) navigate(url string) bool {
	if e.hooks.Navigate != nil && e.hooks.Navigate(e.cur, url) {
		return true
	}
	e.logger.Debug("navigation ignored", "url", url)
	return false
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
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, heldKey{}, e)

	prev := e.cur
	e.cur = ctx
	defer func() { e.cur = prev }()

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(ctx.Err())
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
			e.vm.ClearInterrupt()
		}
	}()
	return fn(ctx)
}

// Evaluate runs script and returns its result as text.
func (e *Engine) Evaluate(ctx context.Context, script string) (string, error) {
	var out string
	err := e.Do(ctx, func(ctx context.Context) error {
		v, err := e.vm.RunString(script)
		if err != nil {
			return scriptError(err)
		}
		out = resultText(v)
		return nil
	})
	return out, err
}

// Open runs the viewer script at url (a file URL or path) as the document
// and then fires the Loaded hook.
func (e *Engine) Open(ctx context.Context, url string) error {
	path, err := engine.LocalPath(url)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	return e.Do(ctx, func(ctx context.Context) error {
		if _, err := e.vm.RunScript(path, string(src)); err != nil {
			return fmt.Errorf("run document %s: %w", path, scriptError(err))
		}
		e.location = engine.FileURL(path)
		e.logger.Info("document loaded", "url", e.location)
		if e.hooks.Loaded != nil {
			e.hooks.Loaded(ctx, e.location)
		}
		return nil
	})
}

// Close rejects further turns.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func resultText(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("script interrupted: %w", cause)
		}
	}
	return err
}
