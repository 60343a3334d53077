// Package bridge connects the native host to the viewer running in an
// embedded content context. Host to content calls are generated script
// text; content to host calls arrive as navigations to app:// URLs.
package bridge

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/rexliu/folio/pkg/annotations"
	"github.com/rexliu/folio/pkg/core"
	"github.com/rexliu/folio/pkg/wire"
)

const (
	// Scheme marks a navigation as an inbound call envelope.
	Scheme = "app"
	// DefaultNamespace is the content-global object outbound calls target.
	DefaultNamespace = "Viewer"
)

// ErrUnknownMethod is logged for envelopes naming no registered route.
var ErrUnknownMethod = errors.New("unknown method")

// ErrBind indicates the bridge script could not be installed.
var ErrBind = errors.New("bind bridge script")

//go:embed bridge.js
var defaultScript string

// DefaultScript returns the embedded binding script.
func DefaultScript() string {
	return defaultScript
}

// Options configures a Bridge. Zero values select defaults.
type Options struct {
	Namespace  string
	Script     string
	Logger     *slog.Logger
	Highlights annotations.Store
	Bookmarks  annotations.Store
}

// Bridge dispatches inbound calls and exposes the outbound viewer surface.
type Bridge struct {
	invoker    *Invoker
	scene      Scene
	script     string
	logger     *slog.Logger
	highlights annotations.Store
	bookmarks  annotations.Store
	bound      atomic.Bool
}

// New returns a bridge evaluating scripts through eval and reporting
// content events to scene.
func New(eval Evaluator, scene Scene, opts Options) *Bridge {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Script == "" {
		opts.Script = defaultScript
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Highlights == nil {
		opts.Highlights = annotations.NewMemoryStore()
	}
	if opts.Bookmarks == nil {
		opts.Bookmarks = annotations.NewMemoryStore()
	}
	if scene == nil {
		scene = NopScene{}
	}
	logger := opts.Logger.With("component", "bridge")
	return &Bridge{
		invoker:    NewInvoker(eval, opts.Namespace, logger),
		scene:      scene,
		script:     opts.Script,
		logger:     logger,
		highlights: opts.Highlights,
		bookmarks:  opts.Bookmarks,
	}
}

// Invoker returns the outbound invoker.
func (b *Bridge) Invoker() *Invoker {
	return b.invoker
}

// Highlights returns the highlight store.
func (b *Bridge) Highlights() annotations.Store {
	return b.highlights
}

// Bookmarks returns the bookmark store.
func (b *Bridge) Bookmarks() annotations.Store {
	return b.bookmarks
}

// Store returns the store for kind.
func (b *Bridge) Store(kind annotations.Kind) (annotations.Store, bool) {
	switch kind {
	case annotations.KindHighlight:
		return b.highlights, true
	case annotations.KindBookmark:
		return b.bookmarks, true
	}
	return nil, false
}

// Bind installs the bridge script once the viewer document has loaded.
// Later calls are no-ops. A failure here leaves the content unable to
// reach the host and should be treated as fatal by the caller.
func (b *Bridge) Bind(ctx context.Context) error {
	if b.bound.Load() {
		return nil
	}
	if _, err := b.invoker.eval.Evaluate(ctx, b.script); err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	b.bound.Store(true)
	b.logger.Info("bridge bound", "namespace", b.invoker.Namespace())
	return nil
}

// Bound reports whether Bind has succeeded.
func (b *Bridge) Bound() bool {
	return b.bound.Load()
}

// Reset forgets the binding so the next Bind reinstalls the script, for
// when the content context reloaded its document.
func (b *Bridge) Reset() {
	b.bound.Store(false)
}

// HandleNavigation services rawURL if it is an envelope. It returns true
// for every app:// URL, including ones that failed, so the caller always
// suppresses the real navigation for them.
func (b *Bridge) HandleNavigation(ctx context.Context, rawURL string) bool {
	scheme, _, ok := strings.Cut(rawURL, ":")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		b.logger.Warn("bridge: dropped envelope", "err", err)
		return true
	}
	b.dispatch(ctx, u.Host, decodeQuery(u, b.logger))
	return true
}

// decodeQuery returns the argument array carried by u. An absent or
// unparseable query yields an empty array.
func decodeQuery(u *url.URL, logger *slog.Logger) wire.Array {
	raw := u.RawQuery
	if raw == "" {
		return wire.Array{}
	}
	text, err := url.PathUnescape(raw)
	if err != nil {
		logger.Warn("bridge: unescape query", "method", u.Host, "err", err)
		return wire.Array{}
	}
	args, err := wire.DecodeArray(text)
	if err != nil {
		logger.Warn("bridge: decode arguments", "method", u.Host, "err", err)
		return wire.Array{}
	}
	return args
}

func (b *Bridge) dispatch(ctx context.Context, method string, args wire.Array) {
	traceID := core.NewTraceID()
	logger := b.logger.With("method", method, "traceId", traceID)

	r, ok := routes[method]
	if !ok {
		logger.Warn("bridge: dropped call", "err", ErrUnknownMethod, "args", len(args))
		return
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("bridge: handler panic", "panic", p)
		}
	}()
	if len(args) < r.arity {
		logger.Warn("bridge: call failed", "err", fmt.Errorf("%w: want %d arguments, got %d", wire.ErrMissing, r.arity, len(args)))
		return
	}
	if err := r.handle(ctx, b, args); err != nil {
		logger.Warn("bridge: call failed", "err", err)
		return
	}
	logger.Debug("bridge: call handled")
}
