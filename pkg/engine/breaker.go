package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("content context unavailable")

const (
	defaultMaxFailures uint32 = 3
	defaultCooldown           = 30 * time.Second
)

// BreakerConfig tunes Guard.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive stalls before calls fail
	// fast.
	MaxFailures uint32
	// Cooldown is how long calls fail fast before a trial call is let through.
	Cooldown time.Duration
}

// Guarded wraps an Engine with a circuit breaker. Only stalls and a closed
// engine count as failures; script exceptions are the content's business
// and pass through untouched.
type Guarded struct {
	inner   Engine
	breaker *gobreaker.CircuitBreaker[string]
}

var _ Engine = (*Guarded)(nil)

// Guard wraps inner.
func Guard(inner Engine, cfg BreakerConfig, logger *slog.Logger) *Guarded {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "engine",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return !stalled(err)
		},
	})
	return &Guarded{inner: inner, breaker: cb}
}

func stalled(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrClosed)
}

type guardKey struct{}

// execute runs fn through the breaker. Calls nested inside a guarded call
// have already been admitted and run directly.
func (g *Guarded) execute(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if owner, _ := ctx.Value(guardKey{}).(*Guarded); owner == g {
		return fn(ctx)
	}
	ctx = context.WithValue(ctx, guardKey{}, g)
	out, err := g.breaker.Execute(func() (string, error) { return fn(ctx) })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, err
}

// Evaluate implements Engine.
func (g *Guarded) Evaluate(ctx context.Context, script string) (string, error) {
	return g.execute(ctx, func(ctx context.Context) (string, error) {
		return g.inner.Evaluate(ctx, script)
	})
}

// Do implements Engine.
func (g *Guarded) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := g.execute(ctx, func(ctx context.Context) (string, error) {
		return "", g.inner.Do(ctx, fn)
	})
	return err
}

// Open implements Engine. Loading a document is not guarded so a reopen can
// always be attempted.
func (g *Guarded) Open(ctx context.Context, url string) error {
	return g.inner.Open(ctx, url)
}

// Close implements Engine.
func (g *Guarded) Close() error {
	return g.inner.Close()
}

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}
