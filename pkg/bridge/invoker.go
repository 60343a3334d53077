package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rexliu/folio/pkg/wire"
)

// ErrInvalidCallback indicates a callback name that is not a dotted
// identifier path reachable from the content's global scope.
var ErrInvalidCallback = errors.New("invalid callback name")

var callbackName = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

// Evaluator runs a script inside the content context and returns its
// result as text. Implementations return "" for undefined or null results.
type Evaluator interface {
	Evaluate(ctx context.Context, script string) (string, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, script string) (string, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, script string) (string, error) {
	return f(ctx, script)
}

// Invoker issues host to content calls by generating script text.
type Invoker struct {
	eval      Evaluator
	namespace string
	logger    *slog.Logger
}

// NewInvoker returns an invoker calling functions under namespace.
func NewInvoker(eval Evaluator, namespace string, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{eval: eval, namespace: namespace, logger: logger}
}

// Namespace returns the content-global object calls are made on.
func (i *Invoker) Namespace() string {
	return i.namespace
}

// Call evaluates Namespace.method(args...). The second result is false when
// the script could not be built, the content context rejected it, or it
// produced no value.
func (i *Invoker) Call(ctx context.Context, method string, args ...any) (string, bool) {
	script, err := CallScript(i.target(method), args...)
	if err != nil {
		i.logger.Warn("bridge: encode call", "method", method, "err", err)
		return "", false
	}
	return i.run(ctx, method, script)
}

// Query is Call with the result passed through JSON.stringify, for methods
// returning arrays or objects.
func (i *Invoker) Query(ctx context.Context, method string, args ...any) (string, bool) {
	script, err := CallScript(i.target(method), args...)
	if err != nil {
		i.logger.Warn("bridge: encode query", "method", method, "err", err)
		return "", false
	}
	return i.run(ctx, method, "JSON.stringify("+script+")")
}

// Callback evaluates name(args...) for a callback name supplied by the
// content side.
func (i *Invoker) Callback(ctx context.Context, name string, args ...any) error {
	if !ValidCallbackName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCallback, name)
	}
	script, err := CallScript(name, args...)
	if err != nil {
		return err
	}
	i.run(ctx, name, script)
	return nil
}

func (i *Invoker) target(method string) string {
	if i.namespace == "" {
		return method
	}
	return i.namespace + "." + method
}

func (i *Invoker) run(ctx context.Context, label, script string) (string, bool) {
	out, err := i.eval.Evaluate(ctx, script)
	if err != nil {
		i.logger.Debug("bridge: evaluate", "call", label, "err", err)
		return "", false
	}
	if out == "" {
		return "", false
	}
	return out, true
}

// ValidCallbackName reports whether name is a dotted identifier path such
// as "cb" or "Viewer.onHighlights".
func ValidCallbackName(name string) bool {
	return callbackName.MatchString(name)
}

// CallScript renders target(arg, ...) with every argument encoded as a
// script literal.
func CallScript(target string, args ...any) (string, error) {
	var b strings.Builder
	b.WriteString(target)
	b.WriteByte('(')
	for n, arg := range args {
		if n > 0 {
			b.WriteString(", ")
		}
		lit, err := wire.Literal(arg)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", n, err)
		}
		b.WriteString(lit)
	}
	b.WriteByte(')')
	return b.String(), nil
}
