package starlark

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"unicode"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/macro"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ThisName is the global bound to the whole scope value.
const ThisName = "this"

// DefaultMaxSteps bounds the work of a single expression.
const DefaultMaxSteps = 1_000_000

// Evaluator evaluates template expressions with Starlark.
// It implements lg.ExpressionEvaluator and is safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	globals  starlark.StringDict // builtins and macro namespaces
	macros   starlark.StringDict
	pool     *ThreadPool
	poolSize int
	maxSteps uint64
	opts     *syntax.FileOptions
	logger   *slog.Logger
}

var _ lg.ExpressionEvaluator = (*Evaluator)(nil)

// Option is a functional option for configuring an Evaluator.
type Option func(*Evaluator)

// WithMacros predeclares macro namespaces.
func WithMacros(macros starlark.StringDict) Option {
	return func(e *Evaluator) {
		maps.Copy(e.macros, macros)
	}
}

// WithMacroRegistry predeclares the namespaces of a macro.Registry.
func WithMacroRegistry(registry *macro.Registry) Option {
	return func(e *Evaluator) {
		if registry != nil {
			maps.Copy(e.macros, registry.ToStarlarkDict())
		}
	}
}

// WithMaxSteps bounds the Starlark steps of one expression; 0 disables
// the bound.
func WithMaxSteps(n uint64) Option {
	return func(e *Evaluator) { e.maxSteps = n }
}

// WithPoolSize sets how many idle threads are kept.
func WithPoolSize(n int) Option {
	return func(e *Evaluator) { e.poolSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		macros:   make(starlark.StringDict),
		maxSteps: DefaultMaxSteps,
		opts:     &syntax.FileOptions{Set: true},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pool = NewThreadPool(e.poolSize, e.maxSteps)
	e.buildGlobals()
	return e
}

func (e *Evaluator) buildGlobals() {
	e.mu.Lock()
	defer e.mu.Unlock()

	globals := Builtins()
	for name, m := range e.macros {
		if _, taken := globals[name]; taken || name == ThisName || name == "exists" {
			e.logger.Warn("macro namespace shadows a builtin and is ignored", slog.String("namespace", name))
			continue
		}
		globals[name] = m
	}
	globals.Freeze()
	e.globals = globals
}

// AddMacros adds macro namespaces. Namespaces named like a builtin are
// rejected.
func (e *Evaluator) AddMacros(macros starlark.StringDict) error {
	for name := range macros {
		if name == ThisName || slices.Contains(BuiltinNames, name) {
			return fmt.Errorf("macro namespace %q conflicts with builtin", name)
		}
	}

	e.mu.Lock()
	maps.Copy(e.macros, macros)
	e.mu.Unlock()

	e.buildGlobals()
	return nil
}

// Globals returns the names predeclared for every expression.
func (e *Evaluator) Globals() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := append(e.globals.Keys(), ThisName, "exists")
	slices.Sort(names)
	return names
}

// Evaluate evaluates expr with the names of scope as globals.
func (e *Evaluator) Evaluate(expr string, scope lg.Scope) (any, error) {
	env, err := e.env(scope)
	if err != nil {
		return nil, &EvalError{Expr: expr, Message: err.Error()}
	}

	thread := e.pool.Get("expr")
	defer e.pool.Put(thread)

	v, err := starlark.EvalOptions(e.opts, thread, "<expr>", expr, env)
	if err != nil {
		return nil, &EvalError{Expr: expr, Message: err.Error()}
	}
	out, err := ToGo(v)
	if err != nil {
		return nil, &EvalError{Expr: expr, Message: err.Error()}
	}
	return out, nil
}

// env builds the globals for one evaluation. Scope names shadow macro
// namespaces but not builtins.
func (e *Evaluator) env(scope lg.Scope) (starlark.StringDict, error) {
	if scope == nil {
		scope = lg.NewMapScope(nil, nil)
	}

	e.mu.RLock()
	base := e.globals
	e.mu.RUnlock()

	names := scope.Names()
	env := make(starlark.StringDict, len(base)+len(names)+2)
	maps.Copy(env, base)

	for _, name := range names {
		if !isIdentifier(name) || name == ThisName || slices.Contains(BuiltinNames, name) {
			continue
		}
		v, _ := scope.Get(name)
		sv, err := GoToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("scope value %q: %w", name, err)
		}
		env[name] = sv
	}

	this, err := GoToStarlark(scope.Value())
	if err != nil {
		return nil, fmt.Errorf("scope value %q: %w", ThisName, err)
	}
	env[ThisName] = this
	env["exists"] = existsBuiltin(scope)
	return env, nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("error evaluating %q: %s", e.Expr, e.Message)
}
