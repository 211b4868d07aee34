package lg

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// InlineTemplateName is the name given to inline text evaluated with
// Engine.EvaluateInline.
const InlineTemplateName = "__temp__"

// EngineConfig holds configuration for an Engine.
type EngineConfig struct {
	Expressions     ExpressionEvaluator
	DuplicatePolicy DuplicatePolicy
	Seed            *uint64 // fixed variant choice when set
	MaxExpansion    int     // 0 uses DefaultMaxExpansion
	Logger          *slog.Logger
}

// Engine owns a checked template store and evaluates templates on demand.
// It is safe for concurrent use: every call gets its own Evaluator, and
// the store it reads is immutable.
type Engine struct {
	loadMu sync.Mutex // serializes AddTemplates and ReplaceTemplates
	mu     sync.RWMutex
	store  *Store
	diags  Diagnostics
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine with an empty store.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Expressions == nil {
		return nil, fmt.Errorf("expression evaluator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store, err := NewStore(nil, cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	return &Engine{store: store, cfg: cfg, logger: logger}, nil
}

// AddTemplates adds templates to the engine. The combined store is
// statically checked; if it has Error diagnostics the engine is left
// unchanged and a *CheckError is returned. Templates that reference each
// other must be added in one call.
func (e *Engine) AddTemplates(templates ...*Template) (Diagnostics, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	next, err := e.Store().With(templates...)
	if err != nil {
		return nil, err
	}
	return e.swap(next)
}

// ReplaceTemplates discards the current templates and loads templates.
// Like AddTemplates it leaves the engine unchanged on Error diagnostics.
func (e *Engine) ReplaceTemplates(templates ...*Template) (Diagnostics, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	next, err := NewStore(templates, e.cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	return e.swap(next)
}

func (e *Engine) swap(next *Store) (Diagnostics, error) {
	diags := Check(next)
	if diags.HasErrors() {
		e.logger.Debug("static check failed", slog.Int("errors", len(diags.Errors())))
		return diags, &CheckError{Diagnostics: diags}
	}

	e.mu.Lock()
	e.store = next
	e.diags = diags
	e.mu.Unlock()

	e.logger.Debug("templates loaded",
		slog.Int("templates", next.Len()),
		slog.Int("warnings", len(diags.Warnings())))
	return diags, nil
}

// Store returns the current template store.
func (e *Engine) Store() *Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Diagnostics returns the warnings produced by the last successful load.
func (e *Engine) Diagnostics() Diagnostics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.diags
}

func (e *Engine) options() []Option {
	opts := []Option{WithLogger(e.logger)}
	if e.cfg.Seed != nil {
		opts = append(opts, WithSeed(*e.cfg.Seed))
	}
	if e.cfg.MaxExpansion > 0 {
		opts = append(opts, WithMaxResults(e.cfg.MaxExpansion))
	}
	return opts
}

// NewEvaluator returns a fresh evaluator over the current store.
func (e *Engine) NewEvaluator() *Evaluator {
	return NewEvaluator(e.Store(), e.cfg.Expressions, e.options()...)
}

// EvaluateTemplate evaluates a template with a fresh Evaluator.
// scope may be any value accepted by ScopeOf.
func (e *Engine) EvaluateTemplate(name string, scope any) (Result, error) {
	start := time.Now()
	res, err := e.NewEvaluator().EvaluateTemplate(name, ScopeOf(scope))
	e.logger.Debug("evaluated template",
		slog.String("template", name),
		slog.Bool("present", res.Present),
		slog.Duration("duration", time.Since(start)),
		slog.Any("error", err))
	return res, err
}

// ExpandTemplate returns every output of a template with a fresh Expander.
func (e *Engine) ExpandTemplate(name string, scope any, opts ...Option) ([]string, error) {
	start := time.Now()
	opts = append(e.options(), opts...)
	out, err := NewExpander(e.Store(), e.cfg.Expressions, opts...).ExpandTemplate(name, ScopeOf(scope))
	e.logger.Debug("expanded template",
		slog.String("template", name),
		slog.Int("results", len(out)),
		slog.Duration("duration", time.Since(start)),
		slog.Any("error", err))
	return out, err
}

// AnalyzeTemplate reports the variables and references of a template.
func (e *Engine) AnalyzeTemplate(name string) (AnalyzerResult, error) {
	return NewAnalyzer(e.Store()).AnalyzeTemplate(name)
}

// ConstructScope binds args to the parameters of the named template.
func (e *Engine) ConstructScope(name string, args []any) (Scope, error) {
	return constructScope(e.Store(), Position{}, name, args)
}

// EvaluateInline evaluates a body that is not part of the store, such as
// text typed by a user. The body may reference any template in the store.
func (e *Engine) EvaluateInline(body Body, scope any) (Result, error) {
	inline := &Template{Name: InlineTemplateName, Body: body}
	store, err := e.Store().With(inline)
	if err != nil {
		return Result{}, err
	}
	if diags := Check(store); diags.HasErrors() {
		return Result{}, &CheckError{Diagnostics: diags}
	}
	return NewEvaluator(store, e.cfg.Expressions, e.options()...).EvaluateTemplate(InlineTemplateName, ScopeOf(scope))
}
