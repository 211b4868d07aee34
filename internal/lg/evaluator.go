package lg

import (
	"log/slog"
	"math/rand/v2"
	"strings"
)

// Result is the outcome of evaluating a template. A conditional template
// with no matching branch and no default produces no output, which is
// distinct from producing the empty string.
type Result struct {
	Text    string
	Present bool
}

// String returns the text, or "" when there is no output.
func (r Result) String() string {
	return r.Text
}

func some(s string) Result { return Result{Text: s, Present: true} }

// Evaluator walks parsed templates and produces text. It owns an
// evaluation stack, so one Evaluator must not be used by concurrent
// evaluations. Engine creates a fresh one per call.
type Evaluator struct {
	store  *Store
	exprs  ExpressionEvaluator
	rng    *rand.Rand
	logger *slog.Logger
	stack  stack
}

// Option configures an Evaluator or Expander.
type Option func(*options)

type options struct {
	rng        *rand.Rand
	logger     *slog.Logger
	maxResults int
	keepDupes  bool
}

// WithRand sets the random source used to pick variants.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSeed picks variants from a deterministic source seeded with seed.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxResults bounds the number of results an Expander may produce.
func WithMaxResults(n int) Option {
	return func(o *options) { o.maxResults = n }
}

// WithDuplicates makes an Expander return repeated outputs, one per way
// of producing them, instead of collapsing them.
func WithDuplicates() Option {
	return func(o *options) { o.keepDupes = true }
}

func buildOptions(opts []Option) options {
	o := options{maxResults: DefaultMaxExpansion}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// NewEvaluator creates an evaluator over store using exprs for embedded
// expressions.
func NewEvaluator(store *Store, exprs ExpressionEvaluator, opts ...Option) *Evaluator {
	o := buildOptions(opts)
	rng := o.rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Evaluator{
		store:  store,
		exprs:  exprs,
		rng:    rng,
		logger: o.logger,
	}
}

// EvaluateTemplate evaluates the named template against scope.
func (e *Evaluator) EvaluateTemplate(name string, scope Scope) (Result, error) {
	return e.evaluateTemplate(Position{}, name, scope)
}

// ConstructScope binds args to the declared parameters of the named
// template, following the rules used for template references.
func (e *Evaluator) ConstructScope(name string, args []any) (Scope, error) {
	return constructScope(e.store, Position{}, name, args)
}

func (e *Evaluator) evaluateTemplate(pos Position, name string, scope Scope) (Result, error) {
	if scope == nil {
		scope = NewMapScope(nil, nil)
	}
	t, pop, err := e.stack.enter(e.store, pos, name, scope)
	if err != nil {
		return Result{}, err
	}
	defer pop()

	switch body := t.Body.(type) {
	case *NormalBody:
		return e.evalNormal(body)
	case *ConditionalBody:
		return e.evalConditional(body)
	default:
		return Result{}, NewEmptyTemplateBodyError(t.Pos, name)
	}
}

// evalNormal picks one variant uniformly at random.
func (e *Evaluator) evalNormal(body *NormalBody) (Result, error) {
	if len(body.Variants) == 0 {
		return Result{}, NewEmptyTemplateBodyError(body.Pos(), e.stack.top().TemplateName)
	}
	variant := body.Variants[e.rng.IntN(len(body.Variants))]
	s, err := e.evalString(variant)
	if err != nil {
		return Result{}, err
	}
	return some(s), nil
}

// evalConditional evaluates the first case whose condition holds.
func (e *Evaluator) evalConditional(body *ConditionalBody) (Result, error) {
	for _, c := range body.Cases {
		ok, err := e.evalCondition(c.Condition)
		if err != nil {
			e.logger.Debug("condition evaluated as false due to error",
				slog.String("template", e.stack.top().TemplateName),
				slog.String("condition", c.Condition),
				slog.String("error", err.Error()))
			ok = false
		}
		if ok {
			if c.Body == nil {
				return Result{}, NewEmptyTemplateBodyError(c.Pos, e.stack.top().TemplateName)
			}
			return e.evalNormal(c.Body)
		}
	}
	if body.Default != nil {
		return e.evalNormal(body.Default)
	}
	return Result{}, nil
}

// evalCondition evaluates a case condition through the expression evaluator.
func (e *Evaluator) evalCondition(raw string) (bool, error) {
	v, err := e.exprs.Evaluate(stripExpression(raw), e.stack.top().Scope)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// evalString concatenates the evaluated segments of one variant.
func (e *Evaluator) evalString(st *StringTemplate) (string, error) {
	var b strings.Builder
	for _, seg := range st.Segments {
		switch s := seg.(type) {
		case *Literal:
			b.WriteString(s.Text)
		case *Escape:
			r, ok := unescape(s.Raw)
			if !ok {
				return "", NewInvalidEscapeError(s.Pos(), s.Raw)
			}
			b.WriteString(r)
		case *Expression:
			v, err := e.evalExpression(s.Pos(), s.Raw)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case *TemplateRef:
			v, err := e.evalTemplateRef(s.Pos(), s.Raw)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case *MultiLineText:
			v, err := e.evalMultiLine(s)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		}
	}
	return b.String(), nil
}

func (e *Evaluator) evalExpression(pos Position, raw string) (string, error) {
	expr := stripExpression(raw)
	frame := e.stack.top()
	v, err := e.exprs.Evaluate(expr, frame.Scope)
	if err != nil {
		return "", WrapExpressionError(pos, frame.TemplateName, expr, err)
	}
	return Stringify(v), nil
}

func (e *Evaluator) evalTemplateRef(pos Position, raw string) (string, error) {
	ref, err := parseTemplateRef(pos, raw)
	if err != nil {
		return "", err
	}

	scope := e.stack.top().Scope
	if ref.HasArgs {
		args, err := e.evalArgs(pos, ref.Args)
		if err != nil {
			return "", err
		}
		scope, err = constructScope(e.store, pos, ref.Name, args)
		if err != nil {
			return "", err
		}
	}

	res, err := e.evaluateTemplate(pos, ref.Name, scope)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (e *Evaluator) evalArgs(pos Position, exprs []string) ([]any, error) {
	frame := e.stack.top()
	args := make([]any, len(exprs))
	for i, expr := range exprs {
		v, err := e.exprs.Evaluate(expr, frame.Scope)
		if err != nil {
			return nil, WrapExpressionError(pos, frame.TemplateName, expr, err)
		}
		args[i] = v
	}
	return args, nil
}

func (e *Evaluator) evalMultiLine(s *MultiLineText) (string, error) {
	var b strings.Builder
	for _, part := range splitMultiLine(s.Raw) {
		switch {
		case !part.Subst:
			b.WriteString(part.Text)
		case part.IsRef:
			v, err := e.evalTemplateRef(s.Pos(), part.Content)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		default:
			v, err := e.evalExpression(s.Pos(), part.Content)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		}
	}
	return b.String(), nil
}
