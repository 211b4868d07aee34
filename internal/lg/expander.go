package lg

import "log/slog"

// DefaultMaxExpansion is the default bound on the results of one expansion.
const DefaultMaxExpansion = 10000

// Expander walks templates like Evaluator but returns every output a
// template can produce instead of one random pick. Conditional bodies
// contribute all of their branches; conditions are not evaluated.
// Like Evaluator, an Expander must not be shared by concurrent calls.
type Expander struct {
	store      *Store
	exprs      ExpressionEvaluator
	logger     *slog.Logger
	maxResults int
	keepDupes  bool
	stack      stack
}

// NewExpander creates an expander over store.
func NewExpander(store *Store, exprs ExpressionEvaluator, opts ...Option) *Expander {
	o := buildOptions(opts)
	return &Expander{
		store:      store,
		exprs:      exprs,
		logger:     o.logger,
		maxResults: o.maxResults,
		keepDupes:  o.keepDupes,
	}
}

// ExpandTemplate returns every output the named template can produce,
// in declaration order. Outputs reachable in more than one way are listed
// once unless the Expander was built WithDuplicates.
func (x *Expander) ExpandTemplate(name string, scope Scope) ([]string, error) {
	return x.expandTemplate(Position{}, name, scope)
}

func (x *Expander) expandTemplate(pos Position, name string, scope Scope) ([]string, error) {
	if scope == nil {
		scope = NewMapScope(nil, nil)
	}
	t, pop, err := x.stack.enter(x.store, pos, name, scope)
	if err != nil {
		return nil, err
	}
	defer pop()

	switch body := t.Body.(type) {
	case *NormalBody:
		return x.expandNormal(body)
	case *ConditionalBody:
		return x.expandConditional(body)
	default:
		return nil, NewEmptyTemplateBodyError(t.Pos, name)
	}
}

func (x *Expander) expandNormal(body *NormalBody) ([]string, error) {
	if len(body.Variants) == 0 {
		return nil, NewEmptyTemplateBodyError(body.Pos(), x.stack.top().TemplateName)
	}
	var out []string
	for _, v := range body.Variants {
		results, err := x.expandString(v)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
		if err := x.checkLimit(body.Pos(), len(out)); err != nil {
			return nil, err
		}
	}
	return x.collect(out), nil
}

func (x *Expander) expandConditional(body *ConditionalBody) ([]string, error) {
	var out []string
	branches := make([]*NormalBody, 0, len(body.Cases)+1)
	for _, c := range body.Cases {
		if c.Body == nil {
			return nil, NewEmptyTemplateBodyError(c.Pos, x.stack.top().TemplateName)
		}
		branches = append(branches, c.Body)
	}
	if body.Default != nil {
		branches = append(branches, body.Default)
	}
	for _, b := range branches {
		results, err := x.expandNormal(b)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
		if err := x.checkLimit(body.Pos(), len(out)); err != nil {
			return nil, err
		}
	}
	return x.collect(out), nil
}

// expandString returns the cartesian product of the segments' expansions.
func (x *Expander) expandString(st *StringTemplate) ([]string, error) {
	results := []string{""}
	for _, seg := range st.Segments {
		options, err := x.expandSegment(seg)
		if err != nil {
			return nil, err
		}
		results, err = x.product(st.Pos, results, options)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (x *Expander) expandSegment(seg Segment) ([]string, error) {
	switch s := seg.(type) {
	case *Literal:
		return []string{s.Text}, nil
	case *Escape:
		r, ok := unescape(s.Raw)
		if !ok {
			return nil, NewInvalidEscapeError(s.Pos(), s.Raw)
		}
		return []string{r}, nil
	case *Expression:
		v, err := x.evalExpression(s.Pos(), s.Raw)
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	case *TemplateRef:
		return x.expandTemplateRef(s.Pos(), s.Raw)
	case *MultiLineText:
		return x.expandMultiLine(s)
	default:
		return nil, nil
	}
}

func (x *Expander) evalExpression(pos Position, raw string) (string, error) {
	expr := stripExpression(raw)
	frame := x.stack.top()
	v, err := x.exprs.Evaluate(expr, frame.Scope)
	if err != nil {
		return "", WrapExpressionError(pos, frame.TemplateName, expr, err)
	}
	return Stringify(v), nil
}

func (x *Expander) expandTemplateRef(pos Position, raw string) ([]string, error) {
	ref, err := parseTemplateRef(pos, raw)
	if err != nil {
		return nil, err
	}

	frame := x.stack.top()
	scope := frame.Scope
	if ref.HasArgs {
		args := make([]any, len(ref.Args))
		for i, expr := range ref.Args {
			v, err := x.exprs.Evaluate(expr, frame.Scope)
			if err != nil {
				return nil, WrapExpressionError(pos, frame.TemplateName, expr, err)
			}
			args[i] = v
		}
		scope, err = constructScope(x.store, pos, ref.Name, args)
		if err != nil {
			return nil, err
		}
	}
	return x.expandTemplate(pos, ref.Name, scope)
}

func (x *Expander) expandMultiLine(s *MultiLineText) ([]string, error) {
	results := []string{""}
	for _, part := range splitMultiLine(s.Raw) {
		var options []string
		switch {
		case !part.Subst:
			options = []string{part.Text}
		case part.IsRef:
			refs, err := x.expandTemplateRef(s.Pos(), part.Content)
			if err != nil {
				return nil, err
			}
			options = refs
		default:
			v, err := x.evalExpression(s.Pos(), part.Content)
			if err != nil {
				return nil, err
			}
			options = []string{v}
		}
		var err error
		results, err = x.product(s.Pos(), results, options)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (x *Expander) product(pos Position, prefixes, suffixes []string) ([]string, error) {
	if err := x.checkLimit(pos, len(prefixes)*len(suffixes)); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out, nil
}

func (x *Expander) checkLimit(pos Position, n int) error {
	if x.maxResults > 0 && n > x.maxResults {
		return NewExpansionLimitError(pos, x.stack.top().TemplateName, x.maxResults)
	}
	return nil
}

func (x *Expander) collect(out []string) []string {
	if x.keepDupes {
		return out
	}
	return dedupe(out)
}

// dedupe removes repeated strings, keeping first occurrences in order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
