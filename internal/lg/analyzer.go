package lg

import "strings"

// AnalyzerResult lists what a template depends on.
type AnalyzerResult struct {
	Variables          []string // expression texts reachable from the template
	TemplateReferences []string // templates reachable from the template
}

// Analyzer walks templates without evaluating anything and reports the
// expressions and template references reachable from a template.
type Analyzer struct {
	store *Store
	stack stack
}

// NewAnalyzer creates an analyzer over store.
func NewAnalyzer(store *Store) *Analyzer {
	return &Analyzer{store: store}
}

type analysis struct {
	vars     []string
	refs     []string
	seenVars map[string]bool
	seenRefs map[string]bool
}

func (a *analysis) addVar(v string) {
	if v == "" || a.seenVars[v] {
		return
	}
	a.seenVars[v] = true
	a.vars = append(a.vars, v)
}

func (a *analysis) addRef(r string) {
	if a.seenRefs[r] {
		return
	}
	a.seenRefs[r] = true
	a.refs = append(a.refs, r)
}

// AnalyzeTemplate reports the variables and template references reachable
// from the named template. Variables bound to a called template's
// parameters are not reported.
func (z *Analyzer) AnalyzeTemplate(name string) (AnalyzerResult, error) {
	acc := &analysis{seenVars: map[string]bool{}, seenRefs: map[string]bool{}}
	if err := z.analyzeTemplate(Position{}, name, nil, acc); err != nil {
		return AnalyzerResult{}, err
	}
	return AnalyzerResult{Variables: acc.vars, TemplateReferences: acc.refs}, nil
}

func (z *Analyzer) analyzeTemplate(pos Position, name string, bound []string, acc *analysis) error {
	t, pop, err := z.stack.enter(z.store, pos, name, nil)
	if err != nil {
		return err
	}
	defer pop()

	var bodies []*NormalBody
	switch body := t.Body.(type) {
	case *NormalBody:
		bodies = append(bodies, body)
	case *ConditionalBody:
		for _, c := range body.Cases {
			acc.addVar(unbound(stripExpression(c.Condition), bound))
			bodies = append(bodies, c.Body)
		}
		if body.Default != nil {
			bodies = append(bodies, body.Default)
		}
	}

	for _, b := range bodies {
		if b == nil {
			continue
		}
		for _, v := range b.Variants {
			for _, seg := range v.Segments {
				if err := z.analyzeSegment(seg, bound, acc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (z *Analyzer) analyzeSegment(seg Segment, bound []string, acc *analysis) error {
	switch s := seg.(type) {
	case *Expression:
		acc.addVar(unbound(stripExpression(s.Raw), bound))
	case *TemplateRef:
		return z.analyzeRef(s.Pos(), s.Raw, bound, acc)
	case *MultiLineText:
		for _, part := range splitMultiLine(s.Raw) {
			switch {
			case part.IsRef:
				if err := z.analyzeRef(s.Pos(), part.Content, bound, acc); err != nil {
					return err
				}
			case part.Subst:
				acc.addVar(unbound(stripExpression(part.Content), bound))
			}
		}
	}
	return nil
}

func (z *Analyzer) analyzeRef(pos Position, raw string, bound []string, acc *analysis) error {
	ref, err := parseTemplateRef(pos, raw)
	if err != nil {
		return err
	}
	acc.addRef(ref.Name)
	calleeBound := bound
	if ref.HasArgs {
		for _, arg := range ref.Args {
			acc.addVar(unbound(arg, bound))
		}
		calleeBound = z.store.Parameters(ref.Name)
	}
	return z.analyzeTemplate(pos, ref.Name, calleeBound, acc)
}

// unbound returns expr unless it refers to one of the bound parameters.
func unbound(expr string, bound []string) string {
	for _, p := range bound {
		if expr == p || strings.HasPrefix(expr, p+".") || strings.HasPrefix(expr, p+"[") {
			return ""
		}
	}
	return expr
}
