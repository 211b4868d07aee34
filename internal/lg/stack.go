package lg

// EvaluationTarget is one in-progress template evaluation.
type EvaluationTarget struct {
	TemplateName string
	Scope        Scope
}

// stack is the chain of in-progress evaluations, outermost first.
type stack struct {
	frames []EvaluationTarget
}

// contains reports whether name is being evaluated. Scope is ignored.
func (s *stack) contains(name string) bool {
	for _, f := range s.frames {
		if f.TemplateName == name {
			return true
		}
	}
	return false
}

// path returns the names on the stack in call order followed by next.
func (s *stack) path(next string) []string {
	out := make([]string, 0, len(s.frames)+1)
	for _, f := range s.frames {
		out = append(out, f.TemplateName)
	}
	return append(out, next)
}

// push enters a frame and returns the function that leaves it.
// Callers defer the returned function so the frame is popped on every path.
func (s *stack) push(name string, scope Scope) func() {
	s.frames = append(s.frames, EvaluationTarget{TemplateName: name, Scope: scope})
	depth := len(s.frames)
	return func() {
		s.frames = s.frames[:depth-1]
	}
}

// top returns the innermost frame.
func (s *stack) top() EvaluationTarget {
	if len(s.frames) == 0 {
		return EvaluationTarget{Scope: NewMapScope(nil, nil)}
	}
	return s.frames[len(s.frames)-1]
}

func (s *stack) depth() int {
	return len(s.frames)
}

// enter performs the cycle check shared by Evaluator, Expander and Analyzer
// and pushes the frame.
func (s *stack) enter(store *Store, pos Position, name string, scope Scope) (*Template, func(), error) {
	t, ok := store.Lookup(name)
	if !ok {
		return nil, nil, NewTemplateNotFoundError(pos, name)
	}
	if s.contains(name) {
		return nil, nil, NewLoopDetectedError(pos, s.path(name))
	}
	pop := s.push(name, scope)
	if t.Body == nil {
		pop()
		return nil, nil, NewEmptyTemplateBodyError(t.Pos, name)
	}
	return t, pop, nil
}

// constructScope binds call arguments to a callee's declared parameters.
func constructScope(store *Store, pos Position, name string, args []any) (Scope, error) {
	t, ok := store.Lookup(name)
	if !ok {
		return nil, NewTemplateNotFoundError(pos, name)
	}
	if len(args) == 1 && len(t.Parameters) == 0 {
		if s, ok := args[0].(Scope); ok {
			return s, nil
		}
		return ValueScope{V: args[0]}, nil
	}
	if len(t.Parameters) != len(args) {
		return nil, NewArgumentCountMismatchError(pos, name, len(t.Parameters), len(args))
	}
	return NewMapScope(t.Parameters, args), nil
}
