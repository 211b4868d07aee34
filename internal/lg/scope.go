package lg

import (
	"maps"
	"slices"
)

// Scope is the data context visible to expressions while a template is
// evaluated. The evaluator never mutates a scope; binding call arguments
// produces a new one.
//
// Implementations: *MapScope, ValueScope.
type Scope interface {
	// Get returns the value bound to name.
	Get(name string) (any, bool)
	// Names returns the bound names in a stable order.
	Names() []string
	// Value returns the scope as a plain Go value.
	Value() any
	scope() // marker method to restrict implementation
}

// MapScope is an ordered mapping from name to value.
type MapScope struct {
	keys   []string
	values map[string]any
}

// NewMapScope builds a scope from parallel name and value slices.
// Later duplicates of a name overwrite earlier ones but keep the first position.
func NewMapScope(names []string, values []any) *MapScope {
	s := &MapScope{values: make(map[string]any, len(names))}
	for i, name := range names {
		var v any
		if i < len(values) {
			v = values[i]
		}
		if _, ok := s.values[name]; !ok {
			s.keys = append(s.keys, name)
		}
		s.values[name] = v
	}
	return s
}

// ScopeFromMap builds a scope from a map. Names are sorted since Go maps
// carry no order.
func ScopeFromMap(m map[string]any) *MapScope {
	keys := slices.Sorted(maps.Keys(m))
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return NewMapScope(keys, values)
}

// Get returns the value bound to name.
func (s *MapScope) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns names in insertion order.
func (s *MapScope) Names() []string {
	return slices.Clone(s.keys)
}

// Value returns a copy of the mapping.
func (s *MapScope) Value() any {
	return maps.Clone(s.values)
}

// Len returns the number of bound names.
func (s *MapScope) Len() int {
	return len(s.keys)
}

func (*MapScope) scope() {}

// ValueScope is a scope that is a single opaque value. It results from
// calling a parameterless template with exactly one argument. When the
// value is a map[string]any its keys are visible as names.
type ValueScope struct {
	V any
}

// Get looks name up when the value is a map.
func (s ValueScope) Get(name string) (any, bool) {
	if m, ok := s.V.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	return nil, false
}

// Names returns the sorted keys when the value is a map.
func (s ValueScope) Names() []string {
	if m, ok := s.V.(map[string]any); ok {
		return slices.Sorted(maps.Keys(m))
	}
	return nil
}

// Value returns the wrapped value unchanged.
func (s ValueScope) Value() any {
	return s.V
}

func (ValueScope) scope() {}

// ScopeOf converts an arbitrary caller-supplied value to a Scope.
// nil becomes an empty scope, maps become a *MapScope, a Scope is returned
// as is, anything else becomes a ValueScope.
func ScopeOf(v any) Scope {
	switch val := v.(type) {
	case nil:
		return NewMapScope(nil, nil)
	case Scope:
		return val
	case map[string]any:
		return ScopeFromMap(val)
	default:
		return ValueScope{V: v}
	}
}
