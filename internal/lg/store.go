package lg

import (
	"fmt"
	"slices"
)

// DuplicatePolicy decides which body a name resolves to when a store is
// built from templates that share a name.
type DuplicatePolicy string

// DuplicatePolicy values.
const (
	DuplicateError DuplicatePolicy = "error" // reject the store
	FirstWins      DuplicatePolicy = "first" // keep the first declaration
	LastWins       DuplicatePolicy = "last"  // keep the last declaration
)

// ParseDuplicatePolicy converts a config value to a DuplicatePolicy.
// The empty string yields DuplicateError.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateError:
		return DuplicateError, nil
	case FirstWins, LastWins:
		return DuplicatePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (expected error, first or last)", s)
	}
}

// Store is an immutable mapping from template name to template.
// It is safe for concurrent reads by any number of evaluators.
type Store struct {
	templates map[string]*Template
	order     []string
	policy    DuplicatePolicy
	warnings  Diagnostics
}

// NewStore builds a store, resolving duplicate names with policy.
func NewStore(templates []*Template, policy DuplicatePolicy) (*Store, error) {
	if policy == "" {
		policy = DuplicateError
	}
	s := &Store{
		templates: make(map[string]*Template, len(templates)),
		order:     make([]string, 0, len(templates)),
		policy:    policy,
	}
	for _, t := range templates {
		if err := s.add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) add(t *Template) error {
	if t == nil {
		return nil
	}
	existing, ok := s.templates[t.Name]
	if !ok {
		s.templates[t.Name] = t
		s.order = append(s.order, t.Name)
		return nil
	}

	switch s.policy {
	case FirstWins:
		s.warnings = append(s.warnings, Diagnostic{
			Message:  fmt.Sprintf("duplicate template %s ignored, first declared at %s", t.Name, existing.Pos),
			Severity: SeverityWarning,
			Range:    pointRange(t.Pos),
			Template: t.Name,
		})
	case LastWins:
		s.warnings = append(s.warnings, Diagnostic{
			Message:  fmt.Sprintf("duplicate template %s overrides declaration at %s", t.Name, existing.Pos),
			Severity: SeverityWarning,
			Range:    pointRange(t.Pos),
			Template: t.Name,
		})
		s.templates[t.Name] = t
	default:
		return NewDuplicateTemplateError(t.Pos, t.Name, existing.Pos)
	}
	return nil
}

// With returns a new store holding the receiver's templates plus extra.
// The receiver is not modified.
func (s *Store) With(extra ...*Template) (*Store, error) {
	all := make([]*Template, 0, len(s.order)+len(extra))
	all = append(all, s.Templates()...)
	all = append(all, extra...)
	return NewStore(all, s.policy)
}

// Lookup returns the template registered under name.
func (s *Store) Lookup(name string) (*Template, bool) {
	t, ok := s.templates[name]
	return t, ok
}

// Has reports whether name is a known template.
func (s *Store) Has(name string) bool {
	_, ok := s.templates[name]
	return ok
}

// Parameters returns a copy of the declared parameter names of a template,
// or nil if the template does not exist or declares none.
func (s *Store) Parameters(name string) []string {
	t, ok := s.templates[name]
	if !ok || len(t.Parameters) == 0 {
		return nil
	}
	return slices.Clone(t.Parameters)
}

// Names returns template names in declaration order.
func (s *Store) Names() []string {
	return slices.Clone(s.order)
}

// Templates returns the templates in declaration order.
func (s *Store) Templates() []*Template {
	out := make([]*Template, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.templates[name])
	}
	return out
}

// Len returns the number of templates.
func (s *Store) Len() int {
	return len(s.order)
}

// Policy returns the duplicate policy the store was built with.
func (s *Store) Policy() DuplicatePolicy {
	return s.policy
}

// Warnings returns diagnostics produced while resolving duplicates.
func (s *Store) Warnings() Diagnostics {
	return slices.Clone(s.warnings)
}
