package lg

import (
	"fmt"
	"slices"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

// Severity values.
const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Range is a source span.
type Range struct {
	Start Position
	End   Position
}

func pointRange(pos Position) *Range {
	if pos.IsZero() {
		return nil
	}
	return &Range{Start: pos, End: pos}
}

// Diagnostic is one finding of the static checker.
type Diagnostic struct {
	Message  string
	Severity Severity
	Range    *Range // nil when the source location is unknown
	Template string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Range != nil {
		b.WriteString(d.Range.Start.String())
		b.WriteString(": ")
	}
	b.WriteString(d.Severity.String())
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Diagnostics is an ordered list of findings.
type Diagnostics []Diagnostic

// Errors returns the Error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns the Warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any diagnostic is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error joins the diagnostics one per line.
func (ds Diagnostics) Error() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Check statically validates every template in store without evaluating
// expressions. It never fails; findings are returned as diagnostics.
func Check(store *Store) Diagnostics {
	c := &checker{store: store}
	c.diags = append(c.diags, store.Warnings()...)
	for _, t := range store.Templates() {
		c.checkTemplate(t)
	}
	c.checkCycles()
	return c.diags
}

type checker struct {
	store *Store
	diags Diagnostics
}

func (c *checker) report(sev Severity, pos Position, template, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Range:    pointRange(pos),
		Template: template,
	})
}

func (c *checker) checkTemplate(t *Template) {
	seen := make(map[string]bool, len(t.Parameters))
	for _, p := range t.Parameters {
		if seen[p] {
			c.report(SeverityError, t.Pos, t.Name, "duplicate parameter %s in template %s", p, t.Name)
		}
		seen[p] = true
	}

	switch body := t.Body.(type) {
	case nil:
		c.report(SeverityError, t.Pos, t.Name, "there is no template body in template %s", t.Name)
	case *NormalBody:
		c.checkNormal(t, body)
	case *ConditionalBody:
		c.checkConditional(t, body)
	}
}

func (c *checker) checkNormal(t *Template, body *NormalBody) {
	if len(body.Variants) == 0 {
		c.report(SeverityError, body.Pos(), t.Name, "template %s has no variants", t.Name)
		return
	}
	for _, v := range body.Variants {
		for _, seg := range v.Segments {
			c.checkSegment(t, seg)
		}
	}
}

func (c *checker) checkConditional(t *Template, body *ConditionalBody) {
	if len(body.Cases) == 0 {
		c.report(SeverityError, body.Pos(), t.Name, "conditional template %s has no IF branch", t.Name)
	}
	for _, cs := range body.Cases {
		if strings.TrimSpace(stripExpression(cs.Condition)) == "" {
			c.report(SeverityError, cs.Pos, t.Name, "condition is empty in template %s", t.Name)
		}
		if cs.Body == nil {
			c.report(SeverityError, cs.Pos, t.Name, "branch without a body in template %s", t.Name)
			continue
		}
		c.checkNormal(t, cs.Body)
	}
	if body.Default == nil {
		c.report(SeverityWarning, body.Pos(), t.Name,
			"conditional template %s has no ELSE branch and may produce no output", t.Name)
		return
	}
	c.checkNormal(t, body.Default)
}

func (c *checker) checkSegment(t *Template, seg Segment) {
	switch s := seg.(type) {
	case *Escape:
		if !IsValidEscape(s.Raw) {
			c.report(SeverityError, s.Pos(), t.Name, "escape character %s is invalid", s.Raw)
		}
	case *Expression:
		if stripExpression(s.Raw) == "" {
			c.report(SeverityError, s.Pos(), t.Name, "empty expression %s in template %s", s.Raw, t.Name)
		}
	case *TemplateRef:
		c.checkRef(t, s.Pos(), s.Raw)
	case *MultiLineText:
		for _, part := range splitMultiLine(s.Raw) {
			if part.IsRef {
				c.checkRef(t, s.Pos(), part.Content)
			}
		}
	}
}

// checkRef verifies the referenced template exists. Argument counts are
// only known once arguments are bound at run time and are not checked.
func (c *checker) checkRef(t *Template, pos Position, raw string) {
	ref, err := parseTemplateRef(pos, raw)
	if err != nil {
		msg := err.Error()
		if me, ok := err.(*MalformedTemplateRefError); ok {
			msg = me.msg
		}
		c.report(SeverityError, pos, t.Name, "%s", msg)
		return
	}
	if !c.store.Has(ref.Name) {
		c.report(SeverityError, pos, t.Name, "no such template: %s (referenced from %s)", ref.Name, t.Name)
	}
}

// checkCycles reports every reference cycle. Loop detection works on
// names alone, so reaching any template of a cycle at run time always
// ends in a LoopDetectedError, whatever the arguments or conditions.
func (c *checker) checkCycles() {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, c.store.Len())
	reported := make(map[string]bool)
	var path []string

	var visit func(name string)
	visit = func(name string) {
		state[name] = active
		path = append(path, name)
		t, _ := c.store.Lookup(name)
		for _, callee := range References(t) {
			if !c.store.Has(callee) {
				continue
			}
			switch state[callee] {
			case unvisited:
				visit(callee)
			case active:
				c.reportCycle(path[slices.Index(path, callee):], reported)
			}
		}
		path = path[:len(path)-1]
		state[name] = done
	}

	for _, name := range c.store.Names() {
		if state[name] == unvisited {
			visit(name)
		}
	}
}

// reportCycle reports cycle once, starting from its least name so the
// same loop found from different entry points is not repeated.
func (c *checker) reportCycle(cycle []string, reported map[string]bool) {
	start := slices.Index(cycle, slices.Min(cycle))
	loop := make([]string, 0, len(cycle)+1)
	loop = append(loop, cycle[start:]...)
	loop = append(loop, cycle[:start]...)
	loop = append(loop, loop[0])

	key := strings.Join(loop, " => ")
	if reported[key] {
		return
	}
	reported[key] = true

	t, _ := c.store.Lookup(loop[0])
	c.report(SeverityError, t.Pos, t.Name, "reference cycle: %s", key)
}
