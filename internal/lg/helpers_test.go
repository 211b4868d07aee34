package lg

import (
	"fmt"
	"strconv"
	"strings"
)

// testExprs is a tiny expression language for tests: integer and quoted
// string literals, true/false, "this", names looked up in scope, and
// "fail..." which always errors.
var testExprs = ExpressionFunc(func(expr string, scope Scope) (any, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "true":
		return true, nil
	case expr == "false":
		return false, nil
	case expr == "this":
		return scope.Value(), nil
	case strings.HasPrefix(expr, "fail"):
		return nil, fmt.Errorf("forced failure: %s", expr)
	case len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"':
		return expr[1 : len(expr)-1], nil
	}
	if n, err := strconv.Atoi(expr); err == nil {
		return n, nil
	}
	if v, ok := scope.Get(expr); ok {
		return v, nil
	}
	return nil, fmt.Errorf("undefined: %s", expr)
})

func lit(s string) Segment  { return NewLiteral(Position{}, s) }
func esc(s string) Segment  { return NewEscape(Position{}, s) }
func expr(s string) Segment { return NewExpression(Position{}, s) }
func ref(s string) Segment  { return NewTemplateRef(Position{}, s) }
func mlt(s string) Segment  { return NewMultiLineText(Position{}, s) }

func variant(segs ...Segment) *StringTemplate {
	return &StringTemplate{Segments: segs}
}

func normal(variants ...*StringTemplate) *NormalBody {
	return NewNormalBody(Position{}, variants...)
}

func tmpl(name string, params []string, body Body) *Template {
	return &Template{Name: name, Parameters: params, Body: body}
}

// text is a template with one variant.
func text(name string, segs ...Segment) *Template {
	return tmpl(name, nil, normal(variant(segs...)))
}

func cond(cases []*Case, def *NormalBody) *ConditionalBody {
	return NewConditionalBody(Position{}, cases, def)
}

func when(condition string, body *NormalBody) *Case {
	return &Case{Condition: condition, Body: body}
}

func mustStore(templates ...*Template) *Store {
	s, err := NewStore(templates, DuplicateError)
	if err != nil {
		panic(err)
	}
	return s
}
