package starlark

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"go.starlark.net/starlark"
)

// BuiltinNames are the predeclared helper functions. Scope names may not
// shadow them.
var BuiltinNames = []string{"join", "upper", "lower", "count", "exists"}

// BuiltinDoc describes a builtin for editors and generated documentation.
type BuiltinDoc struct {
	Signature   string
	Description string
}

// BuiltinDocs documents every name in BuiltinNames.
var BuiltinDocs = map[string]BuiltinDoc{
	"join":   {"join(items, sep=\"\")", "Concatenate items, rendering non-strings as they appear in output"},
	"upper":  {"upper(s)", "Upper-case a string"},
	"lower":  {"lower(s)", "Lower-case a string"},
	"count":  {"count(x)", "Length of a string, list, tuple or dict"},
	"exists": {"exists(name)", "Whether name is bound in the current scope"},
}

// Builtins returns the helpers that do not depend on the scope.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		"join":  starlark.NewBuiltin("join", builtinJoin),
		"upper": starlark.NewBuiltin("upper", builtinUpper),
		"lower": starlark.NewBuiltin("lower", builtinLower),
		"count": starlark.NewBuiltin("count", builtinCount),
	}
}

// join(items, sep="") concatenates the items; non-strings are rendered
// the way they would appear in template output.
func builtinJoin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		items starlark.Iterable
		sep   starlark.String
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "items", &items, "sep?", &sep); err != nil {
		return nil, err
	}

	var parts []string
	iter := items.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		gv, err := ToGo(x)
		if err != nil {
			return nil, err
		}
		parts = append(parts, lg.Stringify(gv))
	}
	return starlark.String(strings.Join(parts, string(sep))), nil
}

func builtinUpper(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.ToUpper(s)), nil
}

func builtinLower(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.ToLower(s)), nil
}

// count(x) is len(x), with None counting as zero.
func builtinCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	if x == starlark.None {
		return starlark.MakeInt(0), nil
	}
	n := starlark.Len(x)
	if n < 0 {
		return nil, fmt.Errorf("%s: value of type %s has no length", b.Name(), x.Type())
	}
	return starlark.MakeInt(n), nil
}

// existsBuiltin reports whether a name is bound to a non-nil value in scope.
func existsBuiltin(scope lg.Scope) *starlark.Builtin {
	return starlark.NewBuiltin("exists", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
			return nil, err
		}
		v, ok := scope.Get(name)
		return starlark.Bool(ok && v != nil), nil
	})
}
