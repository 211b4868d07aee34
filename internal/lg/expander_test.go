package lg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expand(t *testing.T, store *Store, name string, scope any, opts ...Option) ([]string, error) {
	t.Helper()
	return NewExpander(store, testExprs, opts...).ExpandTemplate(name, ScopeOf(scope))
}

func TestExpander(t *testing.T) {
	store := mustStore(
		tmpl("Pick", nil, normal(variant(lit("a")), variant(lit("b")))),
		tmpl("Greeting", nil, normal(variant(lit("hi")), variant(lit("hello")))),
		text("Sentence", ref("[Greeting]"), lit(" "), ref("[Pick]")),
		tmpl("Dupes", nil, normal(variant(lit("x")), variant(lit("y")), variant(lit("x")))),
		tmpl("Branches", nil, cond([]*Case{
			when("{false}", normal(variant(lit("one")), variant(lit("two")))),
			when("{true}", normal(variant(lit("two")))),
		}, normal(variant(lit("other"))))),
		tmpl("NoElse", nil, cond([]*Case{when("{true}", normal(variant(lit("only"))))}, nil)),
		text("Named", lit("to "), expr("{name}")),
		text("Block", mlt("```@{[Pick]}-@{name}```")),
		tmpl("Pair", []string{"x", "y"}, normal(variant(expr("{x}"), lit("+"), expr("{y}")))),
		text("Caller", ref("[Pair(1, name)]")),
	)

	tests := []struct {
		name     string
		template string
		scope    map[string]any
		expected []string
	}{
		{"variants", "Pick", nil, []string{"a", "b"}},
		{"product of refs", "Sentence", nil, []string{"hi a", "hi b", "hello a", "hello b"}},
		{"deduplicated", "Dupes", nil, []string{"x", "y"}},
		{"all branches", "Branches", nil, []string{"one", "two", "other"}},
		{"conditional without default", "NoElse", nil, []string{"only"}},
		{"expression", "Named", map[string]any{"name": "Ada"}, []string{"to Ada"}},
		{"multi-line", "Block", map[string]any{"name": "Bo"}, []string{"a-Bo", "b-Bo"}},
		{"call with arguments", "Caller", map[string]any{"name": "Bo"}, []string{"1+Bo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expand(t, store, tt.template, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpander_EvaluatePicksFromExpansion(t *testing.T) {
	store := mustStore(
		tmpl("Greeting", nil, normal(variant(lit("hi")), variant(lit("hello")), variant(lit("hey")))),
		tmpl("Name", nil, normal(variant(lit("Ada")), variant(lit("Bo")))),
		text("Line", ref("[Greeting]"), lit(", "), ref("[Name]")),
	)

	all, err := expand(t, store, "Line", nil)
	require.NoError(t, err)
	require.Len(t, all, 6)

	for seed := range uint64(20) {
		res, err := NewEvaluator(store, testExprs, WithSeed(seed)).EvaluateTemplate("Line", ScopeOf(nil))
		require.NoError(t, err)
		assert.Contains(t, all, res.Text)
	}
}

func TestExpander_Errors(t *testing.T) {
	t.Run("loop", func(t *testing.T) {
		store := mustStore(text("A", ref("[B]")), text("B", ref("[A]")))
		_, err := expand(t, store, "A", nil)
		var loopErr *LoopDetectedError
		require.True(t, errors.As(err, &loopErr))
		assert.Equal(t, []string{"A", "B", "A"}, loopErr.Path)
	})

	t.Run("invalid escape", func(t *testing.T) {
		store := mustStore(text("E", esc(`\x`)))
		_, err := expand(t, store, "E", nil)
		var escErr *InvalidEscapeError
		require.True(t, errors.As(err, &escErr))
	})

	t.Run("missing template", func(t *testing.T) {
		_, err := expand(t, mustStore(), "Nope", nil)
		var nf *TemplateNotFoundError
		require.True(t, errors.As(err, &nf))
	})

	t.Run("branch without body", func(t *testing.T) {
		store := mustStore(tmpl("T", nil, cond([]*Case{when("{true}", nil)}, normal(variant(lit("other"))))))
		_, err := expand(t, store, "T", nil)
		var emptyErr *EmptyTemplateBodyError
		require.True(t, errors.As(err, &emptyErr))
		assert.Equal(t, "T", emptyErr.Name)
	})

	t.Run("limit", func(t *testing.T) {
		store := mustStore(
			tmpl("Digit", nil, normal(variant(lit("0")), variant(lit("1")), variant(lit("2")))),
			text("Three", ref("[Digit]"), ref("[Digit2]"), ref("[Digit3]")),
			tmpl("Digit2", nil, normal(variant(lit("0")), variant(lit("1")), variant(lit("2")))),
			tmpl("Digit3", nil, normal(variant(lit("0")), variant(lit("1")), variant(lit("2")))),
		)

		got, err := expand(t, store, "Three", nil, WithMaxResults(27))
		require.NoError(t, err)
		assert.Len(t, got, 27)

		_, err = expand(t, store, "Three", nil, WithMaxResults(10))
		var limitErr *ExpansionLimitError
		require.True(t, errors.As(err, &limitErr))
		assert.Equal(t, 10, limitErr.Limit)
	})
}

func TestExpander_ReusableAfterError(t *testing.T) {
	store := mustStore(text("Bad", ref("[Missing]")), text("Good", lit("ok")))
	x := NewExpander(store, testExprs)

	_, err := x.ExpandTemplate("Bad", ScopeOf(nil))
	require.Error(t, err)
	assert.Equal(t, 0, x.stack.depth())

	got, err := x.ExpandTemplate("Good", ScopeOf(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
}

func TestExpander_WithDuplicates(t *testing.T) {
	store := mustStore(
		tmpl("Dupes", nil, normal(variant(lit("x")), variant(lit("y")), variant(lit("x")))),
		tmpl("Branches", nil, cond([]*Case{
			when("{false}", normal(variant(lit("one")), variant(lit("two")))),
			when("{true}", normal(variant(lit("two")))),
		}, normal(variant(lit("other"))))),
	)

	got, err := expand(t, store, "Dupes", nil, WithDuplicates())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "x"}, got)

	got, err = expand(t, store, "Branches", nil, WithDuplicates())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "two", "other"}, got)
}
