package lg

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, templates ...*Template) *Engine {
	t.Helper()
	seed := uint64(1)
	e, err := NewEngine(EngineConfig{Expressions: testExprs, Seed: &seed})
	require.NoError(t, err)
	_, err = e.AddTemplates(templates...)
	require.NoError(t, err)
	return e
}

func TestNewEngine_RequiresExpressions(t *testing.T) {
	_, err := NewEngine(EngineConfig{})
	require.Error(t, err)
}

func TestEngine_AddTemplatesRejectsErrors(t *testing.T) {
	e := newTestEngine(t, text("Greet", lit("Hello "), expr("{name}")))

	diags, err := e.AddTemplates(text("Broken", ref("[Missing]")))
	var checkErr *CheckError
	require.True(t, errors.As(err, &checkErr))
	assert.True(t, diags.HasErrors())

	// The engine keeps its previous templates.
	assert.Equal(t, []string{"Greet"}, e.Store().Names())
	res, err := e.EvaluateTemplate("Greet", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", res.Text)
}

func TestEngine_AddTemplatesKeepsWarnings(t *testing.T) {
	e := newTestEngine(t)

	diags, err := e.AddTemplates(tmpl("Maybe", nil, cond([]*Case{when("{x}", normal(variant(lit("y"))))}, nil)))
	require.NoError(t, err)
	assert.Len(t, diags.Warnings(), 1)
	assert.Equal(t, diags, e.Diagnostics())
}

func TestEngine_ReplaceTemplates(t *testing.T) {
	e := newTestEngine(t, text("Old", lit("old")))

	_, err := e.ReplaceTemplates(text("New", lit("new")))
	require.NoError(t, err)
	assert.Equal(t, []string{"New"}, e.Store().Names())

	_, err = e.EvaluateTemplate("Old", nil)
	var nf *TemplateNotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestEngine_EvaluateInline(t *testing.T) {
	e := newTestEngine(t, tmpl("Pair", []string{"x", "y"}, normal(variant(expr("{x}"), lit("/"), expr("{y}")))))

	res, err := e.EvaluateInline(normal(variant(lit("got "), ref("[Pair(a, 2)]"))), map[string]any{"a": "one"})
	require.NoError(t, err)
	assert.Equal(t, "got one/2", res.Text)

	// Inline text is not added to the store.
	assert.False(t, e.Store().Has(InlineTemplateName))

	_, err = e.EvaluateInline(normal(variant(ref("[Missing]"))), nil)
	var checkErr *CheckError
	require.True(t, errors.As(err, &checkErr))
}

func TestEngine_ExpandAndAnalyze(t *testing.T) {
	e := newTestEngine(t,
		tmpl("Pick", nil, normal(variant(lit("a")), variant(lit("b")))),
		text("Use", ref("[Pick]"), expr("{n}")),
	)

	out, err := e.ExpandTemplate("Use", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1"}, out)

	res, err := e.AnalyzeTemplate("Use")
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Variables)
	assert.Equal(t, []string{"Pick"}, res.TemplateReferences)

	scope, err := e.ConstructScope("Pick", []any{"v"})
	require.NoError(t, err)
	assert.Equal(t, "v", scope.Value())
}

func TestEngine_MaxExpansion(t *testing.T) {
	e, err := NewEngine(EngineConfig{Expressions: testExprs, MaxExpansion: 1})
	require.NoError(t, err)
	_, err = e.AddTemplates(tmpl("Pick", nil, normal(variant(lit("a")), variant(lit("b")))))
	require.NoError(t, err)

	_, err = e.ExpandTemplate("Pick", nil)
	var limitErr *ExpansionLimitError
	require.True(t, errors.As(err, &limitErr))
}

func TestEngine_ConcurrentEvaluation(t *testing.T) {
	e := newTestEngine(t,
		text("Greet", lit("Hello "), expr("{name}"), ref("[Tail]")),
		tmpl("Tail", nil, normal(variant(lit("!")), variant(lit(".")))),
	)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("user%d", i)
			res, err := e.EvaluateTemplate("Greet", map[string]any{"name": name})
			if err != nil {
				errs <- err
				return
			}
			if res.Text != "Hello "+name+"!" && res.Text != "Hello "+name+"." {
				errs <- fmt.Errorf("unexpected output %q", res.Text)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestEngine_ConcurrentAddTemplates(t *testing.T) {
	e := newTestEngine(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.AddTemplates(text(fmt.Sprintf("T%d", i), lit("x"))); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 16, e.Store().Len())
	for i := range 16 {
		assert.True(t, e.Store().Has(fmt.Sprintf("T%d", i)))
	}
}
