package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/cli/testutil"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/starlark"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	cmds := []*cobra.Command{
		NewEvalCommand(),
		NewExpandCommand(),
		NewInlineCommand(),
		NewAnalyzeCommand(),
		NewCheckCommand(),
		NewListCommand(),
		NewMacrosCommand(),
		NewHistoryCommand(),
		NewREPLCommand(),
		NewWatchCommand(),
		NewServeCommand(),
		NewInitCommand(),
		NewVersionCommand("test"),
	}
	seen := map[string]bool{}
	for _, cmd := range cmds {
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Short)
			assert.NotEmpty(t, cmd.Long)
			assert.False(t, seen[cmd.Name()], "duplicate command name")
			seen[cmd.Name()] = true
		})
	}

	assert.NotNil(t, NewEvalCommand().Flags().Lookup("set"))
	assert.NotNil(t, NewServeCommand().Flags().Lookup("addr"))
	assert.NotNil(t, NewCheckCommand().Flags().Lookup("strict"))
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		value   any
		wantErr bool
	}{
		{in: "n=3", name: "n", value: 3},
		{in: "ok=true", name: "ok", value: true},
		{in: "f=1.5", name: "f", value: 1.5},
		{in: "s=hello world", name: "s", value: "hello world"},
		{in: "list=[1, 2]", name: "list", value: []any{1, 2}},
		{in: "empty=", name: "empty", value: ""},
		{in: "odd=[unclosed", name: "odd", value: "[unclosed"},
		{in: " spaced =x", name: "spaced", value: "x"},
		{in: "novalue", wantErr: true},
		{in: "=x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, value, err := parseAssignment(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestLoadScope(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "scope.json")
	yamlPath := filepath.Join(dir, "scope.yaml")
	listPath := filepath.Join(dir, "list.yml")
	testutil.WriteFile(t, jsonPath, `{"name": "ada", "n": 2}`)
	testutil.WriteFile(t, yamlPath, "name: bo\nitems: [a, b]\n")
	testutil.WriteFile(t, listPath, "- a\n- b\n")

	t.Run("no scope", func(t *testing.T) {
		scope, err := loadScope("", nil)
		require.NoError(t, err)
		assert.Nil(t, scope)
	})

	t.Run("json keeps numbers exact", func(t *testing.T) {
		scope, err := loadScope(jsonPath, nil)
		require.NoError(t, err)
		m := scope.(map[string]any)
		assert.Equal(t, "ada", m["name"])
		assert.Equal(t, "2", m["n"].(interface{ String() string }).String())
	})

	t.Run("set overrides file", func(t *testing.T) {
		scope, err := loadScope(yamlPath, []string{"name=cy", "extra=1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "cy", "items": []any{"a", "b"}, "extra": 1}, scope)
	})

	t.Run("set without file", func(t *testing.T) {
		scope, err := loadScope("", []string{"x=y"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"x": "y"}, scope)
	})

	t.Run("set on a list scope", func(t *testing.T) {
		_, err := loadScope(listPath, []string{"x=y"})
		require.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "scope.toml")
		testutil.WriteFile(t, path, "a = 1")
		_, err := loadScope(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadScope(filepath.Join(dir, "nope.json"), nil)
		require.Error(t, err)
	})
}

func newTestEngine(t *testing.T) *lg.Engine {
	t.Helper()
	eng, err := lg.NewEngine(lg.EngineConfig{Expressions: starlark.New()})
	require.NoError(t, err)
	templates, err := lgfile.Parse("# Greet(name)\n- Hi {name}\n\n# Pair\n- a\n- b\n", "test.lg")
	require.NoError(t, err)
	_, err = eng.AddTemplates(templates...)
	require.NoError(t, err)
	return eng
}

func TestREPLSession(t *testing.T) {
	var out, errOut bytes.Buffer
	s, err := newREPLSession(newTestEngine(t), map[string]any{"who": "ada"}, &out, &errOut)
	require.NoError(t, err)

	step := func(input string) (string, string, bool) {
		out.Reset()
		errOut.Reset()
		quit := s.handle(input)
		return out.String(), errOut.String(), quit
	}

	o, _, quit := step(`[Greet(who)]`)
	assert.False(t, quit)
	assert.Equal(t, "Hi ada\n", o)

	_, _, _ = step(":set who=bo")
	o, _, _ = step(`{who}`)
	assert.Equal(t, "bo\n", o)

	o, _, _ = step(":scope")
	assert.Equal(t, "who = bo\n", o)

	o, _, _ = step(":expand Pair")
	assert.ElementsMatch(t, []string{"a", "b"}, strings.Fields(o))

	o, _, _ = step(":analyze Greet")
	assert.Contains(t, o, "variables:  name")

	o, _, _ = step(":list")
	assert.Contains(t, o, "Greet(name)")

	_, e, _ := step("[Missing()]")
	assert.Contains(t, e, "Error:")

	_, e, _ = step(":bogus")
	assert.Contains(t, e, "unknown command")

	_, _, _ = step(":unset who")
	o, _, _ = step(":scope")
	assert.Empty(t, o)

	o, _, quit = step("   ")
	assert.Empty(t, o)
	assert.False(t, quit)

	_, _, quit = step(":quit")
	assert.True(t, quit)
}

func TestREPLSession_Reload(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "a.lg"), "# Greet(name)\n- Hey {name}\n")

	var out, errOut bytes.Buffer
	s, err := newREPLSession(newTestEngine(t), nil, &out, &errOut)
	require.NoError(t, err)
	s.templatesDir = dir

	s.handle(":reload")
	assert.Contains(t, out.String(), "reloaded 1 template")
	out.Reset()

	s.handle(`[Greet("x")]`)
	assert.Equal(t, "Hey x\n", out.String())
}

func TestREPLSession_RejectsNonMappingScope(t *testing.T) {
	_, err := newREPLSession(newTestEngine(t), []any{1}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestReplHistoryFile(t *testing.T) {
	assert.Empty(t, replHistoryFile(":memory:"))
	assert.Empty(t, replHistoryFile(""))
	assert.Equal(t, filepath.Join(".leaplg", "repl_history"), replHistoryFile(filepath.Join(".leaplg", "history.db")))
}

func TestCopyScaffold(t *testing.T) {
	dir := t.TempDir()

	written, err := copyScaffold(dir, false)
	require.NoError(t, err)
	assert.Contains(t, written, ".gitignore")
	assert.Contains(t, written, "templates/greetings.lg")
	assert.NotContains(t, written, "gitignore")

	// Existing files are kept without --force.
	cfgPath := filepath.Join(dir, "leaplg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("custom"), 0o600))
	written, err = copyScaffold(dir, false)
	require.NoError(t, err)
	assert.Empty(t, written)
	content, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(content))

	_, err = copyScaffold(dir, true)
	require.NoError(t, err)
	content, err = os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "templates_dir")

	templates, err := lgfile.LoadDir(filepath.Join(dir, "templates"))
	require.NoError(t, err)
	store, err := lg.NewStore(templates, lg.DuplicateError)
	require.NoError(t, err)
	assert.Empty(t, lg.Check(store))
}

func TestDotfile(t *testing.T) {
	assert.Equal(t, ".gitignore", dotfile("gitignore"))
	assert.Equal(t, "sub/.gitignore", dotfile("sub/gitignore"))
	assert.Equal(t, "templates/greetings.lg", dotfile("templates/greetings.lg"))
}

func TestCheckDirectory(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "good.lg"), "# A\n- [B()]\n\n# B\n- b\n")
	testutil.WriteFile(t, filepath.Join(dir, "bad.lg"), "- outside\n")
	testutil.WriteFile(t, filepath.Join(dir, "dup.lg"), "# B\n- again\n")

	t.Run("error policy", func(t *testing.T) {
		diags, n := checkDirectory(dir, "error")
		assert.Equal(t, 3, n)
		require.Len(t, diags.Errors(), 2)

		parse := diags.Errors()[0]
		require.NotNil(t, parse.Range)
		assert.Equal(t, "bad.lg", filepath.Base(parse.Range.Start.File))

		assert.Equal(t, "B", diags.Errors()[1].Template)
	})

	t.Run("last policy", func(t *testing.T) {
		diags, n := checkDirectory(dir, "last")
		assert.Equal(t, 3, n)
		assert.Len(t, diags.Errors(), 1)
		assert.NotEmpty(t, diags.Warnings())
	})

	t.Run("bad policy", func(t *testing.T) {
		diags, _ := checkDirectory(dir, "sometimes")
		assert.True(t, diags.HasErrors())
	})
}

func TestRenderDiagnostics(t *testing.T) {
	diags := lg.Diagnostics{
		{Message: "no such template: X", Severity: lg.SeverityError, Template: "A",
			Range: &lg.Range{Start: lg.Position{File: "a.lg", Line: 2, Column: 3}}},
		{Message: "may produce no output", Severity: lg.SeverityWarning, Template: "B"},
	}

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeMarkdown, false)
		require.NoError(t, renderDiagnostics(tr.Renderer, diags, 2))
		md := tr.Output()
		testutil.AssertNoANSI(t, md)
		testutil.AssertValidMarkdown(t, md)
		assert.Contains(t, md, "# Check (2 templates)")
		assert.Contains(t, md, "a.lg:2:3")
	})

	t.Run("text", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeText, false)
		require.NoError(t, renderDiagnostics(tr.Renderer, diags, 2))
		assert.Contains(t, tr.Output(), "2 templates, 1 error, 1 warning")
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeJSON, false)
		require.NoError(t, renderDiagnostics(tr.Renderer, diags, 2))
		assert.Contains(t, tr.Output(), `"line": 2`)
		assert.Contains(t, tr.Output(), `"severity": "warning"`)
	})
}

func TestRenderEvalResults(t *testing.T) {
	text := "hello"
	results := []evalResult{
		{Template: "A", Output: &text, Present: true},
		{Template: "B"},
		{Template: "C", Error: "boom"},
	}

	tr := testutil.NewTestRenderer(output.ModeMarkdown, false)
	require.NoError(t, renderEvalResults(tr.Renderer, results))
	md := tr.Output()
	testutil.AssertValidMarkdown(t, md)
	assert.Contains(t, md, "## A")
	assert.Contains(t, md, "_no output_")
	assert.Contains(t, md, "**Error:** boom")

	tr = testutil.NewTestRenderer(output.ModeText, false)
	require.NoError(t, renderEvalResults(tr.Renderer, results[:1]))
	assert.Equal(t, "hello\n", tr.Output())
}

func TestRelativeTo(t *testing.T) {
	root := filepath.Join("/", "proj")
	assert.Equal(t, filepath.Join("templates", "a.lg"), relativeTo(root, filepath.Join(root, "templates", "a.lg")))
	assert.Equal(t, filepath.Join("/", "elsewhere", "a.lg"), relativeTo(root, filepath.Join("/", "elsewhere", "a.lg")))
	assert.Equal(t, "a.lg", relativeTo("", "a.lg"))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 template", pluralize(1, "template"))
	assert.Equal(t, "0 templates", pluralize(0, "template"))
	assert.Equal(t, "3 errors", pluralize(3, "error"))
}
