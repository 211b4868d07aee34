package lgfile

import (
	"testing"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingFile = `> Greetings used by the demo bot.
# Greet(name)
- Hello @{name}!
- Hi {name}, [Weather(temp)]

# Weather(temp)
- IF: {temp > 25}
    - it is hot
    - what a scorcher
- ELSEIF: {temp > 10}
    - it is mild
- ELSE:
    - it is cold

# Card
- ` + "```" + `{
  "title": "@{[Greet(\"Ada\")]}"
}` + "```" + `
`

func TestParse(t *testing.T) {
	templates, err := Parse(greetingFile, "greet.lg")
	require.NoError(t, err)
	require.Len(t, templates, 3)

	greet := templates[0]
	assert.Equal(t, "Greet", greet.Name)
	assert.Equal(t, []string{"name"}, greet.Parameters)
	assert.Equal(t, lg.Position{File: "greet.lg", Line: 2, Column: 1}, greet.Pos)

	body, ok := greet.Body.(*lg.NormalBody)
	require.True(t, ok, "expected NormalBody, got %T", greet.Body)
	require.Len(t, body.Variants, 2)
	assert.Equal(t, []lg.Segment{
		lg.NewLiteral(lg.Position{File: "greet.lg", Line: 3, Column: 3}, "Hello "),
		lg.NewExpression(lg.Position{File: "greet.lg", Line: 3, Column: 9}, "@{name}"),
		lg.NewLiteral(lg.Position{File: "greet.lg", Line: 3, Column: 16}, "!"),
	}, body.Variants[0].Segments)

	weather := templates[1]
	cond, ok := weather.Body.(*lg.ConditionalBody)
	require.True(t, ok, "expected ConditionalBody, got %T", weather.Body)
	require.Len(t, cond.Cases, 2)
	assert.Equal(t, "{temp > 25}", cond.Cases[0].Condition)
	assert.Len(t, cond.Cases[0].Body.Variants, 2)
	assert.Equal(t, "{temp > 10}", cond.Cases[1].Condition)
	require.NotNil(t, cond.Default)
	assert.Len(t, cond.Default.Variants, 1)

	card := templates[2]
	cardBody := card.Body.(*lg.NormalBody)
	require.Len(t, cardBody.Variants, 1)
	require.Len(t, cardBody.Variants[0].Segments, 1)
	ml, ok := cardBody.Variants[0].Segments[0].(*lg.MultiLineText)
	require.True(t, ok)
	assert.Equal(t, "```{\n  \"title\": \"@{[Greet(\\\"Ada\\\")]}\"\n}```", ml.Raw)
}

func TestParse_Evaluates(t *testing.T) {
	templates, err := Parse(greetingFile, "greet.lg")
	require.NoError(t, err)

	store, err := lg.NewStore(templates, lg.DuplicateError)
	require.NoError(t, err)
	assert.False(t, lg.Check(store).HasErrors())
}

func TestParse_Bodies(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, tpl *lg.Template)
	}{
		{
			name: "no body",
			src:  "# Empty\n\n# Other\n- x\n",
			check: func(t *testing.T, tpl *lg.Template) {
				assert.Nil(t, tpl.Body)
			},
		},
		{
			name: "comments and blank lines between variants",
			src:  "# T\n- a\n> note\n\n- b\n",
			check: func(t *testing.T, tpl *lg.Template) {
				assert.Len(t, tpl.Body.(*lg.NormalBody).Variants, 2)
			},
		},
		{
			name: "lowercase keywords and ELSE IF",
			src:  "# T\n- if: {a}\n  - x\n- else if: {b}\n  - y\n",
			check: func(t *testing.T, tpl *lg.Template) {
				body := tpl.Body.(*lg.ConditionalBody)
				require.Len(t, body.Cases, 2)
				assert.Equal(t, "{b}", body.Cases[1].Condition)
				assert.Nil(t, body.Default)
			},
		},
		{
			name: "branch without variants",
			src:  "# T\n- IF: {a}\n- ELSE:\n  - y\n",
			check: func(t *testing.T, tpl *lg.Template) {
				body := tpl.Body.(*lg.ConditionalBody)
				assert.Nil(t, body.Cases[0].Body)
			},
		},
		{
			name: "no parameters",
			src:  "# T()\n- x\n",
			check: func(t *testing.T, tpl *lg.Template) {
				assert.Empty(t, tpl.Parameters)
			},
		},
		{
			name: "trailing whitespace is trimmed",
			src:  "# T\n-   padded   \r\n",
			check: func(t *testing.T, tpl *lg.Template) {
				seg := tpl.Body.(*lg.NormalBody).Variants[0].Segments[0].(*lg.Literal)
				assert.Equal(t, "padded", seg.Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			templates, err := Parse(tt.src, "t.lg")
			require.NoError(t, err)
			require.NotEmpty(t, templates)
			tt.check(t, templates[0])
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"text before template", "hello\n# T\n- x", "t.lg:1:1: content outside of a template"},
		{"line without dash", "# T\nhello", "expected '-' to start a variant"},
		{"invalid name", "# 1abc\n- x", "invalid template name"},
		{"invalid parameter", "# T(a b)\n- x", "invalid parameter name"},
		{"unclosed header", "# T(a\n- x", "missing ')'"},
		{"ELSEIF before IF", "# T\n- ELSEIF: {a}\n  - x", "IF must be the first branch"},
		{"second IF", "# T\n- IF: {a}\n  - x\n- IF: {b}\n  - y", "IF must be the first branch"},
		{"branch after ELSE", "# T\n- IF: {a}\n  - x\n- ELSE:\n  - y\n- ELSEIF: {b}\n  - z", "ELSEIF after ELSE"},
		{"ELSE with condition", "# T\n- IF: {a}\n  - x\n- ELSE: {b}\n  - y", "ELSE does not take a condition"},
		{"unindented variant in conditional", "# T\n- IF: {a}\n- x", "variant outside of a conditional branch"},
		{"mixed bodies", "# T\n- x\n- IF: {a}", "IF branch in template T"},
		{"unclosed multi-line", "# T\n- ```open\nstill open", "unclosed multi-line text"},
		{"unclosed expression", "# T\n- {open", "t.lg:2:3: unclosed expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, "t.lg")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseInline(t *testing.T) {
	t.Run("single variant", func(t *testing.T) {
		body, err := ParseInline("Hello {name}\nand more")
		require.NoError(t, err)
		nb := body.(*lg.NormalBody)
		require.Len(t, nb.Variants, 1)
		assert.Len(t, nb.Variants[0].Segments, 3)
	})

	t.Run("full body", func(t *testing.T) {
		body, err := ParseInline("- IF: {a}\n  - yes\n- ELSE:\n  - no")
		require.NoError(t, err)
		assert.IsType(t, &lg.ConditionalBody{}, body)
	})

	t.Run("empty", func(t *testing.T) {
		body, err := ParseInline("")
		require.NoError(t, err)
		assert.Empty(t, body.(*lg.NormalBody).Variants[0].Segments)
	})

	t.Run("error", func(t *testing.T) {
		_, err := ParseInline("{open")
		require.Error(t, err)
	})
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line   string
		name   string
		params []string
		ok     bool
	}{
		{"# Greet", "Greet", nil, true},
		{"  # Greet(name, when) ", "Greet", []string{"name", "when"}, true},
		{"#Greet()", "Greet", nil, true},
		{"# Greet(name", "", nil, false},
		{"# 1bad", "", nil, false},
		{"- Greet", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, params, ok := ParseHeader(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.params, params)
		})
	}
}
