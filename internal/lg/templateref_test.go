package lg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplateRef(t *testing.T) {
	tests := []struct {
		raw      string
		expected refCall
		wantErr  bool
	}{
		{"[Name]", refCall{Name: "Name"}, false},
		{"[ Name ]", refCall{Name: "Name"}, false},
		{"[Name()]", refCall{Name: "Name", HasArgs: true}, false},
		{"[Name(a)]", refCall{Name: "Name", Args: []string{"a"}, HasArgs: true}, false},
		{"[Name(a, b)]", refCall{Name: "Name", Args: []string{"a", "b"}, HasArgs: true}, false},
		{"[Name(f(a, b), c)]", refCall{Name: "Name", Args: []string{"f(a, b)", "c"}, HasArgs: true}, false},
		{`[Name("x, y", [1, 2])]`, refCall{Name: "Name", Args: []string{`"x, y"`, "[1, 2]"}, HasArgs: true}, false},
		{"[]", refCall{}, true},
		{"[(a)]", refCall{}, true},
		{"[Name(a]", refCall{}, true},
		{"[Name)a(]", refCall{}, true},
		{"[Name(a) tail]", refCall{}, true},
		{"[Name a)]", refCall{}, true},
		{"[Name(f(a)]", refCall{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTemplateRef(Position{}, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, &MalformedTemplateRefError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in       string
		expected []string
		ok       bool
	}{
		{"", nil, true},
		{"  ", nil, true},
		{"a", []string{"a"}, true},
		{"a,b", []string{"a", "b"}, true},
		{"{x: 1, y: 2}, z", []string{"{x: 1, y: 2}", "z"}, true},
		{`'it\'s, fine', b`, []string{`'it\'s, fine'`, "b"}, true},
		{"a)", nil, false},
		{"(a", nil, false},
		{`"open`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := splitArgs(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStripExpression(t *testing.T) {
	assert.Equal(t, "name", stripExpression("{name}"))
	assert.Equal(t, "name", stripExpression("@{ name }"))
	assert.Equal(t, "a", stripExpression(" a "))
}

func TestSplitMultiLine(t *testing.T) {
	parts := splitMultiLine("```Hi @{name}, see @{[Card(1)]}.```")
	require.Len(t, parts, 5)
	assert.Equal(t, multiLinePart{Text: "Hi "}, parts[0])
	assert.Equal(t, multiLinePart{Text: "@{name}", Subst: true, Content: "{name}"}, parts[1])
	assert.Equal(t, multiLinePart{Text: ", see "}, parts[2])
	assert.Equal(t, multiLinePart{Text: "@{[Card(1)]}", Subst: true, IsRef: true, Content: "[Card(1)]"}, parts[3])
	assert.Equal(t, multiLinePart{Text: "."}, parts[4])
}

func TestReferences(t *testing.T) {
	tests := []struct {
		name string
		t    *Template
		want []string
	}{
		{"none", text("A", lit("a"), expr("{x}")), nil},
		{"dedup in order", text("A", ref("[B]"), ref("[C(1)]"), ref("[B(2)]")), []string{"B", "C"}},
		{"malformed skipped", text("A", ref("[()]"), ref("[D]")), []string{"D"}},
		{"multi-line", text("A", mlt("```x @{[E]} @{y}```")), []string{"E"}},
		{"all branches", tmpl("A", nil, cond([]*Case{
			when("{a}", normal(variant(ref("[F]")))),
			when("{b}", normal(variant(ref("[G]")))),
		}, normal(variant(ref("[H]"))))), []string{"F", "G", "H"}},
		{"no body", &Template{Name: "A"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, References(tt.t))
		})
	}
}
