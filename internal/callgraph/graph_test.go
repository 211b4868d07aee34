package callgraph

import (
	"testing"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const project = `# Welcome(name)
- [Greet(name)] [Sign()]

# Greet(name)
- Hello {name}
- Hi [Title(name)]

# Title(name)
- {upper(name)}

# Sign
- [Missing()]

# Countdown(n)
- IF: {n > 0}
  - {n} [Countdown(n - 1)]
- ELSE:
  - done

# Ping
- [Pong()]

# Pong
- [Ping()] [Title("x")]
`

func buildProject(t *testing.T) *Graph {
	t.Helper()
	templates, err := lgfile.Parse(project, "project.lg")
	require.NoError(t, err)
	store, err := lg.NewStore(templates, lg.DuplicateError)
	require.NoError(t, err)
	return Build(store)
}

func TestBuild(t *testing.T) {
	g := buildProject(t)

	assert.Equal(t, 7, g.NodeCount())
	assert.Equal(t, 7, g.EdgeCount())
	assert.False(t, g.Has("Missing"))
	assert.Equal(t, []string{"Missing"}, g.Missing("Sign"))

	assert.Equal(t, []string{"Greet", "Sign"}, g.Callees("Welcome"))
	assert.Equal(t, []string{"Greet", "Pong"}, g.Callers("Title"))
	assert.Equal(t, []string{"Countdown"}, g.Callees("Countdown"))
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := buildProject(t)

	assert.Equal(t, []string{"Welcome"}, g.Roots())
	assert.Equal(t, []string{"Sign", "Title"}, g.Leaves())
}

func TestGraph_Cycles(t *testing.T) {
	g := buildProject(t)

	assert.Equal(t, [][]string{{"Countdown"}, {"Ping", "Pong"}}, g.Cycles())
}

func TestGraph_Levels(t *testing.T) {
	g := buildProject(t)

	assert.Equal(t, [][]string{
		{"Countdown", "Sign", "Title"},
		{"Greet", "Ping", "Pong"},
		{"Welcome"},
	}, g.Levels())
}

func TestGraph_Reachability(t *testing.T) {
	g := buildProject(t)

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"downstream", g.Downstream("Welcome"), []string{"Greet", "Sign", "Title"}},
		{"downstream of recursive", g.Downstream("Countdown"), []string{"Countdown"}},
		{"downstream of leaf", g.Downstream("Title"), []string{}},
		{"affected", g.Affected([]string{"Title"}), []string{"Greet", "Ping", "Pong", "Title", "Welcome"}},
		{"affected unknown", g.Affected([]string{"Nope"}), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestAddEdge_Dedup(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"A", "B"}, g.Nodes())
}
