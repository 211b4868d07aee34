// Package callgraph builds the graph of template calls: an edge runs from
// a template to every template it references. The graph is built from
// stores that may still hold reference cycles, which lg.Check rejects, so
// cyclic groups are kept as nodes of their own rather than breaking the
// walk.
package callgraph

import (
	"slices"
	"sort"

	"github.com/leapstack-labs/leaplg/internal/lg"
)

// Graph is a directed graph of template names.
type Graph struct {
	nodes   map[string]bool
	callees map[string][]string // caller -> callees
	callers map[string][]string // callee -> callers
	missing map[string][]string // caller -> referenced names with no template
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		callees: make(map[string][]string),
		callers: make(map[string][]string),
		missing: make(map[string][]string),
	}
}

// Build creates the call graph of every template in store.
func Build(store *lg.Store) *Graph {
	g := New()
	for _, name := range store.Names() {
		g.AddNode(name)
	}
	for _, t := range store.Templates() {
		for _, callee := range lg.References(t) {
			if !store.Has(callee) {
				g.missing[t.Name] = append(g.missing[t.Name], callee)
				continue
			}
			g.AddEdge(t.Name, callee)
		}
	}
	return g
}

// AddNode adds a template to the graph.
func (g *Graph) AddNode(name string) {
	g.nodes[name] = true
}

// AddEdge records that caller references callee. Both are added as nodes.
// Self-references are kept; they make a template recursive.
func (g *Graph) AddEdge(caller, callee string) {
	g.AddNode(caller)
	g.AddNode(callee)
	if !slices.Contains(g.callees[caller], callee) {
		g.callees[caller] = append(g.callees[caller], callee)
		g.callers[callee] = append(g.callers[callee], caller)
	}
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	return g.nodes[name]
}

// Nodes returns every template name, sorted.
func (g *Graph) Nodes() []string {
	return sortedKeys(g.nodes)
}

// NodeCount returns the number of templates in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct caller/callee pairs.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, cs := range g.callees {
		n += len(cs)
	}
	return n
}

// Callees returns the templates name references directly.
func (g *Graph) Callees(name string) []string {
	return sorted(g.callees[name])
}

// Callers returns the templates that reference name directly.
func (g *Graph) Callers(name string) []string {
	return sorted(g.callers[name])
}

// Missing returns the names name references that have no template.
func (g *Graph) Missing(name string) []string {
	return sorted(g.missing[name])
}

// Downstream returns every template reachable from name, excluding name
// unless it is recursive.
func (g *Graph) Downstream(name string) []string {
	return g.reach([]string{name}, g.callees, false)
}

// Affected returns the given templates and every template that reaches
// one of them, so the outputs that can change when they change.
func (g *Graph) Affected(changed []string) []string {
	return g.reach(changed, g.callers, true)
}

func (g *Graph) reach(start []string, next map[string][]string, includeStart bool) []string {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(n string) {
		for _, m := range next[n] {
			if !seen[m] {
				seen[m] = true
				visit(m)
			}
		}
	}
	for _, s := range start {
		if !g.nodes[s] {
			continue
		}
		if includeStart {
			seen[s] = true
		}
		visit(s)
	}
	return sortedKeys(seen)
}

// Roots returns templates no other template references. These are the
// entry points of a project.
func (g *Graph) Roots() []string {
	var roots []string
	for n := range g.nodes {
		if len(g.callers[n]) == 0 {
			roots = append(roots, n)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns templates that reference no other template.
func (g *Graph) Leaves() []string {
	var leaves []string
	for n := range g.nodes {
		if len(g.callees[n]) == 0 {
			leaves = append(leaves, n)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Cycles returns the groups of templates that reference each other in a
// loop, including templates that reference themselves. Each group and the list are sorted.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, comp := range g.components() {
		if len(comp) > 1 || slices.Contains(g.callees[comp[0]], comp[0]) {
			cycles = append(cycles, comp)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// Levels groups templates so that every template's callees are in an
// earlier level. Level 0 holds the leaves. Mutually recursive templates
// share a level.
func (g *Graph) Levels() [][]string {
	comps := g.components()
	compOf := make(map[string]int, len(g.nodes))
	for i, comp := range comps {
		for _, n := range comp {
			compOf[n] = i
		}
	}

	level := make(map[int]int, len(comps))
	var levelOf func(int) int
	levelOf = func(c int) int {
		if l, ok := level[c]; ok {
			return l
		}
		l := 0
		for _, n := range comps[c] {
			for _, callee := range g.callees[n] {
				if cc := compOf[callee]; cc != c {
					l = max(l, levelOf(cc)+1)
				}
			}
		}
		level[c] = l
		return l
	}

	var levels [][]string
	for c := range comps {
		l := levelOf(c)
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], comps[c]...)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels
}

// components returns the strongly connected components, each sorted.
func (g *Graph) components() [][]string {
	var (
		index   = 0
		indices = make(map[string]int, len(g.nodes))
		lowlink = make(map[string]int, len(g.nodes))
		onStack = make(map[string]bool, len(g.nodes))
		stack   []string
		comps   [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v], lowlink[v] = index, index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.callees[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Strings(comp)
			comps = append(comps, comp)
		}
	}

	for _, n := range g.Nodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return comps
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
