package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/callgraph"
	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph [template]",
		Short: "Show which templates call which",
		Long: `Show the template call graph.

Without arguments, prints every template grouped in levels: a template's
callees always appear in an earlier level. Mutually recursive templates are
listed as cycles. With a template name, prints its direct callers and
callees, everything it reaches, and everything affected when it changes.`,
		Example: `  leaplg graph
  leaplg graph Greet -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runGraphTemplate(cmd, args[0])
			}
			return runGraph(cmd)
		},
		ValidArgsFunction: completeTemplateNames,
	}
}

func runGraph(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	g := callgraph.Build(cc.Engine.Store())
	levels, cycles := g.Levels(), g.Cycles()

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(map[string]any{
			"templates": g.NodeCount(),
			"calls":     g.EdgeCount(),
			"levels":    levels,
			"cycles":    nonNilGroups(cycles),
			"roots":     nonNil(g.Roots()),
		})
	case output.ModeMarkdown:
		r.Header(1, fmt.Sprintf("Call graph (%d templates, %d calls)", g.NodeCount(), g.EdgeCount()))
		rows := make([][]string, 0, len(levels))
		for i, level := range levels {
			rows = append(rows, []string{fmt.Sprint(i), strings.Join(level, ", ")})
		}
		r.Table([]string{"Level", "Templates"}, rows)
		r.Header(2, "Cycles")
		bullets(r, joinGroups(cycles))
	default:
		for i, level := range levels {
			r.Printf("%s %s\n", r.Styles().Muted.Render(fmt.Sprintf("%2d", i)), strings.Join(level, "  "))
		}
		for _, c := range joinGroups(cycles) {
			r.Printf("%s %s\n", r.Styles().Warning.Render("cycle"), c)
		}
		r.Println(r.Styles().Muted.Render(fmt.Sprintf("%s, %s",
			pluralize(g.NodeCount(), "template"), pluralize(g.EdgeCount(), "call"))))
	}
	return nil
}

func runGraphTemplate(cmd *cobra.Command, name string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	g := callgraph.Build(cc.Engine.Store())
	if !g.Has(name) {
		return fmt.Errorf("template %q not found", name)
	}

	sections := []struct {
		key, title string
		names      []string
	}{
		{"callers", "Callers", g.Callers(name)},
		{"callees", "Callees", g.Callees(name)},
		{"downstream", "Reaches", g.Downstream(name)},
		{"affected", "Affected by changes", g.Affected([]string{name})},
		{"missing", "Missing references", g.Missing(name)},
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := map[string]any{"template": name}
		for _, s := range sections {
			out[s.key] = nonNil(s.names)
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Header(1, name)
		for _, s := range sections {
			r.Header(2, s.title)
			bullets(r, s.names)
		}
	default:
		for _, s := range sections {
			r.Println(r.Styles().Bold.Render(s.title))
			indented(r, s.names)
		}
	}
	return nil
}

func joinGroups(groups [][]string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, strings.Join(g, " -> "))
	}
	return out
}

func nonNilGroups(groups [][]string) [][]string {
	if groups == nil {
		return [][]string{}
	}
	return groups
}
