package commands

import (
	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <template>",
		Short: "Show the variables and templates a template depends on",
		Long: `Analyze a template without evaluating it.

Variables are the expressions reachable from the template that are not
bound to one of its own parameters. References are every template reachable
through calls, transitively.`,
		Example: `  leaplg analyze Greet
  leaplg analyze Greet -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0])
		},
		ValidArgsFunction: completeTemplateNames,
	}
}

func runAnalyze(cmd *cobra.Command, name string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cc.Engine.AnalyzeTemplate(name)
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(map[string]any{
			"template":           name,
			"variables":          nonNil(res.Variables),
			"templateReferences": nonNil(res.TemplateReferences),
		})
	case output.ModeMarkdown:
		r.Header(1, name)
		r.Header(2, "Variables")
		bullets(r, res.Variables)
		r.Header(2, "Template references")
		bullets(r, res.TemplateReferences)
	default:
		r.Println(r.Styles().Bold.Render("Variables"))
		indented(r, res.Variables)
		r.Println(r.Styles().Bold.Render("Template references"))
		indented(r, res.TemplateReferences)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func bullets(r *output.Renderer, items []string) {
	if len(items) == 0 {
		r.Println("_none_")
	}
	for _, it := range items {
		r.Printf("- `%s`\n", it)
	}
	r.Println()
}

func indented(r *output.Renderer, items []string) {
	if len(items) == 0 {
		r.Println(r.Styles().Muted.Render("  (none)"))
	}
	for _, it := range items {
		r.Printf("  %s\n", it)
	}
}
