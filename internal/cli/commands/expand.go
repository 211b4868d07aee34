package commands

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/state"
	"github.com/spf13/cobra"
)

// NewExpandCommand creates the expand command.
func NewExpandCommand() *cobra.Command {
	var (
		sets       []string
		duplicates bool
	)

	cmd := &cobra.Command{
		Use:   "expand <template>",
		Short: "List every output a template can produce",
		Long: `Expand a template into every distinct output it can produce.

Every variant is taken instead of one at random, and every conditional
branch is taken regardless of its condition. The number of results is
bounded by max_expansion. Outputs that can be produced in more than one
way are listed once unless --duplicates is given.`,
		Example: `  leaplg expand Greet --set name=Ada
  leaplg expand Greet --duplicates -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd, args[0], sets, duplicates)
		},
		ValidArgsFunction: completeTemplateNames,
	}

	addScopeFlags(cmd, &sets)
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "Keep repeated outputs")
	return cmd
}

func runExpand(cmd *cobra.Command, name string, sets []string, duplicates bool) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	scope, err := loadScope(cc.Cfg.ScopeFile, sets)
	if err != nil {
		return err
	}

	var opts []lg.Option
	if duplicates {
		opts = append(opts, lg.WithDuplicates())
	}

	start := time.Now()
	outputs, err := cc.Engine.ExpandTemplate(name, scope, opts...)
	if cc.History != nil {
		e := state.NewEvaluation(name, state.ModeExpand, scope, outputs, err, start)
		if recErr := cc.History.RecordEvaluation(cmd.Context(), e); recErr != nil {
			cc.Logger.Warn("failed to record expansion", slog.String("template", name), slog.Any("error", recErr))
		}
	}
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if outputs == nil {
			outputs = []string{}
		}
		return r.JSON(map[string]any{"template": name, "outputs": outputs})
	case output.ModeMarkdown:
		r.Header(2, name)
		for _, o := range outputs {
			r.Printf("- %s\n", o)
		}
		r.Println()
		r.Printf("%d outputs\n", len(outputs))
	default:
		for _, o := range outputs {
			r.Println(o)
		}
		r.Println(r.Styles().Muted.Render(pluralize(len(outputs), "output")))
	}
	return nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
