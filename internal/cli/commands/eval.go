package commands

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/state"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// evalResult is the outcome of evaluating one template.
type evalResult struct {
	Template string  `json:"template"`
	Output   *string `json:"output"`
	Present  bool    `json:"present"`
	Error    string  `json:"error,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	var (
		sets     []string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "eval <template>...",
		Short: "Evaluate templates",
		Long: `Evaluate one or more templates against the scope and print their output.

Templates are evaluated in parallel, each with its own evaluator. Output is
printed in argument order. A template whose conditions all fail and which
has no ELSE branch produces no output, which is different from empty text.`,
		Example: `  # Evaluate a template with a scope file
  leaplg eval Greet --scope scope.yaml

  # Set scope variables inline
  leaplg eval Greet --set name=Ada

  # Reproducible variant choice
  leaplg eval Greet Farewell --seed 42 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args, sets, parallel)
		},
		ValidArgsFunction: completeTemplateNames,
	}

	addScopeFlags(cmd, &sets)
	cmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.NumCPU(), "Maximum templates evaluated at once")
	return cmd
}

func runEval(cmd *cobra.Command, names []string, sets []string, parallel int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	scope, err := loadScope(cc.Cfg.ScopeFile, sets)
	if err != nil {
		return err
	}

	results := evaluateAll(cmd.Context(), cc, names, scope, parallel)

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}

	if err := renderEvalResults(cc.Renderer, results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(results))
	}
	return nil
}

// evaluateAll evaluates every template concurrently. Results keep the
// order of names.
func evaluateAll(ctx context.Context, cc *CommandContext, names []string, scope any, parallel int) []evalResult {
	results := make([]evalResult, len(names))

	g := new(errgroup.Group)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, name := range names {
		g.Go(func() error {
			start := time.Now()
			res, err := cc.Engine.EvaluateTemplate(name, scope)

			out := evalResult{Template: name}
			var recorded any
			if err != nil {
				out.Error = err.Error()
			} else if res.Present {
				text := res.Text
				out.Output, out.Present = &text, true
				recorded = text
			}
			results[i] = out

			if cc.History != nil {
				e := state.NewEvaluation(name, state.ModeEvaluate, scope, recorded, err, start)
				if recErr := cc.History.RecordEvaluation(ctx, e); recErr != nil {
					cc.Logger.Warn("failed to record evaluation", slog.String("template", name), slog.Any("error", recErr))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func renderEvalResults(r *output.Renderer, results []evalResult) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(results)
	case output.ModeMarkdown:
		for _, res := range results {
			r.Header(2, res.Template)
			switch {
			case res.Error != "":
				r.Printf("**Error:** %s\n\n", res.Error)
			case !res.Present:
				r.Println("_no output_")
				r.Println()
			default:
				r.Println(output.FormatCodeBlock("text", *res.Output))
				r.Println()
			}
		}
	default:
		single := len(results) == 1
		for _, res := range results {
			if !single {
				r.Println(r.Styles().Bold.Render(res.Template))
			}
			switch {
			case res.Error != "":
				r.Println(r.Styles().Error.Render("error: ") + res.Error)
			case !res.Present:
				r.Println(r.Styles().Muted.Render("(no output)"))
			default:
				r.Println(*res.Output)
			}
		}
	}
	return nil
}
