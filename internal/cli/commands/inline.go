package commands

import (
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/state"
	"github.com/spf13/cobra"
)

// NewInlineCommand creates the inline command.
func NewInlineCommand() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "inline <text>",
		Short: "Evaluate template text given on the command line",
		Long: `Evaluate text as if it were the body of a template.

The text may use expressions, escapes and references to any loaded
template. Text starting with "-" is read as a full body with variants or
IF/ELSEIF/ELSE branches, one per line.`,
		Example: `  leaplg inline 'Dear [Greet("Ada")]'
  leaplg inline '{upper(name)}' --set name=bo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInline(cmd, strings.Join(args, " "), sets)
		},
	}

	addScopeFlags(cmd, &sets)
	return cmd
}

func runInline(cmd *cobra.Command, text string, sets []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	scope, err := loadScope(cc.Cfg.ScopeFile, sets)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := evaluateInline(cc.Engine, text, scope)
	if cc.History != nil {
		var recorded any
		if err == nil && res.Present {
			recorded = res.Text
		}
		e := state.NewEvaluation(lg.InlineTemplateName, state.ModeInline, scope, recorded, err, start)
		if recErr := cc.History.RecordEvaluation(cmd.Context(), e); recErr != nil {
			cc.Logger.Warn("failed to record evaluation", slog.Any("error", recErr))
		}
	}
	if err != nil {
		return err
	}

	result := evalResult{Template: lg.InlineTemplateName}
	if res.Present {
		result.Output, result.Present = &res.Text, true
	}
	return renderEvalResults(cc.Renderer, []evalResult{result})
}

func evaluateInline(eng *lg.Engine, text string, scope any) (lg.Result, error) {
	body, err := lgfile.ParseInline(text)
	if err != nil {
		return lg.Result{}, err
	}
	return eng.EvaluateInline(body, scope)
}
