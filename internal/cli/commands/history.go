package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit    int
		template string
	)

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show recorded evaluations",
		Long: `Show evaluations recorded with --record (or record: true in leaplg.yaml).

Without an argument, lists the most recent evaluations. With an id, shows
the scope and output of that evaluation.`,
		Example: `  leaplg history
  leaplg history --template Greet --limit 10
  leaplg history 0b6c1f2e-... -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryShow(cmd, args[0])
			}
			return runHistoryList(cmd, state.ListOptions{Limit: limit, Template: template})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", state.DefaultListLimit, "Maximum evaluations to list")
	cmd.Flags().StringVar(&template, "template", "", "Only list evaluations of this template")
	return cmd
}

func openExistingHistory(cc *CommandContext) (*state.SQLiteStore, error) {
	path := cc.Cfg.StatePath
	if path != ":memory:" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no history at %s\nHint: evaluate with --record to start recording", path)
		}
	}
	return openHistory(cc.Cfg, cc.Logger)
}

func runHistoryList(cmd *cobra.Command, opts state.ListOptions) error {
	cc := NewCommandContextWithoutEngine(cmd)
	history, err := openExistingHistory(cc)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	evals, err := history.ListEvaluations(cmd.Context(), opts)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]historyJSON, 0, len(evals))
		for _, e := range evals {
			out = append(out, toHistoryJSON(e))
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("History (%s)", pluralize(len(evals), "evaluation")))
	rows := make([][]string, 0, len(evals))
	for _, e := range evals {
		status := "ok"
		if e.Failed() {
			status = "failed"
		}
		rows = append(rows, []string{
			e.ID,
			e.StartedAt.Local().Format(time.DateTime),
			string(e.Mode),
			e.Template,
			status,
			e.Duration.Round(time.Microsecond).String(),
		})
	}
	r.Table([]string{"ID", "Started", "Mode", "Template", "Status", "Duration"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cc := NewCommandContextWithoutEngine(cmd)
	history, err := openExistingHistory(cc)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	e, err := history.GetEvaluation(cmd.Context(), id)
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(toHistoryJSON(e))
	case output.ModeMarkdown:
		r.Header(1, e.Template)
		r.Printf("- **ID:** %s\n- **Mode:** %s\n- **Started:** %s\n- **Duration:** %s\n\n",
			e.ID, e.Mode, e.StartedAt.Format(time.RFC3339), e.Duration)
		r.Header(2, "Scope")
		r.Println(output.FormatCodeBlock("json", string(e.Scope)))
		r.Println()
		if e.Failed() {
			r.Header(2, "Error")
			r.Println(e.Error)
			return nil
		}
		r.Header(2, "Output")
		r.Println(output.FormatCodeBlock("json", string(e.Output)))
	default:
		s := r.Styles()
		r.Printf("%s %s\n", s.Bold.Render(e.Template), s.Muted.Render(strings.Join([]string{string(e.Mode), e.ID}, " ")))
		r.Printf("%s %s (%s)\n", s.Muted.Render("started"), e.StartedAt.Local().Format(time.DateTime), e.Duration)
		r.Printf("%s %s\n", s.Muted.Render("scope  "), e.Scope)
		if e.Failed() {
			r.Printf("%s %s\n", s.Error.Render("error  "), e.Error)
			return nil
		}
		r.Printf("%s %s\n", s.Muted.Render("output "), e.Output)
	}
	return nil
}

type historyJSON struct {
	ID         string          `json:"id"`
	Template   string          `json:"template"`
	Mode       state.Mode      `json:"mode"`
	Scope      json.RawMessage `json:"scope"`
	Output     json.RawMessage `json:"output"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMs float64         `json:"durationMs"`
}

func toHistoryJSON(e *state.Evaluation) historyJSON {
	return historyJSON{
		ID:         e.ID,
		Template:   e.Template,
		Mode:       e.Mode,
		Scope:      e.Scope,
		Output:     e.Output,
		Error:      e.Error,
		StartedAt:  e.StartedAt,
		DurationMs: float64(e.Duration) / float64(time.Millisecond),
	}
}
