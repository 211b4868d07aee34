package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/spf13/cobra"
)

type templateJSON struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	HasBody    bool     `json:"has_body"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all templates",
		Long: `List every loaded template with its parameters and where it is declared.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table

Use --output to override: auto, text, markdown, json`,
		Example: `  leaplg list
  leaplg list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	templates := cc.Engine.Store().Templates()
	r := cc.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]templateJSON, 0, len(templates))
		for _, t := range templates {
			params := t.Parameters
			if params == nil {
				params = []string{}
			}
			out = append(out, templateJSON{
				Name:       t.Name,
				Parameters: params,
				File:       relativeTo(cc.Cfg.ProjectRoot, t.Pos.File),
				Line:       t.Pos.Line,
				HasBody:    t.Body != nil,
			})
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Templates (%d total)", len(templates)))
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, []string{t.Name, signature(t), declaredAt(cc.Cfg.ProjectRoot, t)})
	}
	r.Table([]string{"Name", "Parameters", "Declared"}, rows)
	return nil
}

func signature(t *lg.Template) string {
	return "(" + strings.Join(t.Parameters, ", ") + ")"
}

func declaredAt(root string, t *lg.Template) string {
	if t.Pos.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", relativeTo(root, t.Pos.File), t.Pos.Line)
}

// relativeTo shortens path against root when it lies inside it.
func relativeTo(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
