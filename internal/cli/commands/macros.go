package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/macro"
	"github.com/spf13/cobra"
)

// NewMacrosCommand creates the macros command.
func NewMacrosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "macros",
		Short: "List macro functions available to expressions",
		Long: `List the public functions of every .star file in the macros directory.

Each file is a namespace named after the file, so text.star exporting
title(s) is called as text.title(s) inside an expression. Files are parsed
but not executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMacros(cmd)
		},
	}
}

func runMacros(cmd *cobra.Command) error {
	cc := NewCommandContextWithoutEngine(cmd)
	funcs, err := macro.DescribeDir(cc.Cfg.MacrosDir)
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if funcs == nil {
			funcs = []*macro.Function{}
		}
		return r.JSON(funcs)
	case output.ModeMarkdown:
		r.Header(1, fmt.Sprintf("Macros (%d functions)", len(funcs)))
		for _, f := range funcs {
			r.Printf("- `%s`", f.Signature())
			if f.Doc != "" {
				r.Printf(": %s", firstLine(f.Doc))
			}
			r.Println()
		}
	default:
		if len(funcs) == 0 {
			r.Println(r.Styles().Muted.Render("No macros found in " + cc.Cfg.MacrosDir))
			return nil
		}
		rows := make([][]string, 0, len(funcs))
		for _, f := range funcs {
			rows = append(rows, []string{f.Signature(), firstLine(f.Doc)})
		}
		r.Table([]string{"Function", "Description"}, rows)
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
