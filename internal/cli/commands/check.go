package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaplg/internal/cli/config"
	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/macro"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Statically check templates and macros",
		Long: `Check every template file without evaluating any expression.

Reports syntax errors, references to missing templates, wrong argument
counts, invalid escapes, empty bodies and duplicate names. Macro files are
loaded to catch Starlark errors. Exits non-zero when any error is found,
or any warning with --strict.`,
		Example: `  leaplg check
  leaplg check --strict -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd)
		},
	}

	// Read back through the config loader as the strict key.
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")
	return cmd
}

func runCheck(cmd *cobra.Command) error {
	cc := NewCommandContextWithoutEngine(cmd)
	cfg := cc.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	diags, templates := checkProject(cfg)
	if err := renderDiagnostics(cc.Renderer, diags, templates); err != nil {
		return err
	}

	errs, warns := len(diags.Errors()), len(diags.Warnings())
	switch {
	case errs > 0:
		return fmt.Errorf("check failed: %d errors, %d warnings", errs, warns)
	case cfg.Strict && warns > 0:
		return fmt.Errorf("check failed: %d warnings (strict)", warns)
	}
	return nil
}

// checkProject checks the templates and loads the macros of a project.
func checkProject(cfg *config.Config) (lg.Diagnostics, int) {
	diags, templates := checkDirectory(cfg.TemplatesDir, cfg.DuplicatePolicy)
	if _, err := macro.LoadAndRegister(cfg.MacrosDir); err != nil {
		diags = append(diags, lg.Diagnostic{Message: err.Error(), Severity: lg.SeverityError})
	}
	return diags, templates
}

// checkDirectory parses every file and checks the resulting store. Files
// that fail to parse are reported and skipped so one typo does not hide
// every other finding.
func checkDirectory(dir, policy string) (lg.Diagnostics, int) {
	var diags lg.Diagnostics

	files, err := lgfile.Files(dir)
	if err != nil {
		return lg.Diagnostics{{Message: err.Error(), Severity: lg.SeverityError}}, 0
	}

	var templates []*lg.Template
	for _, file := range files {
		ts, err := lgfile.LoadFiles(file)
		if err != nil {
			diags = append(diags, errorDiagnostic(err))
			continue
		}
		templates = append(templates, ts...)
	}

	p, err := lg.ParseDuplicatePolicy(policy)
	if err != nil {
		return append(diags, errorDiagnostic(err)), len(templates)
	}
	store, err := lg.NewStore(templates, p)
	if err != nil {
		return append(diags, errorDiagnostic(err)), len(templates)
	}
	return append(diags, lg.Check(store)...), len(templates)
}

// errorDiagnostic converts a load error to a diagnostic, keeping its
// position when it has one.
func errorDiagnostic(err error) lg.Diagnostic {
	d := lg.Diagnostic{Message: err.Error(), Severity: lg.SeverityError}

	var (
		fileErr lgfile.Error
		lgErr   lg.Error
		pos     lg.Position
	)
	switch {
	case errors.As(err, &fileErr):
		pos = fileErr.Position()
	case errors.As(err, &lgErr):
		pos = lgErr.Position()
	}
	if !pos.IsZero() {
		d.Range = &lg.Range{Start: pos, End: pos}
	}

	var dup *lg.DuplicateTemplateError
	if errors.As(err, &dup) {
		d.Template = dup.Name
	}
	return d
}

type diagnosticJSON struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Template string `json:"template,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

func renderDiagnostics(r *output.Renderer, diags lg.Diagnostics, templates int) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := make([]diagnosticJSON, 0, len(diags))
		for _, d := range diags {
			dj := diagnosticJSON{Severity: d.Severity.String(), Message: d.Message, Template: d.Template}
			if d.Range != nil {
				dj.File, dj.Line, dj.Column = d.Range.Start.File, d.Range.Start.Line, d.Range.Start.Column
			}
			out = append(out, dj)
		}
		return r.JSON(map[string]any{"templates": templates, "diagnostics": out})

	case output.ModeMarkdown:
		r.Header(1, fmt.Sprintf("Check (%d templates)", templates))
		if len(diags) == 0 {
			r.Println("No problems found.")
			return nil
		}
		rows := make([][]string, 0, len(diags))
		for _, d := range diags {
			rows = append(rows, []string{d.Severity.String(), location(d), d.Template, d.Message})
		}
		r.Table([]string{"Severity", "Location", "Template", "Message"}, rows)

	default:
		for _, d := range diags {
			loc := location(d)
			if loc != "" {
				loc = r.Styles().Muted.Render(loc) + "  "
			}
			r.Printf("  %s  %s%s\n", r.Styles().Severity(d.Severity), loc, d.Message)
		}
		if len(diags) == 0 {
			r.Println(r.Styles().Success.Render(fmt.Sprintf("✓ %s checked, no problems found", pluralize(templates, "template"))))
			return nil
		}
		r.Println()
		r.Printf("%s, %s, %s\n",
			pluralize(templates, "template"),
			pluralize(len(diags.Errors()), "error"),
			pluralize(len(diags.Warnings()), "warning"))
	}
	return nil
}

func location(d lg.Diagnostic) string {
	if d.Range == nil {
		return ""
	}
	return d.Range.Start.String()
}
