package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/spf13/cobra"
)

//go:embed all:scaffold
var scaffoldFS embed.FS

const scaffoldRoot = "scaffold"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a new leaplg project",
		Long: `Create a project with a configuration file, example templates and an
example macro file.

This creates:
  - leaplg.yaml configuration file
  - templates/ with greetings.lg
  - macros/ with text.star
  - scope.yaml with a sample scope
  - .gitignore ignoring the .leaplg state directory

Existing files are kept unless --force is given.`,
		Example: `  leaplg init
  leaplg init my-project
  leaplg init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "leaplg.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.New("leaplg.yaml already exists. Use --force to overwrite")
	}

	written, err := copyScaffold(dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	s := r.Styles()
	for _, f := range written {
		r.Printf("  %s %s\n", s.Success.Render("✓"), f)
	}
	r.Println()
	r.Println(s.Success.Render("leaplg project initialized!"))
	r.Println()
	r.Println("Next steps:")
	r.Println("  1. leaplg check")
	r.Println("  2. leaplg eval Welcome --scope scope.yaml")
	r.Println("  3. leaplg expand Weather --set temp=30")
	return nil
}

// copyScaffold writes the embedded scaffold into dir and returns the
// relative paths written.
func copyScaffold(dir string, force bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(scaffoldFS, scaffoldRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, scaffoldRoot), "/")
		if rel == "" {
			return nil
		}
		target := filepath.Join(dir, filepath.FromSlash(dotfile(rel)))

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}
		content, err := scaffoldFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return err
		}
		written = append(written, dotfile(rel))
		return nil
	})
	return written, err
}

// dotfile restores the leading dot of files that cannot be embedded with
// one, such as gitignore.
func dotfile(rel string) string {
	dir, base := path.Split(rel)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return rel
}
