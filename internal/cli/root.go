// Package cli provides the command-line interface for leaplg.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leaplg/internal/cli/commands"
	"github.com/leapstack-labs/leaplg/internal/cli/config"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leaplg",
		Short: "leaplg - language generation templates",
		Long: `leaplg evaluates language generation (LG) templates.

Templates are declared in .lg files as named, parameterized bodies of
variants or IF/ELSEIF/ELSE branches. Text may embed Starlark expressions
in {braces} and calls to other templates in [brackets]. Macro files in
the macros directory add functions that expressions can call.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == cobra.ShellCompRequestCmd {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if used := config.GetConfigFileUsed(); used != "" {
				logger.Debug("using config file", slog.String("path", used))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leaplg.yaml)")
	pf.String("templates-dir", "", "Path to templates directory")
	pf.String("macros-dir", "", "Path to macros directory")
	pf.String("scope", "", "Path to a JSON or YAML scope file")
	pf.Uint64("seed", 0, "Seed for variant choice (default: random)")
	pf.String("state", "", "Path to history database")
	pf.String("duplicate-policy", "", "How duplicate template names resolve (error|first|last)")
	pf.Bool("record", false, "Record evaluations in the history database")
	pf.Int("max-expansion", 0, "Maximum outputs produced by expand")
	pf.Uint64("max-steps", 0, "Maximum Starlark steps per expression")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", fixedCompletion(config.OutputFormats...))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", fixedCompletion(config.LogLevels...))
	_ = rootCmd.RegisterFlagCompletionFunc("duplicate-policy", fixedCompletion("error", "first", "last"))

	rootCmd.AddCommand(
		commands.NewVersionCommand(Version),
		commands.NewInitCommand(),
		commands.NewEvalCommand(),
		commands.NewExpandCommand(),
		commands.NewInlineCommand(),
		commands.NewAnalyzeCommand(),
		commands.NewCheckCommand(),
		commands.NewListCommand(),
		commands.NewMacrosCommand(),
		commands.NewGraphCommand(),
		commands.NewHistoryCommand(),
		commands.NewREPLCommand(),
		commands.NewWatchCommand(),
		commands.NewServeCommand(),
		commands.NewLSPCommand(),
		NewCompletionCommand(),
	)

	return rootCmd
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leaplg.

To load completions:

Bash:
  $ source <(leaplg completion bash)

Zsh:
  $ leaplg completion zsh > "${fpath[1]}/_leaplg"

Fish:
  $ leaplg completion fish | source

PowerShell:
  PS> leaplg completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
