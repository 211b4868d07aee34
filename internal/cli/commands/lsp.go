package commands

import (
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lsp"
	"github.com/spf13/cobra"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server",
		Long: `Start a Language Server Protocol server on stdin and stdout.

Editors get checker diagnostics as you type, completion of template names,
parameters, builtins and macros, hover documentation and go to definition.
Logs go to stderr.`,
		Example: `  leaplg lsp
  leaplg lsp --log-level debug 2> lsp.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutEngine(cmd)
			policy, err := lg.ParseDuplicatePolicy(cc.Cfg.DuplicatePolicy)
			if err != nil {
				return err
			}
			srv := lsp.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), lsp.Options{
				TemplatesDir:    cc.Cfg.TemplatesDir,
				MacrosDir:       cc.Cfg.MacrosDir,
				DuplicatePolicy: policy,
				Logger:          cc.Logger,
			})
			return srv.Run()
		},
	}
}
