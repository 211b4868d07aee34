// Package commands implements the leaplg subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leaplg/internal/cli/config"
	"github.com/leapstack-labs/leaplg/internal/cli/output"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/macro"
	"github.com/leapstack-labs/leaplg/internal/starlark"
	"github.com/leapstack-labs/leaplg/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg         *config.Config
	Logger      *slog.Logger
	Renderer    *output.Renderer
	Engine      *lg.Engine
	Expressions *starlark.Evaluator
	Macros      *macro.Registry
	History     state.HistoryStore // nil unless recording is enabled
}

// NewCommandContext loads macros and templates and builds an engine.
// The returned cleanup function must be called when the command is done.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutEngine(cmd)
	cfg := cc.Cfg

	if err := cfg.ValidateDirectories(); err != nil {
		return nil, nil, err
	}

	eng, exprs, registry, err := createEngine(cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng
	cc.Expressions = exprs
	cc.Macros = registry

	templates, err := lgfile.LoadDir(cfg.TemplatesDir)
	if err != nil {
		return nil, nil, err
	}
	diags, err := eng.AddTemplates(templates...)
	if err != nil {
		var checkErr *lg.CheckError
		if errors.As(err, &checkErr) {
			return nil, nil, fmt.Errorf("%w\nHint: run 'leaplg check' for details", err)
		}
		return nil, nil, err
	}
	for _, d := range diags.Warnings() {
		cc.Logger.Warn(d.Message, slog.String("template", d.Template))
	}

	cleanup := func() {}
	if cfg.Record {
		history, err := openHistory(cfg, cc.Logger)
		if err != nil {
			return nil, nil, err
		}
		cc.History = history
		cleanup = func() { _ = history.Close() }
	}

	cc.Logger.Debug("command context ready",
		slog.String("templates_dir", cfg.TemplatesDir),
		slog.Int("templates", eng.Store().Len()),
		slog.Int("macro_namespaces", registry.Len()))
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without loading
// templates. Useful for commands that only read files or history.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or defaults when none was
// loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*lg.Engine, *starlark.Evaluator, *macro.Registry, error) {
	registry, err := macro.LoadAndRegister(cfg.MacrosDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load macros: %w", err)
	}

	exprs := starlark.New(
		starlark.WithMacroRegistry(registry),
		starlark.WithMaxSteps(cfg.MaxSteps),
		starlark.WithLogger(logger),
	)

	policy, err := lg.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := lg.NewEngine(lg.EngineConfig{
		Expressions:     exprs,
		DuplicatePolicy: policy,
		Seed:            cfg.Seed,
		MaxExpansion:    cfg.MaxExpansion,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, exprs, registry, nil
}

// openHistory opens the history database, creating its directory.
func openHistory(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if cfg.StatePath != ":memory:" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	history, err := state.Open(cfg.StatePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return history, nil
}
