package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leaplg/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve template evaluation over HTTP",
		Long: `Start an HTTP server exposing the loaded templates.

Endpoints:
  GET  /healthz
  GET  /templates
  POST /templates/{name}/evaluate   body: scope as JSON
  POST /templates/{name}/expand     body: scope as JSON
  GET  /templates/{name}/analyze
  POST /evaluate                    body: {"text": ..., "scope": ...}
  GET  /diagnostics
  GET  /history, /history/{id}      when recording
  GET  /events                      server-sent reload events

With --watch, template files are reloaded when they change. A reload that
fails to check keeps the templates already loaded.`,
		Example: `  leaplg serve
  leaplg serve --addr 127.0.0.1:9000 --watch --record`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Both flags are read back through the config loader as server.addr
	// and server.watch.
	cmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	cmd.Flags().Bool("watch", false, "Reload templates when files change")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(server.Config{
		Engine:       cc.Engine,
		History:      cc.History,
		Addr:         cc.Cfg.Server.Addr,
		Watch:        cc.Cfg.Server.Watch,
		TemplatesDir: cc.Cfg.TemplatesDir,
		Logger:       cc.Logger,
	})

	cc.Renderer.Warnf("Serving %s on %s", pluralize(cc.Engine.Store().Len(), "template"), cc.Cfg.Server.Addr)
	cc.Logger.Debug("serve configured",
		slog.String("addr", cc.Cfg.Server.Addr),
		slog.Bool("watch", cc.Cfg.Server.Watch),
		slog.Bool("record", cc.History != nil))

	return srv.Serve(ctx)
}
