package commands

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/macro"
	"github.com/spf13/cobra"
)

const watchDebounce = 150 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-check templates whenever they change",
		Long: `Check templates and macros once, then again every time a .lg or .star
file changes. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd)
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	cc := NewCommandContextWithoutEngine(cmd)
	cfg := cc.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range []string{cfg.TemplatesDir, cfg.MacrosDir} {
		if err := addTree(watcher, dir); err != nil {
			cc.Logger.Debug("not watching directory", slog.String("dir", dir), slog.Any("error", err))
		}
	}

	recheck := func() {
		diags, templates := checkProject(cfg)
		r := cc.Renderer
		r.Println(r.Styles().Muted.Render(time.Now().Format(time.TimeOnly) + " checking"))
		if err := renderDiagnostics(r, diags, templates); err != nil {
			cc.Logger.Error("failed to render diagnostics", slog.Any("error", err))
		}
	}
	recheck()

	// A nil channel blocks until the first relevant change arms the timer.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			fire = nil
			recheck()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addTree(watcher, event.Name)
				}
			}
			if !isSourceChange(event) {
				continue
			}
			cc.Logger.Debug("file changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cc.Logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

func isSourceChange(event fsnotify.Event) bool {
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != lgfile.Ext && ext != macro.Ext {
		return false
	}
	return event.Op != fsnotify.Chmod
}

// addTree watches dir and every non-hidden directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			return nil
		case path != dir && strings.HasPrefix(d.Name(), "."):
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
