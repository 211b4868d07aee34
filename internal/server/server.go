// Package server exposes a template engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leaplg/internal/callgraph"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/state"
	"golang.org/x/sync/errgroup"
)

// reloadDebounce is how long the watcher waits for further changes
// before reloading.
const reloadDebounce = 100 * time.Millisecond

// Config holds configuration for the server.
type Config struct {
	Engine       *lg.Engine
	History      state.HistoryStore // nil disables recording
	Addr         string
	Watch        bool
	TemplatesDir string
	Logger       *slog.Logger
}

// Server serves template evaluation over HTTP.
type Server struct {
	engine       *lg.Engine
	history      state.HistoryStore
	addr         string
	watch        bool
	templatesDir string
	logger       *slog.Logger
	notifier     *Notifier

	reloadMu sync.Mutex
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		engine:       cfg.Engine,
		history:      cfg.History,
		addr:         addr,
		watch:        cfg.Watch,
		templatesDir: cfg.TemplatesDir,
		logger:       logger,
		notifier:     NewNotifier(),
	}
}

// Notifier returns the server's reload notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/diagnostics", s.handleDiagnostics)
	r.Get("/events", s.handleEvents)
	r.Post("/evaluate", s.handleInline)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Route("/{name}", func(r chi.Router) {
			r.Post("/evaluate", s.handleEvaluate)
			r.Post("/expand", s.handleExpand)
			r.Get("/analyze", s.handleAnalyze)
		})
	})

	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.handleListHistory)
		r.Get("/{id}", s.handleGetHistory)
	})

	return r
}

// requestLogger logs one line per request through the server's logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting server", slog.String("addr", s.addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.templatesDir != "" {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Reload re-reads the templates directory and swaps the engine's store.
// On any error the previous templates stay in place.
func (s *Server) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ev := ReloadEvent{At: time.Now().UTC()}
	before := s.engine.Store()
	err := s.reload()
	if err != nil {
		ev.Error = err.Error()
		s.logger.Error("reload failed", slog.Any("error", err))
	} else {
		ev.Added, ev.Removed, ev.Affected = diffStores(before, s.engine.Store())
	}
	ev.Templates = s.engine.Store().Len()
	s.notifier.Broadcast(ev)
	return err
}

// diffStores reports the names added and removed between two stores, and
// the templates of after whose output may change because of it: those
// that reach an added template, or used to reach a removed one.
func diffStores(before, after *lg.Store) (added, removed, affected []string) {
	for _, name := range after.Names() {
		if !before.Has(name) {
			added = append(added, name)
		}
	}
	for _, name := range before.Names() {
		if !after.Has(name) {
			removed = append(removed, name)
		}
	}

	seen := make(map[string]bool)
	for _, name := range callgraph.Build(after).Affected(added) {
		seen[name] = true
	}
	for _, name := range callgraph.Build(before).Affected(removed) {
		if after.Has(name) {
			seen[name] = true
		}
	}
	for name := range seen {
		affected = append(affected, name)
	}
	sort.Strings(affected)
	return added, removed, affected
}

func (s *Server) reload() error {
	if s.templatesDir == "" {
		return fmt.Errorf("no templates directory configured")
	}
	templates, err := lgfile.LoadDir(s.templatesDir)
	if err != nil {
		return err
	}
	diags, err := s.engine.ReplaceTemplates(templates...)
	if err != nil {
		return err
	}
	s.logger.Info("templates reloaded",
		slog.Int("templates", len(templates)),
		slog.Int("warnings", len(diags.Warnings())))
	return nil
}

// watchFiles reloads templates when .lg files in the templates directory
// change.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, s.templatesDir); err != nil {
		s.logger.Error("failed to watch templates directory", slog.Any("error", err))
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watchDirRecursive(watcher, event.Name)
				}
			}
			if !isTemplateChange(event) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.logger.Debug("file changed, reloading", slog.String("file", name))
				_ = s.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

func isTemplateChange(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), lgfile.Ext) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
