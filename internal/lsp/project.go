package lsp

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/macro"
)

// project is one analysis of the templates directory, with open documents
// taking the place of their files on disk.
type project struct {
	templates map[string]*lg.Template
	diags     map[string]lg.Diagnostics // by file path
	macros    []*macro.Function
	macroErr  error
	macrosDir string
	broken    map[string]bool // files that failed to parse
}

// analyze parses and checks the project. A file that fails to parse
// contributes the templates it had when it last parsed, taken from
// lastGood, so references into a file being edited keep resolving.
func analyze(opts Options, open []*Document, lastGood map[string][]*lg.Template, logger *slog.Logger) *project {
	p := &project{
		templates: make(map[string]*lg.Template),
		diags:     make(map[string]lg.Diagnostics),
		macrosDir: opts.MacrosDir,
		broken:    make(map[string]bool),
	}

	var all []*lg.Template
	for _, src := range sources(opts.TemplatesDir, open, logger) {
		ts, err := lgfile.Parse(src.content, src.path)
		if err != nil {
			p.diags[src.path] = append(p.diags[src.path], errorDiagnostic(err))
			p.broken[src.path] = true
			ts = lastGood[src.path]
		} else {
			lastGood[src.path] = ts
		}
		all = append(all, ts...)
	}

	store, err := lg.NewStore(all, opts.DuplicatePolicy)
	var skip int
	if err != nil {
		p.report(errorDiagnostic(err), nil)
		// Keep checking the rest of the project. Check leads with the
		// store's duplicate warnings, which the error already covers.
		store, _ = lg.NewStore(all, lg.LastWins)
		skip = len(store.Warnings())
	}
	for _, t := range store.Templates() {
		p.templates[t.Name] = t
	}
	for _, d := range lg.Check(store)[skip:] {
		p.report(d, store)
	}

	p.macros, p.macroErr = macro.DescribeDir(opts.MacrosDir)
	if p.macroErr != nil {
		logger.Warn("failed to describe macros", slog.Any("error", p.macroErr))
	}

	logger.Debug("project analyzed",
		slog.Int("templates", len(p.templates)),
		slog.Int("macros", len(p.macros)))
	return p
}

// report files a diagnostic under the file it belongs to. Diagnostics
// without a position are filed under their template's declaration.
func (p *project) report(d lg.Diagnostic, store *lg.Store) {
	var file string
	switch {
	case d.Range != nil:
		file = d.Range.Start.File
	case d.Template != "" && store != nil:
		if t, ok := store.Lookup(d.Template); ok {
			file = t.Pos.File
		}
	}
	// Findings in stale templates of a broken file would only add noise
	// to its parse error.
	if file != "" && !p.broken[file] {
		p.diags[file] = append(p.diags[file], d)
	}
}

func (p *project) diagnosticsFor(doc *Document) []Diagnostic {
	out := make([]Diagnostic, 0, len(p.diags[doc.Path]))
	for _, d := range p.diags[doc.Path] {
		out = append(out, toProtocolDiagnostic(d))
	}
	return out
}

func (p *project) macro(qualified string) *macro.Function {
	for _, f := range p.macros {
		if f.Namespace+"."+f.Name == qualified {
			return f
		}
	}
	return nil
}

type source struct {
	path    string
	content string
}

// sources returns the content of every template file, preferring open
// documents over disk. Open template files outside the directory are
// included so a new file is checked against the project.
func sources(dir string, open []*Document, logger *slog.Logger) []source {
	byPath := make(map[string]*Document, len(open))
	for _, doc := range open {
		if isTemplateFile(doc.Path) {
			byPath[filepath.Clean(doc.Path)] = doc
		}
	}

	files, err := lgfile.Files(dir)
	if err != nil {
		logger.Warn("failed to list template files", slog.String("dir", dir), slog.Any("error", err))
	}

	var out []source
	for _, path := range files {
		path = filepath.Clean(path)
		if doc, ok := byPath[path]; ok {
			out = append(out, source{path: doc.Path, content: doc.Content})
			delete(byPath, path)
			continue
		}
		content, err := os.ReadFile(path) //nolint:gosec // G304: paths come from the templates directory
		if err != nil {
			logger.Warn("failed to read template file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		out = append(out, source{path: path, content: string(content)})
	}

	rest := make([]string, 0, len(byPath))
	for path := range byPath {
		rest = append(rest, path)
	}
	sort.Strings(rest)
	for _, path := range rest {
		out = append(out, source{path: byPath[path].Path, content: byPath[path].Content})
	}
	return out
}

func errorDiagnostic(err error) lg.Diagnostic {
	d := lg.Diagnostic{Message: err.Error(), Severity: lg.SeverityError}

	var positioned interface{ Position() lg.Position }
	if errors.As(err, &positioned) {
		if pos := positioned.Position(); !pos.IsZero() {
			d.Range = &lg.Range{Start: pos, End: pos}
		}
	}
	var dup *lg.DuplicateTemplateError
	if errors.As(err, &dup) {
		d.Template = dup.Name
	}
	return d
}

// toProtocolDiagnostic converts one-based source positions to the
// protocol's zero-based ones. Point ranges are widened to one character.
func toProtocolDiagnostic(d lg.Diagnostic) Diagnostic {
	out := Diagnostic{Severity: DiagnosticSeverityError, Source: "leaplg", Message: d.Message}
	if d.Severity == lg.SeverityWarning {
		out.Severity = DiagnosticSeverityWarning
	}
	if d.Range != nil {
		out.Range = Range{Start: toProtocolPosition(d.Range.Start), End: toProtocolPosition(d.Range.End)}
		if out.Range.End == out.Range.Start {
			out.Range.End.Character++
		}
	}
	return out
}

func toProtocolPosition(p lg.Position) Position {
	return Position{
		Line:      uint32(max(p.Line-1, 0)),   //nolint:gosec // G115: clamped
		Character: uint32(max(p.Column-1, 0)), //nolint:gosec // G115: clamped
	}
}
