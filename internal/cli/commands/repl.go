package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "lg> "
	replContPrompt = "... "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate template text interactively",
		Long: `Start an interactive session. Each line is evaluated as template text
against the loaded templates and the session scope. End a line with \ to
continue it on the next one.

Type :help for session commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, sets)
		},
	}

	addScopeFlags(cmd, &sets)
	return cmd
}

func runREPL(cmd *cobra.Command, sets []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	scope, err := loadScope(cc.Cfg.ScopeFile, sets)
	if err != nil {
		return err
	}
	session, err := newREPLSession(cc.Engine, scope, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	session.templatesDir = cc.Cfg.TemplatesDir

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     replHistoryFile(cc.Cfg.StatePath),
		AutoComplete:    session.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leaplg REPL (%s loaded)\n", pluralize(cc.Engine.Store().Len(), "template"))
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type :help for commands, :quit to exit")

	var pending strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			pending.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if body, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(body)
			pending.WriteString("\n")
			rl.SetPrompt(replContPrompt)
			continue
		}
		pending.WriteString(line)
		input := pending.String()
		pending.Reset()
		rl.SetPrompt(replPrompt)

		if session.handle(input) {
			return nil
		}
		rl.Config.AutoComplete = session.completer()
	}
}

// replHistoryFile keeps line history next to the state database.
func replHistoryFile(statePath string) string {
	if statePath == "" || statePath == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(statePath), "repl_history")
}

// replSession holds the state of one interactive session.
type replSession struct {
	engine       *lg.Engine
	scope        map[string]any
	templatesDir string
	out, errOut  io.Writer
}

func newREPLSession(eng *lg.Engine, scope any, out, errOut io.Writer) (*replSession, error) {
	s := &replSession{engine: eng, scope: map[string]any{}, out: out, errOut: errOut}
	switch v := scope.(type) {
	case nil:
	case map[string]any:
		s.scope = v
	default:
		return nil, fmt.Errorf("the REPL scope must be a mapping, got %T", scope)
	}
	return s, nil
}

// handle runs one input and reports whether the session should end.
func (s *replSession) handle(input string) bool {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "":
		return false
	case strings.HasPrefix(trimmed, ":"):
		return s.command(trimmed)
	}

	res, err := evaluateInline(s.engine, input, s.scope)
	switch {
	case err != nil:
		s.errorf("%v", err)
	case !res.Present:
		_, _ = fmt.Fprintln(s.out, "(no output)")
	default:
		_, _ = fmt.Fprintln(s.out, res.Text)
	}
	return false
}

func (s *replSession) command(line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case ":quit", ":exit", ":q":
		return true
	case ":help":
		_, _ = fmt.Fprint(s.out, replHelp)
	case ":list":
		for _, t := range s.engine.Store().Templates() {
			_, _ = fmt.Fprintf(s.out, "%s%s\n", t.Name, signature(t))
		}
	case ":scope":
		keys := make([]string, 0, len(s.scope))
		for k := range s.scope {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(s.out, "%s = %v\n", k, s.scope[k])
		}
	case ":set":
		k, v, err := parseAssignment(rest)
		if err != nil {
			s.errorf("usage: :set name=value")
			return false
		}
		s.scope[k] = v
	case ":unset":
		delete(s.scope, rest)
	case ":expand":
		outputs, err := s.engine.ExpandTemplate(rest, s.scope)
		if err != nil {
			s.errorf("%v", err)
			return false
		}
		for _, o := range outputs {
			_, _ = fmt.Fprintln(s.out, o)
		}
	case ":analyze":
		res, err := s.engine.AnalyzeTemplate(rest)
		if err != nil {
			s.errorf("%v", err)
			return false
		}
		_, _ = fmt.Fprintf(s.out, "variables:  %s\nreferences: %s\n",
			strings.Join(res.Variables, ", "), strings.Join(res.TemplateReferences, ", "))
	case ":reload":
		s.reload()
	default:
		s.errorf("unknown command %s (type :help for commands)", name)
	}
	return false
}

func (s *replSession) reload() {
	if s.templatesDir == "" {
		s.errorf("no templates directory")
		return
	}
	templates, err := lgfile.LoadDir(s.templatesDir)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	if _, err := s.engine.ReplaceTemplates(templates...); err != nil {
		s.errorf("%v", err)
		return
	}
	_, _ = fmt.Fprintf(s.out, "reloaded %s\n", pluralize(s.engine.Store().Len(), "template"))
}

func (s *replSession) errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.errOut, "Error: "+format+"\n", a...)
}

// completer offers template calls and session commands.
func (s *replSession) completer() *readline.PrefixCompleter {
	names := s.engine.Store().Names()
	refs := make([]readline.PrefixCompleterInterface, 0, len(names))
	plain := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, n := range names {
		refs = append(refs, readline.PcItem("["+n+"("))
		plain = append(plain, readline.PcItem(n))
	}

	items := append(refs,
		readline.PcItem(":help"),
		readline.PcItem(":list"),
		readline.PcItem(":scope"),
		readline.PcItem(":set"),
		readline.PcItem(":unset"),
		readline.PcItem(":expand", plain...),
		readline.PcItem(":analyze", plain...),
		readline.PcItem(":reload"),
		readline.PcItem(":quit"),
	)
	return readline.NewPrefixCompleter(items...)
}

const replHelp = `
Commands:
  :help              Show this help message
  :list              List templates and their parameters
  :scope             Show the session scope
  :set name=value    Bind a scope variable (value parsed as YAML)
  :unset name        Remove a scope variable
  :expand <name>     List every output of a template
  :analyze <name>    Show a template's variables and references
  :reload            Reload templates from disk
  :quit              Exit the REPL

Anything else is evaluated as template text, e.g.
  Hello {name}!
  [Greet("Ada")]

`
