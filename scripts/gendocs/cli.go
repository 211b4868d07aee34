package main

import (
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/cli"
	"github.com/leapstack-labs/leaplg/internal/cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandGroup collects commands under one heading of the CLI index.
type commandGroup struct {
	title    string
	commands []string
}

var commandGroups = []commandGroup{
	{"Evaluating templates", []string{"eval", "expand", "inline", "repl"}},
	{"Inspecting a project", []string{"check", "list", "analyze", "graph", "macros", "history"}},
	{"Serving and editing", []string{"serve", "watch", "lsp"}},
	{"Project", []string{"init", "version"}},
}

// scopeFlags are the flags that feed the evaluation scope. Commands that
// accept them get a dedicated section instead of listing them with the
// other options.
var scopeFlags = []string{"scope", "set"}

// jsonShapes documents what each command prints with -o json.
var jsonShapes = map[string]string{
	"eval": `[
  {"template": "Greet", "output": "Hello Ada!", "present": true},
  {"template": "Weather", "output": null, "present": false},
  {"template": "Broken", "output": null, "present": false, "error": "no such template: Nope"}
]`,
	"inline": `[
  {"template": "__temp__", "output": "Dear Hello Ada!", "present": true}
]`,
	"expand": `{"template": "Weather", "outputs": ["It is hot today.", "Bundle up, it is cold."]}`,
	"analyze": `{"template": "Welcome", "variables": ["name", "temp"], "templateReferences": ["Greet", "Weather"]}`,
	"check": `{
  "templates": 4,
  "diagnostics": [
    {"severity": "error", "message": "no such template: Nope (referenced from A)", "template": "A", "file": "templates/a.lg", "line": 3, "column": 5}
  ]
}`,
	"graph": `{
  "templates": 4,
  "calls": 2,
  "levels": [["Greet", "Mild", "Weather"], ["Welcome"]],
  "cycles": [],
  "roots": ["Welcome"]
}`,
}

// evaluationNotes are added to the pages of commands that print results.
var evaluationNotes = map[string]string{
	"eval": "A conditional template whose conditions all fail and which has no ELSE branch produces no output. " +
		"Text mode prints `(no output)`; JSON mode sets `present` to false and `output` to null. " +
		"An empty string is a present output.",
	"inline": "Inline text is evaluated as a template named `__temp__`, so it shows up under that name in the history.",
	"expand": "Every variant and every conditional branch is taken; conditions are not evaluated. " +
		"Results are listed once each unless `--duplicates` is given, and the total is bounded by `max_expansion`.",
}

// generateCLIDocs writes the CLI index and one page per command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	commands := documented(root)

	if err := writePage(outDir, "index.md", cliIndex(root, commands)); err != nil {
		return err
	}
	for _, cmd := range commands {
		if err := writePage(outDir, cmd.Name()+".md", commandPage(cmd)); err != nil {
			return err
		}
	}
	log.Printf("  Generated %d command pages", len(commands))
	return nil
}

func writePage(dir, name string, w *MarkdownWriter) error {
	if err := os.WriteFile(filepath.Join(dir, name), w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// documented returns the user-facing subcommands of root keyed by name.
func documented(root *cobra.Command) map[string]*cobra.Command {
	out := make(map[string]*cobra.Command)
	for _, cmd := range root.Commands() {
		if cmd.Hidden || !cmd.IsAvailableCommand() || cmd.Name() == "help" || cmd.Name() == "completion" {
			continue
		}
		out[cmd.Name()] = cmd
	}
	return out
}

func cliIndex(root *cobra.Command, commands map[string]*cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for leaplg")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(strings.TrimSpace(root.Long))
	w.CodeBlock("bash", "go install github.com/leapstack-labs/leaplg/cmd/leaplg@latest")

	seen := make(map[string]bool)
	for _, g := range commandGroups {
		var rows [][]string
		for _, name := range g.commands {
			if cmd, ok := commands[name]; ok {
				rows = append(rows, commandRow(cmd))
				seen[name] = true
			}
		}
		if len(rows) > 0 {
			w.Header(2, g.title)
			w.Table([]string{"Command", "Description"}, rows)
		}
	}
	var rest [][]string
	for _, name := range slices.Sorted(maps.Keys(commands)) {
		if !seen[name] {
			rest = append(rest, commandRow(commands[name]))
		}
	}
	if len(rest) > 0 {
		w.Header(2, "Other commands")
		w.Table([]string{"Command", "Description"}, rest)
	}

	w.Header(2, "Scope")
	w.Paragraph("Commands that evaluate templates read their scope from " + InlineCode("--scope") +
		" (a JSON or YAML file chosen by extension) and apply every " + InlineCode("--set name=value") +
		" on top. Values given to " + InlineCode("--set") + " are decoded as YAML scalars:")
	w.Table([]string{"Flag", "Binds"}, [][]string{
		{InlineCode("--set n=3"), "the integer 3"},
		{InlineCode("--set ok=true"), "the boolean true"},
		{InlineCode("--set name=Ada"), "the string \"Ada\""},
		{InlineCode("--set tags=[a, b]"), "a list of two strings"},
	})
	w.Paragraph("With " + InlineCode("--set") + " the scope file must hold a mapping. With neither flag the scope is empty.")

	w.Header(2, "Output modes")
	w.Paragraph("Every command honours " + InlineCode("-o") + " / " + InlineCode("--output") + ":")
	w.Table([]string{"Mode", "Output"}, outputModeRows())

	w.Header(2, "Global options")
	w.Table(flagHeaders, flagRows(root.PersistentFlags(), nil))

	w.Header(2, "Environment")
	w.Paragraph(fmt.Sprintf("Configuration keys can also be set with %s variables; nested keys use a double underscore. "+
		"Flags override the environment, which overrides %s.", InlineCode(config.EnvPrefix+"*"), InlineCode("leaplg.yaml")))
	var envRows [][]string
	for _, f := range configFields() {
		envRows = append(envRows, []string{InlineCode(f.EnvVar()), InlineCode(f.Key)})
	}
	w.Table([]string{"Variable", "Key"}, envRows)
	return w
}

func commandRow(cmd *cobra.Command) []string {
	return []string{fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name()), cleanDescription(cmd.Short)}
}

func outputModeRows() [][]string {
	notes := map[string]string{
		"auto":     "text on a terminal, markdown when piped",
		"text":     "styled text for reading",
		"markdown": "headings and tables",
		"json":     "one JSON document on stdout",
	}
	var rows [][]string
	for _, mode := range config.OutputFormats {
		rows = append(rows, []string{InlineCode(mode), notes[mode]})
	}
	return rows
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	name := cmd.Name()
	w := NewMarkdownWriter()
	w.Frontmatter(name, cmd.Short)
	w.GeneratedMarker()

	w.Header(1, "leaplg "+name)
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}
	w.CodeBlock("bash", "leaplg "+strings.TrimPrefix(cmd.UseLine(), cmd.Root().Name()+" "))

	if note, ok := evaluationNotes[name]; ok {
		w.Paragraph(note)
	}

	local := cmd.LocalNonPersistentFlags()
	if takesScope(local) {
		w.Header(2, "Scope")
		w.Paragraph("The scope comes from " + InlineCode("--scope") + " with " + InlineCode("--set") +
			" assignments applied on top. See [Scope](/cli/#scope).")
	}
	if rows := flagRows(local, scopeFlags); len(rows) > 0 {
		w.Header(2, "Options")
		w.Table(flagHeaders, rows)
	}

	if shape, ok := jsonShapes[name]; ok {
		w.Header(2, "JSON output")
		w.Paragraph("With " + InlineCode("-o json") + " the command prints:")
		w.CodeBlock("json", shape)
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	w.Paragraph("Global options are listed in the [CLI reference](/cli/#global-options).")
	return w
}

func takesScope(flags *pflag.FlagSet) bool {
	return flags.Lookup("set") != nil
}

var flagHeaders = []string{"Flag", "Type", "Default", "Description"}

// flagRows lists the visible flags of fs except those named in skip.
func flagRows(fs *pflag.FlagSet, skip []string) [][]string {
	var rows [][]string
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || slices.Contains(skip, f.Name) {
			return
		}
		flag := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			flag = InlineCode("-"+f.Shorthand) + ", " + flag
		}
		rows = append(rows, []string{flag, f.Value.Type(), flagDefault(f), cleanDescription(f.Usage)})
	})
	return rows
}

func flagDefault(f *pflag.Flag) string {
	switch f.DefValue {
	case "", "[]", "0":
		return ""
	}
	if f.Name == "parallel" {
		return "number of CPUs"
	}
	return InlineCode(f.DefValue)
}

// dedent strips the indentation cobra examples carry.
func dedent(example string) string {
	lines := strings.Split(strings.Trim(example, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, "  ")
	}
	return strings.Join(lines, "\n")
}
