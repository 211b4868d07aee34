package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leaplg/internal/starlark"
)

// generateBuiltinsDocs writes builtins.md from the predeclared expression
// functions.
func generateBuiltinsDocs(outDir string) error {
	log.Printf("Generating builtins docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Expression Builtins", "Functions available in every expression")
	w.GeneratedMarker()

	w.Header(1, "Expression Builtins")
	w.Paragraph("Expressions in `{...}` and `@{...}` are Starlark. Besides the Starlark universe, every expression can call these functions. Scope variables with the same name are shadowed by them.")

	var rows [][]string
	for _, name := range starlark.BuiltinNames {
		doc, ok := starlark.BuiltinDocs[name]
		if !ok {
			return fmt.Errorf("builtin %s has no documentation", name)
		}
		rows = append(rows, []string{InlineCode(doc.Signature), doc.Description})
	}
	w.Table([]string{"Function", "Description"}, rows)

	w.Header(2, "Macros")
	w.Paragraph("Each `.star` file in the macros directory becomes a namespace named after the file. Run `leaplg macros` to list the functions of a project.")
	w.CodeBlock("lg", `# Greet(name)
- Hello {text.title(name)}, you have {count(messages)} messages.`)

	filename := filepath.Join(outDir, "builtins.md")
	if err := os.WriteFile(filename, w.Bytes(), 0o600); err != nil {
		return err
	}
	log.Printf("  Generated builtins.md")
	return nil
}
