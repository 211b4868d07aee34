// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaplg/internal/cli/output"
)

// ProjectTemplates is the template file written by SetupTestProject.
const ProjectTemplates = `> Fixed output so tests can assert on it.
# Greet(name)
- Hello {text.shout(name)}!

# Weather(temp)
- IF: {temp > 25}
    - hot
- ELSE:
    - cold

# Maybe(flag)
- IF: {flag}
    - yes

# Welcome(name, temp)
- [Greet(name)] It is [Weather(temp)].
`

// ProjectMacros is the macro file written by SetupTestProject.
const ProjectMacros = `def shout(s):
    """Upper-case s."""
    return str(s).upper()
`

// SetupTestProject creates a temporary project with a config file, one
// template file and one macro file, and returns its directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	WriteFile(t, filepath.Join(dir, "leaplg.yaml"), "templates_dir: templates\nmacros_dir: macros\nstate_path: .leaplg/history.db\n")
	WriteFile(t, filepath.Join(dir, "templates", "greetings.lg"), ProjectTemplates)
	WriteFile(t, filepath.Join(dir, "macros", "text.star"), ProjectMacros)
	return dir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a test renderer with the given mode and TTY state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
