package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func writeMacro(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const textMacros = `
def title(s):
    """Capitalize every word."""
    return " ".join([w.capitalize() for w in s.split(" ")])

def plural(n, word, suffix="s"):
    return word if n == 1 else word + suffix

_helper = "hidden"
`

func TestLoader_Load(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T) string
		namespaces []string
		wantErr    string
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
		},
		{
			name:  "empty directory",
			setup: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name: "not a directory",
			setup: func(t *testing.T) string {
				return writeMacro(t, t.TempDir(), "file", "x = 1")
			},
			wantErr: "not a directory",
		},
		{
			name: "several files in name order",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "text.star", textMacros)
				writeMacro(t, dir, "calc.star", "def double(x):\n    return x * 2\n")
				writeMacro(t, dir, "README.md", "ignored")
				return dir
			},
			namespaces: []string{"calc", "text"},
		},
		{
			name: "syntax error",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "broken.star", "def broken(:\n    return 1\n")
				return dir
			},
			wantErr: "macros/broken.star",
		},
		{
			name: "invalid namespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "1st.star", "x = 1")
				return dir
			},
			wantErr: "must start with letter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modules, err := NewLoader(tt.setup(t)).Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			var got []string
			for _, m := range modules {
				got = append(got, m.Namespace)
			}
			assert.Equal(t, tt.namespaces, got)
		})
	}
}

func TestLoadFile_Exports(t *testing.T) {
	path := writeMacro(t, t.TempDir(), "text.star", textMacros)

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text", m.Namespace)
	assert.Contains(t, m.Exports, "title")
	assert.Contains(t, m.Exports, "plural")
	assert.NotContains(t, m.Exports, "_helper")

	thread := &starlark.Thread{Name: "test"}
	res, err := starlark.Call(thread, m.Exports["title"], starlark.Tuple{starlark.String("hello big world")}, nil)
	require.NoError(t, err)
	assert.Equal(t, starlark.String("Hello Big World"), res)
}

func TestLoadFile_ErrorType(t *testing.T) {
	path := writeMacro(t, t.TempDir(), "broken.star", "def broken(:\n")

	_, err := LoadFile(path)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, path, loadErr.File)
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"text", false},
		{"date_time", false},
		{"_private", false},
		{"utils2", false},
		{"", true},
		{"1abc", true},
		{"date-time", true},
		{"date time", true},
		{"date.time", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := validateNamespace(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "validateNamespace(%q) = %v", tt.input, err)
		})
	}
}
