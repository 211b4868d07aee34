// Package macro loads Starlark helper functions that template expressions
// can call. Each .star file becomes a namespace named after the file, so
// text.star defining title(s) is called as text.title(s).
package macro

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Ext is the file extension of macro files.
const Ext = ".star"

// Loader executes the .star files of one directory.
type Loader struct {
	dir string
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadedModule is an executed macro file.
type LoadedModule struct {
	Namespace string              // file name without extension
	Path      string              // path of the .star file
	Exports   starlark.StringDict // globals whose names do not start with "_"
}

// Load executes every .star file in the directory, in name order.
// A missing directory yields no modules and no error.
func (l *Loader) Load() ([]*LoadedModule, error) {
	info, err := os.Stat(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access macros directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("macros path is not a directory: %s", l.dir)
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}
	sort.Strings(files)

	modules := make([]*LoadedModule, 0, len(files))
	for _, file := range files {
		m, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// LoadFile executes a single macro file.
func LoadFile(path string) (*LoadedModule, error) {
	namespace := strings.TrimSuffix(filepath.Base(path), Ext)
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the macros directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	thread := &starlark.Thread{
		Name:  "load:" + namespace,
		Print: func(_ *starlark.Thread, _ string) {},
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, content, nil)
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("starlark execution error: %v", err)}
	}

	exports := make(starlark.StringDict, len(globals))
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}
	return &LoadedModule{Namespace: namespace, Path: path, Exports: exports}, nil
}

// validateNamespace checks that name can be used as a Starlark identifier.
func validateNamespace(name string) error {
	if name == "" {
		return errors.New("namespace cannot be empty")
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		case i == 0 && r >= '0' && r <= '9':
			return fmt.Errorf("namespace must start with letter or underscore: %s", name)
		default:
			return fmt.Errorf("namespace contains invalid character: %s", name)
		}
	}
	return nil
}

// LoadError represents an error loading a macro file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", filepath.Base(e.File), e.Message)
}
