package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// addScopeFlags registers --set on commands that evaluate templates.
func addScopeFlags(cmd *cobra.Command, sets *[]string) {
	cmd.Flags().StringArrayVar(sets, "set", nil, "Set a scope variable (name=value, value parsed as YAML)")
}

// loadScope reads the scope file, if any, and applies name=value
// assignments on top. With neither, the scope is nil.
func loadScope(path string, sets []string) (any, error) {
	var scope any
	if path != "" {
		v, err := readScopeFile(path)
		if err != nil {
			return nil, err
		}
		scope = v
	}
	if len(sets) == 0 {
		return scope, nil
	}

	m, ok := scope.(map[string]any)
	if !ok {
		if scope != nil {
			return nil, fmt.Errorf("--set requires the scope file to hold a mapping")
		}
		m = map[string]any{}
	}
	for _, set := range sets {
		name, value, err := parseAssignment(set)
		if err != nil {
			return nil, err
		}
		m[name] = value
	}
	return m, nil
}

// readScopeFile decodes a JSON or YAML scope file, chosen by extension.
func readScopeFile(path string) (any, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read scope file: %w", err)
	}

	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &v); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported scope file %s (want .json, .yaml or .yml)", path)
	}
	return v, nil
}

// parseAssignment splits name=value and decodes value as a YAML scalar,
// so "n=3" binds an int and "ok=true" a bool.
func parseAssignment(s string) (string, any, error) {
	name, raw, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid --set %q (want name=value)", s)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
		return name, raw, nil //nolint:nilerr // unparsable values are plain strings
	}
	return name, value, nil
}
