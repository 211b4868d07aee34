package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/cli/config"
)

// ConfigField is one configuration key.
type ConfigField struct {
	Key     string
	Type    string
	Default string
}

// EnvVar returns the environment variable that sets the key.
func (f ConfigField) EnvVar() string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Key, ".", "__"))
}

var configDescriptions = map[string]string{
	"templates_dir":    "Directory searched recursively for .lg files",
	"macros_dir":       "Directory of .star macro files; each file is a namespace",
	"scope_file":       "JSON or YAML file holding the evaluation scope",
	"state_path":       "SQLite database recording evaluation history",
	"seed":             "Seed for variant choice; unset picks a random seed per evaluator",
	"duplicate_policy": "How duplicate template names resolve: error, first or last",
	"max_expansion":    "Maximum outputs produced by expand",
	"max_steps":        "Maximum Starlark execution steps per expression",
	"record":           "Record every evaluation in the history database",
	"strict":           "Make check fail on warnings",
	"verbose":          "Shorthand for log_level: debug",
	"log_level":        "debug, info, warn or error",
	"output":           "auto, text, markdown or json",
	"server.addr":      "Address serve listens on",
	"server.watch":     "Reload templates when files change while serving",
}

// configFields lists every key of config.Config with its default value.
func configFields() []ConfigField {
	return structFields("", reflect.ValueOf(*config.Default()))
}

func structFields(prefix string, v reflect.Value) []ConfigField {
	var fields []ConfigField
	t := v.Type()
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			fields = append(fields, structFields(key+".", fv)...)
			continue
		}
		fields = append(fields, ConfigField{Key: key, Type: typeName(fv.Type()), Default: defaultString(fv)})
	}
	return fields
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind().String()
}

func defaultString(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.IsZero() && v.Kind() == reflect.String {
		return ""
	}
	return fmt.Sprint(v.Interface())
}

// generateConfigDocs writes configuration.md.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "leaplg configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("leaplg reads `leaplg.yaml` (or `leaplg.yml`) from the working directory or the nearest parent holding one. Relative paths are resolved against the directory of that file. `${VAR}` references in string values are expanded from the environment.")

	headers := []string{"Key", "Type", "Default", "Environment", "Description"}
	var rows [][]string
	for _, f := range configFields() {
		def := "-"
		if f.Default != "" {
			def = InlineCode(f.Default)
		}
		rows = append(rows, []string{InlineCode(f.Key), f.Type, def, InlineCode(f.EnvVar()), configDescriptions[f.Key]})
	}
	w.Table(headers, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `templates_dir: templates
macros_dir: macros
seed: 42
duplicate_policy: last
record: true
server:
  addr: 127.0.0.1:9000
  watch: true`)

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0o600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
