package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/lg"
)

// OutputFormats lists the accepted values of the output option.
var OutputFormats = []string{"auto", "text", "markdown", "json"}

// LogLevels lists the accepted values of the log_level option.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TemplatesDir == "" {
		return fmt.Errorf("templates_dir is required")
	}
	if _, err := lg.ParseDuplicatePolicy(c.DuplicatePolicy); err != nil {
		return err
	}
	if c.OutputFormat != "" && !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if c.LogLevel != "" && !slices.Contains(LogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level %q (want one of %s)", c.LogLevel, strings.Join(LogLevels, ", "))
	}
	if c.MaxExpansion < 0 {
		return fmt.Errorf("max_expansion must not be negative")
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
// Only commands that read templates call it, so help works anywhere.
func (c *Config) ValidateDirectories() error {
	info, err := os.Stat(c.TemplatesDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("templates directory does not exist: %s\nHint: Create the directory or use --templates-dir to specify a different path", c.TemplatesDir)
	}
	if err != nil {
		return fmt.Errorf("failed to access templates directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("templates path is not a directory: %s", c.TemplatesDir)
	}
	return nil
}
