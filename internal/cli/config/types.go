// Package config provides configuration management for the leaplg CLI.
//
// Configuration is layered, lowest to highest priority: built-in defaults,
// leaplg.yaml, LEAPLG_* environment variables, and command-line flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	TemplatesDir    string       `koanf:"templates_dir"`
	MacrosDir       string       `koanf:"macros_dir"`
	ScopeFile       string       `koanf:"scope_file"`
	StatePath       string       `koanf:"state_path"`
	Seed            *uint64      `koanf:"seed"`
	DuplicatePolicy string       `koanf:"duplicate_policy"`
	MaxExpansion    int          `koanf:"max_expansion"`
	MaxSteps        uint64       `koanf:"max_steps"`
	Record          bool         `koanf:"record"`
	Strict          bool         `koanf:"strict"`
	Verbose         bool         `koanf:"verbose"`
	LogLevel        string       `koanf:"log_level"`
	OutputFormat    string       `koanf:"output"`
	Server          ServerConfig `koanf:"server"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr  string `koanf:"addr"`
	Watch bool   `koanf:"watch"`
}

// Default configuration values.
const (
	DefaultTemplatesDir    = "templates"
	DefaultMacrosDir       = "macros"
	DefaultStateFile       = ".leaplg/history.db"
	DefaultDuplicatePolicy = "error"
	DefaultMaxExpansion    = 10000
	DefaultMaxSteps        = 1_000_000
	DefaultLogLevel        = "warn"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultServerAddr      = ":8080"
)
