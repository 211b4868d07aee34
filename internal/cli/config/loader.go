package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read as configuration.
const EnvPrefix = "LEAPLG_"

// configFileNames are searched, in order, when no config file is given.
var configFileNames = []string{"leaplg.yaml", "leaplg.yml"}

// flagKeys maps flag names to config keys where the two differ.
var flagKeys = map[string]string{
	"state": "state_path",
	"scope": "scope_file",
	"addr":  "server.addr",
	"watch": "server.watch",
}

// loggerKey is used to store the logger in a context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findProjectRootUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if configIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// configIn returns the config file in dir, or "".
func configIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// inferProjectRoot picks the directory relative paths are resolved against:
// the directory of an explicit config file, else the nearest ancestor of
// the working directory holding a config file, else the working directory.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the config file,
// environment variables and flags, in increasing order of precedence.
// Paths given as flags are relative to the working directory; all other
// relative paths are relative to the project root.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	projectRoot := inferProjectRoot(cfgFile)

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"templates_dir":    DefaultTemplatesDir,
		"macros_dir":       DefaultMacrosDir,
		"state_path":       DefaultStateFile,
		"duplicate_policy": DefaultDuplicatePolicy,
		"max_expansion":    DefaultMaxExpansion,
		"max_steps":        DefaultMaxSteps,
		"record":           false,
		"strict":           false,
		"verbose":          false,
		"log_level":        DefaultLogLevel,
		"output":           DefaultOutput,
		"server.addr":      DefaultServerAddr,
		"server.watch":     false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = configIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: LEAPLG_TEMPLATES_DIR -> templates_dir,
	// LEAPLG_SERVER__ADDR -> server.addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	flagPaths := map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[f.Name]; ok {
				key = mapped
			}
			if isPathKey(key) {
				if abs, err := filepath.Abs(f.Value.String()); err == nil && f.Value.String() != ":memory:" {
					flagPaths[key] = abs
				}
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// 6. Expand ${VAR} and resolve relative paths
	for key, p := range map[string]*string{
		"templates_dir": &cfg.TemplatesDir,
		"macros_dir":    &cfg.MacrosDir,
		"scope_file":    &cfg.ScopeFile,
		"state_path":    &cfg.StatePath,
	} {
		if abs, ok := flagPaths[key]; ok {
			*p = abs
			continue
		}
		*p = resolvePathRelativeTo(expandEnvVars(*p), projectRoot)
	}
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

func isPathKey(key string) bool {
	switch key {
	case "templates_dir", "macros_dir", "scope_file", "state_path":
		return true
	}
	return false
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig call.
func GetCurrentConfig() *Config {
	return currentConfig
}

// Default returns a configuration holding only default values.
func Default() *Config {
	return &Config{
		TemplatesDir:    DefaultTemplatesDir,
		MacrosDir:       DefaultMacrosDir,
		StatePath:       DefaultStateFile,
		DuplicatePolicy: DefaultDuplicatePolicy,
		MaxExpansion:    DefaultMaxExpansion,
		MaxSteps:        DefaultMaxSteps,
		LogLevel:        DefaultLogLevel,
		OutputFormat:    DefaultOutput,
		Server:          ServerConfig{Addr: DefaultServerAddr},
	}
}

// NewLogger creates a text logger writing to w at the configured level.
func NewLogger(w io.Writer, cfg *Config) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}
