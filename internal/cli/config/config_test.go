package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("templates-dir", "", "")
	flags.String("macros-dir", "", "")
	flags.String("scope", "", "")
	flags.String("state", "", "")
	flags.Uint64("seed", 0, "")
	flags.String("duplicate-policy", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.StringP("output", "o", "", "")
	flags.String("addr", "", "")
	flags.Bool("watch", false, "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	root, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultTemplatesDir), cfg.TemplatesDir)
	assert.Equal(t, filepath.Join(root, DefaultMacrosDir), cfg.MacrosDir)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultDuplicatePolicy, cfg.DuplicatePolicy)
	assert.Equal(t, DefaultMaxExpansion, cfg.MaxExpansion)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Nil(t, cfg.Seed)
	assert.Empty(t, cfg.ScopeFile)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaplg.yaml"), []byte(`
templates_dir: lg
macros_dir: star
duplicate_policy: first
seed: 7
output: json
server:
  addr: ":9000"
  watch: true
`), 0o600))

	t.Run("file", func(t *testing.T) {
		cfg, err := LoadConfig("", nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cfg.ProjectRoot, "leaplg.yaml"), GetConfigFileUsed())
		assert.Equal(t, filepath.Join(cfg.ProjectRoot, "lg"), cfg.TemplatesDir)
		assert.Equal(t, "first", cfg.DuplicatePolicy)
		require.NotNil(t, cfg.Seed)
		assert.Equal(t, uint64(7), *cfg.Seed)
		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.True(t, cfg.Server.Watch)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("LEAPLG_DUPLICATE_POLICY", "last")
		t.Setenv("LEAPLG_SERVER__ADDR", ":9100")
		cfg, err := LoadConfig("", nil)
		require.NoError(t, err)
		assert.Equal(t, "last", cfg.DuplicatePolicy)
		assert.Equal(t, ":9100", cfg.Server.Addr)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("LEAPLG_DUPLICATE_POLICY", "last")
		flags := newFlags()
		require.NoError(t, flags.Parse([]string{
			"--duplicate-policy", "error",
			"--templates-dir", "other",
			"--state", ":memory:",
			"--addr", ":9200",
			"--seed", "3",
		}))

		cfg, err := LoadConfig("", flags)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.DuplicatePolicy)
		abs, _ := filepath.Abs("other")
		assert.Equal(t, abs, cfg.TemplatesDir)
		assert.Equal(t, ":memory:", cfg.StatePath)
		assert.Equal(t, ":9200", cfg.Server.Addr)
		require.NotNil(t, cfg.Seed)
		assert.Equal(t, uint64(3), *cfg.Seed)
		// Unset flags keep lower layers.
		assert.Equal(t, "json", cfg.OutputFormat)
	})
}

func TestLoadConfig_ExplicitFileSetsProjectRoot(t *testing.T) {
	project := t.TempDir()
	t.Chdir(t.TempDir())
	ResetConfig()

	path := filepath.Join(project, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates_dir: tpl\n"), 0o600))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, project, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(project, "tpl"), cfg.TemplatesDir)
}

func TestLoadConfig_FindsConfigUpward(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "leaplg.yml"), []byte("macros_dir: m\n"), 0o600))
	sub := filepath.Join(project, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "m"), cfg.MacrosDir)
	assert.Equal(t, filepath.Base(project), filepath.Base(cfg.ProjectRoot))
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()
	t.Setenv("LG_HOME", "/srv/lg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaplg.yaml"), []byte("templates_dir: ${LG_HOME}/templates\n"), 0o600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/lg/templates", cfg.TemplatesDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaplg.yaml"), []byte("duplicate_policy: random\n"), 0o600))
	_, err = LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown duplicate policy")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"no templates dir", func(c *Config) { c.TemplatesDir = "" }, "templates_dir is required"},
		{"bad output", func(c *Config) { c.OutputFormat = "yaml" }, "invalid output format"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"negative expansion", func(c *Config) { c.MaxExpansion = -1 }, "max_expansion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()

	cfg.TemplatesDir = filepath.Join(dir, "missing")
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	cfg.TemplatesDir = file
	assert.ErrorContains(t, cfg.ValidateDirectories(), "not a directory")

	cfg.TemplatesDir = dir
	assert.NoError(t, cfg.ValidateDirectories())
}

func TestLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	var buf bytes.Buffer
	cfg := Default()
	logger := NewLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))

	buf.Reset()
	cfg.LogLevel = "debug"
	NewLogger(&buf, cfg).Debug("details")
	assert.Contains(t, buf.String(), "details")
}
