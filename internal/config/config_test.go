package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the real user config dir and working directory out of a test.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)
	t.Setenv(EnvConfigPath, "")
	t.Setenv("DEVIN_API_KEY", "")
	t.Setenv("ADO_URL", "")
	t.Chdir(tmpDir)
	return tmpDir
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.devin.ai/v1", cfg.API.BaseURL)
	assert.Equal(t, 2, cfg.API.HTTPRetries)
	assert.Equal(t, 10*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 90*time.Second, cfg.Polling.FirstInterval)
	assert.Equal(t, 9999, cfg.Polling.MaxPolls)
	assert.Zero(t, cfg.Polling.Timeout)
	assert.Equal(t, "dev.azure.com", cfg.Repo.KnownHost)
	assert.Equal(t, "http://localhost:3001/v1", cfg.Mock.URL)
	assert.True(t, cfg.Output.Verbose)
	assert.True(t, cfg.Output.Markdown.Enabled)
	assert.Equal(t, "dark", cfg.Output.Markdown.Style)
	assert.NoError(t, cfg.Validate())
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.v)
}

func loadFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

func TestLoader_Load_DefaultsWithNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Empty(t, cfg.API.Key)
	assert.Empty(t, cfg.API.KnowledgeIDs)
	assert.Equal(t, want.API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, want.API.RequestTimeout, cfg.API.RequestTimeout)
	assert.Equal(t, want.Polling, cfg.Polling)
	assert.Equal(t, want.Repo, cfg.Repo)
	assert.Equal(t, want.Mock, cfg.Mock)
	assert.Equal(t, want.Output, cfg.Output)
	assert.Equal(t, want.Log, cfg.Log)
}

func TestLoader_SetConfigFile(t *testing.T) {
	tmpDir := isolate(t)
	path := writeConfig(t, tmpDir, "custom.yaml", `
api:
  key: apk_file_key
  knowledge_ids: [k1, k2]
polling:
  interval: 5s
  first_interval: 1m
  max_polls: 12
  timeout: 10m
repo:
  base_url: https://dev.azure.com/acme/Proj/_git
output:
  markdown:
    style: light
`)

	cfg, err := loadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "apk_file_key", cfg.API.Key)
	assert.Equal(t, []string{"k1", "k2"}, cfg.API.KnowledgeIDs)
	assert.Equal(t, 5*time.Second, cfg.Polling.Interval)
	assert.Equal(t, time.Minute, cfg.Polling.FirstInterval)
	assert.Equal(t, 12, cfg.Polling.MaxPolls)
	assert.Equal(t, 10*time.Minute, cfg.Polling.Timeout)
	assert.Equal(t, "https://dev.azure.com/acme/Proj/_git", cfg.Repo.BaseURL)
	assert.Equal(t, "light", cfg.Output.Markdown.Style)
	assert.Equal(t, 100, cfg.Output.Markdown.WordWrap, "unset keys keep defaults")
}

func TestLoader_SetConfigFile_NonExistent(t *testing.T) {
	isolate(t)

	_, err := loadFile("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoader_SetConfigFile_InvalidStructure(t *testing.T) {
	tmpDir := isolate(t)
	path := writeConfig(t, tmpDir, "invalid.yaml", `
polling:
  - this is a list
  - not a map
`)

	_, err := loadFile(path)
	assert.Error(t, err)
}

func TestLoader_SetConfigFile_JSON(t *testing.T) {
	tmpDir := isolate(t)
	path := writeConfig(t, tmpDir, "config.json", `{"mock": {"enabled": true, "url": "http://127.0.0.1:9999/v1"}}`)

	cfg, err := loadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Mock.Enabled)
	assert.Equal(t, "http://127.0.0.1:9999/v1", cfg.Mock.URL)
}

func TestLoader_Load_LegacyEnvNames(t *testing.T) {
	isolate(t)
	t.Setenv("DEVIN_API_KEY", "apk_from_env")
	t.Setenv("ADO_URL", "https://dev.azure.com/env/_git")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "apk_from_env", cfg.API.Key)
	assert.Equal(t, "https://dev.azure.com/env/_git", cfg.Repo.BaseURL)
}

func TestLoader_Load_PrefixedEnvWinsOverLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("DEVIN_API_KEY", "apk_legacy")
	t.Setenv("DEVINFLOW_API_KEY", "apk_prefixed")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "apk_prefixed", cfg.API.Key)
}

func TestLoader_Load_NestedEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("DEVINFLOW_POLLING_MAX_POLLS", "42")
	t.Setenv("DEVINFLOW_POLLING_INTERVAL", "250ms")
	t.Setenv("DEVINFLOW_MOCK_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Polling.MaxPolls)
	assert.Equal(t, 250*time.Millisecond, cfg.Polling.Interval)
	assert.True(t, cfg.Mock.Enabled)
}

func TestLoader_Load_WithConfigPathEnv(t *testing.T) {
	tmpDir := isolate(t)
	path := writeConfig(t, tmpDir, "from-env.yaml", "repo:\n  known_host: git.acme.io\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "git.acme.io", cfg.Repo.KnownHost)
}

func TestLoader_Load_EnvOverridesTakePrecedence(t *testing.T) {
	tmpDir := isolate(t)
	path := writeConfig(t, tmpDir, "config.yaml", "log:\n  level: debug\n")
	t.Setenv(EnvConfigPath, path)
	t.Setenv("DEVINFLOW_LOG_LEVEL", "error")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoader_Load_LocalFile(t *testing.T) {
	tmpDir := isolate(t)
	writeConfig(t, tmpDir, localFileName, "polling:\n  stop_on_failure: true\n")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.True(t, cfg.Polling.StopOnFailure)
}

func TestLoader_Load_UserConfigDir(t *testing.T) {
	isolate(t)
	path, err := DefaultConfigPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("mock:\n  addr: \":4000\"\n"), 0o644))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Mock.Addr)
}

func TestConfigDir(t *testing.T) {
	configDir, err := ConfigDir()
	require.NoError(t, err)
	assert.Contains(t, configDir, "devinflow")
}

func TestDefaultConfigPath(t *testing.T) {
	configPath, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Contains(t, configPath, "devinflow")
	assert.Equal(t, "config.yaml", filepath.Base(configPath))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero max polls", mutate: func(c *Config) { c.Polling.MaxPolls = 0 }, wantErr: "polling.max_polls"},
		{name: "negative interval", mutate: func(c *Config) { c.Polling.Interval = -time.Second }, wantErr: "polling.interval"},
		{name: "negative first interval", mutate: func(c *Config) { c.Polling.FirstInterval = -time.Second }, wantErr: "polling.first_interval"},
		{name: "negative timeout", mutate: func(c *Config) { c.Polling.Timeout = -time.Second }, wantErr: "polling.timeout"},
		{name: "negative retries", mutate: func(c *Config) { c.API.HTTPRetries = -1 }, wantErr: "api.http_retries"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "bad redact pattern", mutate: func(c *Config) { c.Log.RedactPatterns = []string{"(unclosed"} }, wantErr: "log.redact_patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_JoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Polling.MaxPolls = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polling.max_polls")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoader_BindFlag(t *testing.T) {
	isolate(t)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.Duration("interval", 0, "")

	loader := NewLoader()
	require.NoError(t, loader.BindFlag("log.level", flags.Lookup("log-level")))
	require.NoError(t, loader.BindFlag("polling.interval", flags.Lookup("interval")))
	require.NoError(t, flags.Parse([]string{"--log-level", "debug"}))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultConfig().Polling.Interval, cfg.Polling.Interval, "unset flags keep the default")

	assert.Error(t, loader.BindFlag("log.format", flags.Lookup("missing")))
}
