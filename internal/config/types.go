// Package config provides configuration loading and management for devinflow.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The package provides defaults that work out of the box in
// mock mode; live runs need an API key and a repo base URL.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [APIConfig] contains session API credentials and transport settings
//   - [PollingConfig] bounds how long each step waits for its session
//
// Configuration priority (highest to lowest):
//  1. Command-line flags bound through [Loader.BindFlag]
//  2. Environment variables (DEVINFLOW_ prefix, plus DEVIN_API_KEY and ADO_URL)
//  3. Config file given by --config or DEVINFLOW_CONFIG_PATH
//  4. User config directory (platform-standard):
//     - Linux: ~/.config/devinflow/config.yaml
//     - macOS: ~/Library/Application Support/devinflow/config.yaml
//     - Windows: %APPDATA%\devinflow\config.yaml
//  5. ./devinflow.yaml
//  6. [DefaultConfig] defaults
package config

import "time"

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get the defaults.
type Config struct {
	// API contains session API credentials and transport settings.
	API APIConfig `mapstructure:"api"`

	// Polling bounds the wait for each step's session.
	Polling PollingConfig `mapstructure:"polling"`

	// Repo controls how step repo values become URLs.
	Repo RepoConfig `mapstructure:"repo"`

	// Mock configures mock mode and the bundled mock server.
	Mock MockConfig `mapstructure:"mock"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Log configures structured logging.
	Log LogConfig `mapstructure:"log"`
}

// APIConfig contains session API settings.
type APIConfig struct {
	// Key is the bearer credential. Also read from DEVIN_API_KEY.
	Key string `mapstructure:"key"`

	// BaseURL is the API root. Default: "https://api.devin.ai/v1".
	BaseURL string `mapstructure:"base_url"`

	// KnowledgeIDs are attached to every created session.
	KnowledgeIDs []string `mapstructure:"knowledge_ids"`

	// HTTPRetries is the number of transport-level retries per request on
	// 5xx, 429 and network errors. Default: 2.
	HTTPRetries int `mapstructure:"http_retries"`

	// RequestTimeout bounds a single HTTP request. Default: 30s.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PollingConfig contains the polling bounds applied to every step.
type PollingConfig struct {
	// Interval is the wait between reads after the first. Default: 10s.
	Interval time.Duration `mapstructure:"interval"`

	// FirstInterval is the wait after the first read. Default: 90s.
	FirstInterval time.Duration `mapstructure:"first_interval"`

	// MaxPolls is the read budget per step. Default: 9999.
	MaxPolls int `mapstructure:"max_polls"`

	// Timeout is a per-step wall-clock ceiling. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	// StopOnFailure ends a workflow at its first failed step.
	StopOnFailure bool `mapstructure:"stop_on_failure"`
}

// RepoConfig controls repo resolution.
type RepoConfig struct {
	// BaseURL is prepended to short repo names. Also read from ADO_URL.
	BaseURL string `mapstructure:"base_url"`

	// KnownHost marks repo values that are already absolute.
	// Default: "dev.azure.com".
	KnownHost string `mapstructure:"known_host"`

	// CatalogPath points to an optional CSV file of repo aliases.
	CatalogPath string `mapstructure:"catalog_path"`
}

// MockConfig configures mock mode.
type MockConfig struct {
	// Enabled routes all API calls to URL with a placeholder key.
	Enabled bool `mapstructure:"enabled"`

	// URL is the mock API root. Default: "http://localhost:3001/v1".
	URL string `mapstructure:"url"`

	// Addr is the listen address of the mock-server command.
	// Default: ":3001".
	Addr string `mapstructure:"addr"`

	// CompletionDelay is how long a mock session runs before it finishes.
	// Default: 2s.
	CompletionDelay time.Duration `mapstructure:"completion_delay"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// Verbose narrates workflow progress on the terminal. Default: true.
	Verbose bool `mapstructure:"verbose"`

	// Markdown contains markdown rendering configuration.
	Markdown MarkdownConfig `mapstructure:"markdown"`
}

// MarkdownConfig contains configuration for markdown rendering of step
// results in terminal output.
type MarkdownConfig struct {
	// Enabled controls whether markdown rendering is active.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Style is the glamour theme to use: "dark", "light", "dracula", "tokyo-night".
	// Avoid "auto" as it can cause detection delays on some terminals.
	// Default: "dark"
	Style string `mapstructure:"style"`

	// WordWrap is the column width for text wrapping.
	// Default: 100
	WordWrap int `mapstructure:"word_wrap"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: "warn".
	Level string `mapstructure:"level"`

	// Format is one of auto, text, json. Default: "auto".
	Format string `mapstructure:"format"`

	// RedactPatterns are extra regular expressions whose matches are
	// replaced in every log record.
	RedactPatterns []string `mapstructure:"redact_patterns"`
}

// DefaultConfig returns a new [Config] with the defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://api.devin.ai/v1",
			KnowledgeIDs:   []string{},
			HTTPRetries:    2,
			RequestTimeout: 30 * time.Second,
		},
		Polling: PollingConfig{
			Interval:      10 * time.Second,
			FirstInterval: 90 * time.Second,
			MaxPolls:      9999,
		},
		Repo: RepoConfig{
			KnownHost: "dev.azure.com",
		},
		Mock: MockConfig{
			URL:             "http://localhost:3001/v1",
			Addr:            ":3001",
			CompletionDelay: 2 * time.Second,
		},
		Output: OutputConfig{
			Verbose: true,
			Markdown: MarkdownConfig{
				Enabled:  true,
				Style:    "dark",
				WordWrap: 100,
			},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "auto",
		},
	}
}
