package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DEVINFLOW"

	// EnvConfigPath names a config file to load.
	EnvConfigPath = "DEVINFLOW_CONFIG_PATH"

	appName        = "devinflow"
	configFileName = "config.yaml"
	localFileName  = "devinflow.yaml"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a Loader with an isolated Viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// BindFlag makes a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag to bind to %q", key)
	}
	return l.v.BindPFlag(key, flag)
}

// SetConfigFile makes [Loader.Load] read path instead of searching.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load reads defaults, the config file if one is found, and environment
// overrides, in that order of increasing precedence.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	path := l.configFile
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("api.key", d.API.Key)
	l.v.SetDefault("api.base_url", d.API.BaseURL)
	l.v.SetDefault("api.knowledge_ids", d.API.KnowledgeIDs)
	l.v.SetDefault("api.http_retries", d.API.HTTPRetries)
	l.v.SetDefault("api.request_timeout", d.API.RequestTimeout)

	l.v.SetDefault("polling.interval", d.Polling.Interval)
	l.v.SetDefault("polling.first_interval", d.Polling.FirstInterval)
	l.v.SetDefault("polling.max_polls", d.Polling.MaxPolls)
	l.v.SetDefault("polling.timeout", d.Polling.Timeout)
	l.v.SetDefault("polling.stop_on_failure", d.Polling.StopOnFailure)

	l.v.SetDefault("repo.base_url", d.Repo.BaseURL)
	l.v.SetDefault("repo.known_host", d.Repo.KnownHost)
	l.v.SetDefault("repo.catalog_path", d.Repo.CatalogPath)

	l.v.SetDefault("mock.enabled", d.Mock.Enabled)
	l.v.SetDefault("mock.url", d.Mock.URL)
	l.v.SetDefault("mock.addr", d.Mock.Addr)
	l.v.SetDefault("mock.completion_delay", d.Mock.CompletionDelay)

	l.v.SetDefault("output.verbose", d.Output.Verbose)
	l.v.SetDefault("output.markdown.enabled", d.Output.Markdown.Enabled)
	l.v.SetDefault("output.markdown.style", d.Output.Markdown.Style)
	l.v.SetDefault("output.markdown.word_wrap", d.Output.Markdown.WordWrap)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
}

func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Names used by existing deployments.
	_ = l.v.BindEnv("api.key", EnvPrefix+"_API_KEY", "DEVIN_API_KEY")
	_ = l.v.BindEnv("repo.base_url", EnvPrefix+"_REPO_BASE_URL", "ADO_URL")
}

func findConfigFile() string {
	if path, err := DefaultConfigPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if _, err := os.Stat(localFileName); err == nil {
		return localFileName
	}
	return ""
}

// ConfigDir returns the platform-standard configuration directory for
// devinflow.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// DefaultConfigPath returns the path of the user-level config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate reports every setting that cannot be used, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.API.HTTPRetries < 0 {
		errs = append(errs, fmt.Errorf("api.http_retries must not be negative, got %d", c.API.HTTPRetries))
	}
	if c.API.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("api.request_timeout must not be negative, got %s", c.API.RequestTimeout))
	}
	if c.Polling.MaxPolls < 1 {
		errs = append(errs, fmt.Errorf("polling.max_polls must be at least 1, got %d", c.Polling.MaxPolls))
	}
	if c.Polling.Interval < 0 {
		errs = append(errs, fmt.Errorf("polling.interval must not be negative, got %s", c.Polling.Interval))
	}
	if c.Polling.FirstInterval < 0 {
		errs = append(errs, fmt.Errorf("polling.first_interval must not be negative, got %s", c.Polling.FirstInterval))
	}
	if c.Polling.Timeout < 0 {
		errs = append(errs, fmt.Errorf("polling.timeout must not be negative, got %s", c.Polling.Timeout))
	}
	if c.Mock.CompletionDelay < 0 {
		errs = append(errs, fmt.Errorf("mock.completion_delay must not be negative, got %s", c.Mock.CompletionDelay))
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Errorf("log.format %q is not one of auto, text, json", c.Log.Format))
	}
	for _, p := range c.Log.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("log.redact_patterns: %w", err))
		}
	}

	return errors.Join(errs...)
}
