package runner

import (
	"errors"
	"strings"
	"time"

	"devinflow/internal/catalog"
	"devinflow/internal/config"
	"devinflow/internal/devin"
	"devinflow/internal/lifecycle"
)

// MockAPIKey is used in mock mode when no key is configured.
const MockAPIKey = "mock-test-key"

// MockRepoBaseURL is the repo base used in mock mode when none is configured.
const MockRepoBaseURL = "https://dev.azure.com/mock/Project/_git"

// Error messages returned in a failed [ExecutionSummary].
var (
	ErrAPIKeyRequired = errors.New("API key is required. Please provide it via --api-key or set DEVIN_API_KEY environment variable")
	ErrAPIKeyEmpty    = errors.New("API key cannot be empty. Please provide a valid API key via --api-key or set DEVIN_API_KEY environment variable")
)

// Options configures one workflow execution.
type Options struct {
	// APIKey authenticates against the session API. Optional in mock mode.
	APIKey string

	// APIURL is the session API root. Defaults to [devin.DefaultBaseURL].
	APIURL string

	// UseMockMode sends all calls to MockAPIURL.
	UseMockMode bool
	MockAPIURL  string

	PollingInterval      time.Duration
	FirstPollingInterval time.Duration
	MaxPolls             int

	// Timeout is a per-step wall-clock ceiling. Zero leaves MaxPolls as the
	// only bound.
	Timeout time.Duration

	// Verbose narrates the execution through the runner's printer.
	Verbose bool

	RepoBaseURL   string
	KnownRepoHost string
	Catalog       *catalog.Catalog
	KnowledgeIDs  []string
	StopOnFailure bool

	HTTPRetries    int
	RequestTimeout time.Duration

	// ExecutionID names the execution for [Runner.Cancel]. Generated when
	// empty.
	ExecutionID string
}

// DefaultOptions returns the standard execution settings.
func DefaultOptions() Options {
	poll := lifecycle.DefaultPollConfig()
	return Options{
		APIURL:               devin.DefaultBaseURL,
		MockAPIURL:           devin.DefaultMockURL,
		PollingInterval:      poll.Interval,
		FirstPollingInterval: poll.FirstInterval,
		MaxPolls:             poll.MaxPolls,
		Verbose:              true,
		KnownRepoHost:        lifecycle.DefaultKnownRepoHost,
	}
}

// OptionsFromConfig maps loaded configuration onto execution options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIKey:               cfg.API.Key,
		APIURL:               cfg.API.BaseURL,
		UseMockMode:          cfg.Mock.Enabled,
		MockAPIURL:           cfg.Mock.URL,
		PollingInterval:      cfg.Polling.Interval,
		FirstPollingInterval: cfg.Polling.FirstInterval,
		MaxPolls:             cfg.Polling.MaxPolls,
		Timeout:              cfg.Polling.Timeout,
		Verbose:              cfg.Output.Verbose,
		RepoBaseURL:          cfg.Repo.BaseURL,
		KnownRepoHost:        cfg.Repo.KnownHost,
		KnowledgeIDs:         cfg.API.KnowledgeIDs,
		StopOnFailure:        cfg.Polling.StopOnFailure,
		HTTPRetries:          cfg.API.HTTPRetries,
		RequestTimeout:       cfg.API.RequestTimeout,
	}
}

// withDefaults fills unset values and the mock-mode fallbacks.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.APIURL == "" {
		o.APIURL = d.APIURL
	}
	if o.MockAPIURL == "" {
		o.MockAPIURL = d.MockAPIURL
	}
	if o.KnownRepoHost == "" {
		o.KnownRepoHost = d.KnownRepoHost
	}
	if o.PollingInterval <= 0 {
		o.PollingInterval = d.PollingInterval
	}
	if o.FirstPollingInterval <= 0 {
		o.FirstPollingInterval = d.FirstPollingInterval
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = d.MaxPolls
	}
	if o.UseMockMode {
		if strings.TrimSpace(o.APIKey) == "" {
			o.APIKey = MockAPIKey
		}
		if strings.TrimSpace(o.RepoBaseURL) == "" {
			o.RepoBaseURL = MockRepoBaseURL
		}
	}
	return o
}

// checkAPIKey reports a missing or blank key outside mock mode.
func (o Options) checkAPIKey() error {
	if o.UseMockMode {
		return nil
	}
	if o.APIKey == "" {
		return ErrAPIKeyRequired
	}
	if strings.TrimSpace(o.APIKey) == "" {
		return ErrAPIKeyEmpty
	}
	return nil
}

// BaseURL returns the API root the execution talks to.
func (o Options) BaseURL() string {
	if o.UseMockMode {
		return o.MockAPIURL
	}
	return o.APIURL
}

// PollConfig returns the polling bounds for the executor.
func (o Options) PollConfig() lifecycle.PollConfig {
	return lifecycle.PollConfig{
		MaxPolls:      o.MaxPolls,
		FirstInterval: o.FirstPollingInterval,
		Interval:      o.PollingInterval,
		Timeout:       o.Timeout,
	}
}

// WorkflowConfig echoes the effective settings of an execution.
type WorkflowConfig struct {
	MockMode             bool    `json:"mock_mode" yaml:"mock_mode"`
	APIURL               string  `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	RepoBaseURL          string  `json:"repo_base_url,omitempty" yaml:"repo_base_url,omitempty"`
	PollingInterval      float64 `json:"polling_interval" yaml:"polling_interval"`
	FirstPollingInterval float64 `json:"first_polling_interval" yaml:"first_polling_interval"`
	MaxPolls             int     `json:"max_polls" yaml:"max_polls"`
	Timeout              float64 `json:"timeout" yaml:"timeout"`
	StopOnFailure        bool    `json:"stop_on_failure" yaml:"stop_on_failure"`
}

// workflowConfig reports intervals in seconds.
func (o Options) workflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MockMode:             o.UseMockMode,
		APIURL:               o.BaseURL(),
		RepoBaseURL:          o.RepoBaseURL,
		PollingInterval:      o.PollingInterval.Seconds(),
		FirstPollingInterval: o.FirstPollingInterval.Seconds(),
		MaxPolls:             o.MaxPolls,
		Timeout:              o.Timeout.Seconds(),
		StopOnFailure:        o.StopOnFailure,
	}
}
