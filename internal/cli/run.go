package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"devinflow/internal/catalog"
	"devinflow/internal/report"
	"devinflow/internal/runner"
)

type runFlags struct {
	apiKey        string
	apiURL        string
	mock          bool
	mockURL       string
	interval      time.Duration
	firstInterval time.Duration
	maxPolls      int
	timeout       time.Duration
	stopOnFailure bool
	repoBaseURL   string
	catalogPath   string
	executionID   string
	quiet         bool
	jsonOut       bool
	outputPath    string
}

func newRunCommand(app *App) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <workflow.md>",
		Short: "Execute a workflow",
		Long: `Execute every step of a markdown workflow in order.

Each step creates a session, polls it until the agent finishes, and hands
the result to the next step when that step relies on it. Use "-" to read
the workflow from stdin.

Example:
  devinflow run release.md --mock --first-polling-interval 5s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := readWorkflow(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			opts, err := app.options()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &opts); err != nil {
				return err
			}

			summary := app.Runner.StartWorkflow(cmd.Context(), markdown, opts)

			if f.outputPath != "" {
				if err := report.Write(f.outputPath, summary); err != nil {
					return err
				}
				app.Logger.Info("wrote execution report", "path", f.outputPath)
			}
			if f.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			}

			if !summary.Success {
				if f.quiet && summary.Error != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", app.Logger.Sanitize(summary.Error))
				}
				return NewExitError(1)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.apiKey, "api-key", "", "Devin API key (default: DEVIN_API_KEY)")
	flags.StringVar(&f.apiURL, "api-url", "", "session API root URL")
	flags.BoolVar(&f.mock, "mock", false, "use the mock session API")
	flags.StringVar(&f.mockURL, "mock-url", "", "mock session API root URL")
	flags.DurationVar(&f.interval, "polling-interval", 0, "wait between session reads after the first")
	flags.DurationVar(&f.firstInterval, "first-polling-interval", 0, "wait after the first session read")
	flags.IntVar(&f.maxPolls, "max-polls", 0, "session reads per step before giving up")
	flags.DurationVar(&f.timeout, "timeout", 0, "per-step time limit (0 disables it)")
	flags.BoolVar(&f.stopOnFailure, "stop-on-failure", false, "stop after the first failed step")
	flags.StringVar(&f.repoBaseURL, "repo-base-url", "", "base URL for short repo names (default: ADO_URL)")
	flags.StringVar(&f.catalogPath, "catalog", "", "CSV file of repo aliases")
	flags.StringVar(&f.executionID, "execution-id", "", "execution id (default: generated)")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "suppress progress output")
	flags.BoolVar(&f.jsonOut, "json", false, "print the execution summary as JSON")
	flags.StringVarP(&f.outputPath, "output", "o", "", "write the execution summary to a .json or .yaml file")

	return cmd
}

// apply copies explicitly set flags onto opts.
func (f *runFlags) apply(cmd *cobra.Command, opts *runner.Options) error {
	changed := cmd.Flags().Changed

	if changed("api-key") {
		opts.APIKey = f.apiKey
	}
	if changed("api-url") {
		opts.APIURL = f.apiURL
	}
	if changed("mock") {
		opts.UseMockMode = f.mock
	}
	if changed("mock-url") {
		opts.MockAPIURL = f.mockURL
	}
	if changed("polling-interval") {
		opts.PollingInterval = f.interval
	}
	if changed("first-polling-interval") {
		opts.FirstPollingInterval = f.firstInterval
	}
	if changed("max-polls") {
		opts.MaxPolls = f.maxPolls
	}
	if changed("timeout") {
		opts.Timeout = f.timeout
	}
	if changed("stop-on-failure") {
		opts.StopOnFailure = f.stopOnFailure
	}
	if changed("repo-base-url") {
		opts.RepoBaseURL = f.repoBaseURL
	}
	if changed("catalog") {
		cat, err := catalog.ReadFromFile(f.catalogPath)
		if err != nil {
			return err
		}
		opts.Catalog = cat
	}
	opts.ExecutionID = f.executionID
	if f.quiet || f.jsonOut {
		opts.Verbose = false
	}
	return nil
}

// readWorkflow returns the contents of path, or of stdin when path is "-".
func readWorkflow(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read workflow: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
