// Package cli implements the devinflow command tree.
//
// Commands are built around an [App] holding the loaded configuration and
// the shared runner, printer and logger. Commands signal failure by
// returning an [ExitError], so tests can check exit codes without the
// process exiting; [Execute] is the only place that calls os.Exit.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"devinflow/internal/catalog"
	"devinflow/internal/config"
	"devinflow/internal/devin"
	"devinflow/internal/logging"
	"devinflow/internal/output"
	"devinflow/internal/runner"
)

// Version is set at build time.
var Version = "dev"

// App holds the dependencies shared by all commands.
//
// Nil fields are filled from Config before a command runs.
type App struct {
	Config  *config.Config
	Logger  *logging.Logger
	Printer output.Printer
	Runner  *runner.Runner

	// NewClient builds the client for the session commands.
	NewClient func(opts runner.Options) devin.API

	Out io.Writer
	Err io.Writer

	loader *config.Loader
}

// NewApp creates an App that loads its configuration when a command runs.
func NewApp() *App {
	return &App{
		loader: config.NewLoader(),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

// ExecuteResult is the outcome of running the command tree.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "devinflow",
		Short: "Run multi-step markdown workflows against Devin sessions",
		Long: `devinflow executes markdown workflows one step at a time. Each step
creates a Devin session, waits for the agent to finish, and passes the
agent's last message on to the next step.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: user config dir, then ./devinflow.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: auto, text, json")

	if app.loader != nil {
		_ = app.loader.BindFlag("log.level", flags.Lookup("log-level"))
		_ = app.loader.BindFlag("log.format", flags.Lookup("log-format"))
	}

	rootCmd.SetOut(app.Out)
	rootCmd.SetErr(app.Err)

	rootCmd.AddCommand(
		newRunCommand(app),
		newValidateCommand(app),
		newParseCommand(app),
		newSessionCommand(app),
		newReportCommand(app),
		newReposCommand(app),
		newMCPCommand(app),
		newMockServerCommand(app),
	)

	return rootCmd
}

// init loads configuration and builds whatever the caller left unset.
func (a *App) init(configFile string) error {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}

	if a.Config == nil {
		if a.loader == nil {
			a.loader = config.NewLoader()
		}
		if configFile != "" {
			a.loader.SetConfigFile(configFile)
		}
		cfg, err := a.loader.Load()
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if a.Logger == nil {
		a.Logger = logging.New(logging.Config{
			Level:          a.Config.Log.Level,
			Format:         a.Config.Log.Format,
			Output:         a.Err,
			RedactPatterns: a.Config.Log.RedactPatterns,
		})
	}
	if a.Printer == nil {
		md := a.Config.Output.Markdown
		a.Printer = output.NewPrinterWithWriter(a.Out).WithMarkdown(output.MarkdownOptions{
			Enabled:  md.Enabled,
			Style:    md.Style,
			WordWrap: md.WordWrap,
		})
	}
	if a.Runner == nil {
		a.Runner = runner.New(
			runner.WithLogger(a.Logger.Logger),
			runner.WithPrinter(a.Printer),
		)
	}
	if a.NewClient == nil {
		logger := a.Logger.Logger
		a.NewClient = func(opts runner.Options) devin.API {
			return devin.NewClient(devin.Config{
				BaseURL:      opts.BaseURL(),
				APIKey:       opts.APIKey,
				KnowledgeIDs: opts.KnowledgeIDs,
				HTTPRetries:  opts.HTTPRetries,
				Timeout:      opts.RequestTimeout,
			}, devin.WithLogger(logger))
		}
	}
	return nil
}

// options maps the loaded configuration onto execution options, loading the
// repo catalog when one is configured.
func (a *App) options() (runner.Options, error) {
	opts := runner.OptionsFromConfig(a.Config)
	if path := a.Config.Repo.CatalogPath; path != "" {
		cat, err := catalog.ReadFromFile(path)
		if err != nil {
			return opts, err
		}
		a.Logger.Debug("loaded repo catalog", "path", path, "aliases", cat.Len())
		opts.Catalog = cat
	}
	return opts, nil
}

// RunWithConfig runs the command tree for app with args. When app.Config is
// nil the configuration is loaded from disk first.
func RunWithConfig(ctx context.Context, app *App, args []string) ExecuteResult {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{}
}

// Execute runs the CLI and exits the process with the resulting code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := NewApp()
	result := RunWithConfig(ctx, app, os.Args[1:])
	stop()

	if result.Err != nil {
		if _, ok := IsExitError(result.Err); !ok {
			fmt.Fprintln(os.Stderr, "Error:", result.Err)
		}
	}
	os.Exit(result.ExitCode)
}
