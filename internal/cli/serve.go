package cli

import (
	"time"

	"github.com/spf13/cobra"

	"devinflow/internal/mcpserver"
	"devinflow/internal/mockapi"
	"devinflow/internal/report"
)

func newReportCommand(app *App) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Print an execution summary saved with run --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := report.Load(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			app.Printer.Text("Execution %s at %s", summary.ExecutionID, summary.ExecutedAt.Format(time.RFC3339))
			for _, r := range summary.StepResults {
				app.Printer.StepResult(r)
			}
			app.Printer.ExecutionComplete(summary.Completion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the summary as JSON")
	return cmd
}

func newMCPCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the workflow tools over MCP on stdio",
		Long: `Run an MCP server on stdin/stdout exposing parse_workflow,
validate_workflow, start_workflow, cancel_workflow, create_session,
chat_session, get_session_status and configure_polling.

Logs go to stderr; stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := app.options()
			if err != nil {
				return err
			}
			srv := mcpserver.New(mcpserver.Deps{
				Runner:    app.Runner,
				Options:   opts,
				NewClient: app.NewClient,
				Logger:    app.Logger.Logger,
				Version:   Version,
			})
			return srv.Serve(cmd.Context())
		},
	}
}

func newMockServerCommand(app *App) *cobra.Command {
	var (
		addr   string
		delay  time.Duration
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local mock of the session API",
		Long: `Serve a mock of the session API for mock mode and local testing.

Sessions finish after --delay with a canned reply followed by the "sleep"
token; messages sent to a finished session start it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = app.Config.Mock.Addr
			}
			if !cmd.Flags().Changed("delay") {
				delay = app.Config.Mock.CompletionDelay
			}

			srv := mockapi.New(mockapi.Config{
				APIKey:          apiKey,
				CompletionDelay: delay,
			}, mockapi.WithLogger(app.Logger.Logger))

			app.Printer.Text("Mock session API listening on %s (sessions finish after %s)", addr, delay)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: mock.addr)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "time before a session finishes (default: mock.completion_delay)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "require this bearer key (default: accept any)")
	return cmd
}
