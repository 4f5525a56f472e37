package cli

import (
	"github.com/spf13/cobra"

	"devinflow/internal/devin"
	"devinflow/internal/runner"
)

type sessionFlags struct {
	apiKey string
	mock   bool
}

func newSessionCommand(app *App) *cobra.Command {
	var f sessionFlags

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, inspect and message individual sessions",
	}
	cmd.PersistentFlags().StringVar(&f.apiKey, "api-key", "", "Devin API key (default: DEVIN_API_KEY)")
	cmd.PersistentFlags().BoolVar(&f.mock, "mock", false, "use the mock session API")

	cmd.AddCommand(
		newSessionCreateCommand(app, &f),
		newSessionGetCommand(app, &f),
		newSessionChatCommand(app, &f),
	)
	return cmd
}

// client builds a session client from the configuration and the session
// flags.
func (f *sessionFlags) client(cmd *cobra.Command, app *App) (devin.API, error) {
	opts, err := app.options()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("api-key") {
		opts.APIKey = f.apiKey
	}
	if cmd.Flags().Changed("mock") {
		opts.UseMockMode = f.mock
	}
	if opts.UseMockMode && opts.APIKey == "" {
		opts.APIKey = runner.MockAPIKey
	}
	return app.NewClient(opts), nil
}

func newSessionCreateCommand(app *App, f *sessionFlags) *cobra.Command {
	var playbook, title string

	cmd := &cobra.Command{
		Use:   "create <prompt>",
		Short: "Create a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := f.client(cmd, app)
			if err != nil {
				return err
			}
			created, err := client.CreateSession(cmd.Context(), args[0], playbook, title)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&playbook, "playbook", "", `playbook id ("playbook-" is added if missing)`)
	cmd.Flags().StringVar(&title, "title", "", "session title")
	return cmd
}

func newSessionGetCommand(app *App, f *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Print a session and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := f.client(cmd, app)
			if err != nil {
				return err
			}
			session, err := client.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), session)
		},
	}
}

func newSessionChatCommand(app *App, f *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <session-id> <message>",
		Short: "Send a message to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := f.client(cmd, app)
			if err != nil {
				return err
			}
			result, err := client.ChatSession(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}
