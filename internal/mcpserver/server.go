// Package mcpserver exposes workflow and session operations as MCP tools
// over stdio.
//
// The tools mirror the command line: parse and validate a workflow, run it,
// cancel a running execution, and drive individual sessions. Tool results
// are JSON. Nothing else may write to stdout while the server runs.
package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"devinflow/internal/devin"
	"devinflow/internal/runner"
)

// ServerName is the MCP implementation name.
const ServerName = "devinflow"

// ClientFactory builds the client used by the session tools.
type ClientFactory func(opts runner.Options) devin.API

// Deps holds the dependencies for [New].
type Deps struct {
	// Runner executes workflows. Required.
	Runner *runner.Runner

	// Options are the execution defaults; tool arguments override them.
	Options runner.Options

	// NewClient builds the client used by the session tools. Defaults to an
	// HTTP [devin.Client].
	NewClient ClientFactory

	Logger  *slog.Logger
	Version string
}

// Server wraps an MCP server with the workflow tools.
type Server struct {
	runner    *runner.Runner
	newClient ClientFactory
	logger    *slog.Logger
	mcpServer *server.MCPServer

	mu   sync.Mutex
	opts runner.Options
}

// New creates a Server with all tools registered.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newClient := deps.NewClient
	if newClient == nil {
		newClient = httpClient
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	opts := deps.Options
	opts.Verbose = false

	s := &Server{
		runner:    deps.Runner,
		newClient: newClient,
		logger:    logger,
		opts:      opts,
	}

	mcpSrv := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("devinflow runs multi-step markdown workflows against Devin sessions. Use validate_workflow before start_workflow; start_workflow blocks until the workflow finishes and returns its execution summary. cancel_workflow stops a running execution by id."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

func httpClient(opts runner.Options) devin.API {
	return devin.NewClient(devin.Config{
		BaseURL:      opts.BaseURL(),
		APIKey:       opts.APIKey,
		KnowledgeIDs: opts.KnowledgeIDs,
		HTTPRetries:  opts.HTTPRetries,
		Timeout:      opts.RequestTimeout,
	})
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
// Running executions are cancelled on return.
func (s *Server) Serve(ctx context.Context) error {
	defer s.runner.CancelAll()
	s.logger.Info("starting MCP server", "name", ServerName)
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for tests and custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: parseWorkflowTool(), Handler: s.handleParseWorkflow},
		{Tool: validateWorkflowTool(), Handler: s.handleValidateWorkflow},
		{Tool: startWorkflowTool(), Handler: s.handleStartWorkflow},
		{Tool: cancelWorkflowTool(), Handler: s.handleCancelWorkflow},
		{Tool: createSessionTool(), Handler: s.handleCreateSession},
		{Tool: chatSessionTool(), Handler: s.handleChatSession},
		{Tool: getSessionStatusTool(), Handler: s.handleGetSessionStatus},
		{Tool: configurePollingTool(), Handler: s.handleConfigurePolling},
	}
}

// --- Tool definitions ---

func parseWorkflowTool() mcp.Tool {
	return mcp.NewTool("parse_workflow",
		mcp.WithDescription("Parse a markdown workflow into structured steps with Playbook, Prompt, Handoff, Repo and RelyPreviousStep parameters"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Markdown workflow content to parse")),
	)
}

func validateWorkflowTool() mcp.Tool {
	return mcp.NewTool("validate_workflow",
		mcp.WithDescription("Validate a markdown workflow without executing it"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Markdown workflow content to validate")),
	)
}

func startWorkflowTool() mcp.Tool {
	return mcp.NewTool("start_workflow",
		mcp.WithDescription("Execute a multi-step workflow with polling and step dependencies; returns the execution summary"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Markdown workflow to execute")),
		mcp.WithString("api_key", mcp.Description("Devin API key (default: configured key)")),
		mcp.WithString("execution_id", mcp.Description("Id to use with cancel_workflow (default: generated)")),
		mcp.WithBoolean("mock", mcp.Description("Use the mock session API")),
		mcp.WithBoolean("stop_on_failure", mcp.Description("Stop after the first failed step")),
		mcp.WithNumber("polling_interval", mcp.Description("Polling interval in seconds (default: 10)")),
		mcp.WithNumber("first_polling_interval", mcp.Description("Wait before the second poll in seconds (default: 90)")),
		mcp.WithNumber("max_polls", mcp.Description("Maximum session reads per step (default: 9999)")),
		mcp.WithNumber("timeout", mcp.Description("Per-step timeout in seconds; 0 disables it")),
	)
}

func cancelWorkflowTool() mcp.Tool {
	return mcp.NewTool("cancel_workflow",
		mcp.WithDescription("Cancel a running workflow execution"),
		mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution id returned by or passed to start_workflow")),
	)
}

func createSessionTool() mcp.Tool {
	return mcp.NewTool("create_session",
		mcp.WithDescription("Create a new Devin session"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Prompt for the session")),
		mcp.WithString("playbook_id", mcp.Description(`Optional playbook id (prefixed with "playbook-" if missing)`)),
		mcp.WithString("title", mcp.Description("Optional session title")),
		mcp.WithString("api_key", mcp.Description("Devin API key (default: configured key)")),
	)
}

func chatSessionTool() mcp.Tool {
	return mcp.NewTool("chat_session",
		mcp.WithDescription("Send a message to an existing Devin session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id to send the message to")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to send")),
		mcp.WithString("api_key", mcp.Description("Devin API key (default: configured key)")),
	)
}

func getSessionStatusTool() mcp.Tool {
	return mcp.NewTool("get_session_status",
		mcp.WithDescription("Check session completion status and extract the last devin_message"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id to check")),
		mcp.WithString("api_key", mcp.Description("Devin API key (default: configured key)")),
	)
}

func configurePollingTool() mcp.Tool {
	return mcp.NewTool("configure_polling",
		mcp.WithDescription("Change the default polling settings used by later start_workflow calls"),
		mcp.WithNumber("polling_interval", mcp.Description("Polling interval in seconds")),
		mcp.WithNumber("first_polling_interval", mcp.Description("Wait before the second poll in seconds")),
		mcp.WithNumber("max_polls", mcp.Description("Maximum session reads per step")),
		mcp.WithNumber("timeout", mcp.Description("Per-step timeout in seconds; 0 disables it")),
	)
}
