package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"devinflow/internal/devin"
	"devinflow/internal/lifecycle"
	"devinflow/internal/runner"
	"devinflow/internal/workflow"
)

// handleParseWorkflow returns the parsed document, the repo each step runs
// in after inheritance, and the summary.
func (s *Server) handleParseWorkflow(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}

	doc, err := workflow.Parse(markdown)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"overview": doc.Overview,
		"steps":    doc.Steps,
		"repos":    lifecycle.ResolveRepos(doc.Steps),
		"summary":  workflow.Summarize(doc.Steps),
	})
}

// handleValidateWorkflow returns the validation report. An invalid workflow
// is a successful tool call with valid=false.
func (s *Server) handleValidateWorkflow(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}
	return marshalResult(runner.ValidateWorkflow(markdown))
}

// handleStartWorkflow runs a workflow to completion.
func (s *Server) handleStartWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}

	opts := s.defaults()
	opts.APIKey = req.GetString("api_key", opts.APIKey)
	opts.ExecutionID = req.GetString("execution_id", "")
	opts.UseMockMode = req.GetBool("mock", opts.UseMockMode)
	opts.StopOnFailure = req.GetBool("stop_on_failure", opts.StopOnFailure)
	applyPolling(&opts, req)

	s.logger.Info("start_workflow", "execution_id", opts.ExecutionID, "mock", opts.UseMockMode)
	summary := s.runner.StartWorkflow(ctx, markdown, opts)
	return marshalResult(summary)
}

// handleCancelWorkflow cancels an in-flight execution.
func (s *Server) handleCancelWorkflow(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("execution_id")
	if err != nil {
		return mcp.NewToolResultError("execution_id is required"), nil
	}

	return marshalResult(map[string]any{
		"execution_id": id,
		"cancelled":    s.runner.Cancel(id),
		"running":      s.runner.Running(),
	})
}

func (s *Server) handleCreateSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	client := s.newClient(s.clientOptions(req))
	created, err := client.CreateSession(ctx, prompt, req.GetString("playbook_id", ""), req.GetString("title", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(created)
}

func (s *Server) handleChatSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message is required"), nil
	}

	client := s.newClient(s.clientOptions(req))
	result, err := client.ChatSession(ctx, sessionID, message)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

// handleGetSessionStatus reads a session once and classifies it the way the
// poll loop would.
func (s *Server) handleGetSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	client := s.newClient(s.clientOptions(req))
	session, err := client.GetSession(ctx, sessionID)
	if devin.IsNotFound(err) {
		return mcp.NewToolResultError(fmt.Sprintf("session %s not found", sessionID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sleeping := session.MessageCount > 0 && session.LastMessage() == lifecycle.SleepToken
	result := ""
	if sleeping || session.IsCompleted() {
		result = session.MessageBeforeLast()
	}
	return marshalResult(map[string]any{
		"session_id":          session.SessionID,
		"status":              session.Status,
		"status_enum":         session.StatusEnum,
		"is_completed":        sleeping || session.IsCompleted(),
		"sleep_token":         sleeping,
		"message_count":       session.MessageCount,
		"last_devin_message":  session.LastDevinMessage,
		"result":              result,
		"devin_message_count": session.DevinMessageCount,
	})
}

func (s *Server) handleConfigurePolling(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	opts := s.opts
	applyPolling(&opts, req)
	if err := opts.PollConfig().Validate(); err != nil {
		s.mu.Unlock()
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.opts = opts
	s.mu.Unlock()

	return marshalResult(map[string]any{
		"polling_interval":       opts.PollingInterval.Seconds(),
		"first_polling_interval": opts.FirstPollingInterval.Seconds(),
		"max_polls":              opts.MaxPolls,
		"timeout":                opts.Timeout.Seconds(),
	})
}

func (s *Server) defaults() runner.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *Server) clientOptions(req mcp.CallToolRequest) runner.Options {
	opts := s.defaults()
	opts.APIKey = req.GetString("api_key", opts.APIKey)
	if opts.UseMockMode && opts.APIKey == "" {
		opts.APIKey = runner.MockAPIKey
	}
	return opts
}

// applyPolling copies the polling arguments present in req onto opts.
func applyPolling(opts *runner.Options, req mcp.CallToolRequest) {
	args := req.GetArguments()
	if _, ok := args["polling_interval"]; ok {
		opts.PollingInterval = seconds(req.GetFloat("polling_interval", 0))
	}
	if _, ok := args["first_polling_interval"]; ok {
		opts.FirstPollingInterval = seconds(req.GetFloat("first_polling_interval", 0))
	}
	if _, ok := args["max_polls"]; ok {
		opts.MaxPolls = req.GetInt("max_polls", opts.MaxPolls)
	}
	if _, ok := args["timeout"]; ok {
		opts.Timeout = seconds(req.GetFloat("timeout", 0))
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
