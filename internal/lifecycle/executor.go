// Package lifecycle executes workflow steps against remote agent sessions.
//
// The lifecycle package provides [Executor] which runs parsed steps strictly in
// sequence. For each step it resolves the repository, assembles the prompt,
// creates a session, and polls that session until the agent reports
// completion. The result of one step is handed to the next.
//
// Key concepts:
//   - [BuildPrompt] assembles the session prompt from a step, a repo and prior data
//   - [RepoTracker] carries repo inheritance across steps
//   - [Poller] is the polling state machine, bounded by an immutable [PollConfig]
//   - [CancelToken] stops an execution cooperatively
//   - Progress can be tracked via [Observer]
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"devinflow/internal/catalog"
	"devinflow/internal/devin"
	"devinflow/internal/status"
	"devinflow/internal/workflow"
)

// Sentinel step results.
const (
	MainResultTimedOut = "Session polling timed out"
	MainResultStopped  = "Session polling stopped"

	SessionStatusTimeout = "timeout"
	SessionStatusStopped = "stopped"
	SessionStatusError   = "error"
)

var (
	// ErrMissingRepoBaseURL is returned by [NewExecutor] when no base URL for
	// repo expansion is configured.
	ErrMissingRepoBaseURL = errors.New("repo base URL is required (set ADO_URL or repo.base_url)")

	// ErrSessionCreation wraps a failure to create a step's session. It aborts
	// the workflow.
	ErrSessionCreation = errors.New("failed to create session")
)

// SessionClient is the remote session API used by the executor.
//
// The [devin.Client] and [devin.MockClient] types implement this interface.
type SessionClient interface {
	SessionReader
	CreateSession(ctx context.Context, prompt, playbookID, title string) (*devin.CreatedSession, error)
}

// ExecutorConfig holds the settings fixed for the lifetime of an [Executor].
type ExecutorConfig struct {
	// RepoBaseURL is prepended to short repo identifiers. Required.
	RepoBaseURL string

	// KnownRepoHost marks repo values that are already absolute. Defaults to
	// [DefaultKnownRepoHost].
	KnownRepoHost string

	// Catalog maps repo aliases to repo paths before expansion. Optional.
	Catalog *catalog.Catalog

	// Poll bounds each step's polling.
	Poll PollConfig

	// StopOnFailure ends the workflow after the first failed step. By default
	// later steps still run, without prior-step data.
	StopOnFailure bool
}

// StepResult is the record of one executed step. It is never modified after
// the executor returns it.
type StepResult struct {
	StepNumber         int       `json:"step_number" yaml:"step_number"`
	Title              string    `json:"title,omitempty" yaml:"title,omitempty"`
	Success            bool      `json:"success" yaml:"success"`
	Outcome            PollState `json:"outcome" yaml:"outcome"`
	SessionID          string    `json:"session_id" yaml:"session_id"`
	SessionURL         string    `json:"session_url,omitempty" yaml:"session_url,omitempty"`
	Repo               string    `json:"repo,omitempty" yaml:"repo,omitempty"`
	MainResult         string    `json:"main_result" yaml:"main_result"`
	HandoffInstruction string    `json:"handoff_instruction,omitempty" yaml:"handoff_instruction,omitempty"`
	HandoffResult      *string   `json:"handoff_result" yaml:"handoff_result"`
	ReliedOnPrevious   bool      `json:"relied_on_previous" yaml:"relied_on_previous"`
	ExecutionTimeMs    int64     `json:"execution_time_ms" yaml:"execution_time_ms"`
	MainExecutionMs    int64     `json:"main_execution_time_ms" yaml:"main_execution_time_ms"`
	TotalElapsedMs     int64     `json:"total_elapsed_time_ms" yaml:"total_elapsed_time_ms"`
	PollsCount         int       `json:"polls_count" yaml:"polls_count"`
	CompletedAt        time.Time `json:"completed_at" yaml:"completed_at"`
	SessionStatus      string    `json:"session_status" yaml:"session_status"`
	Error              string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Handoff returns the handoff result, or "" when the step produced none.
func (r StepResult) Handoff() string {
	if r.HandoffResult == nil {
		return ""
	}
	return *r.HandoffResult
}

// PreviousStep is the data carried from one step to the next.
type PreviousStep struct {
	// Handoff is the previous step's handoff result, if it produced one.
	Handoff string

	// Result is the most recent successful step's main result.
	Result string
}

// Available reports whether any prior data exists.
func (p PreviousStep) Available() bool {
	return p.Handoff != "" || p.Result != ""
}

// Data returns the handoff result when present, else the main result.
func (p PreviousStep) Data() string {
	if p.Handoff != "" {
		return p.Handoff
	}
	return p.Result
}

// StepTiming holds the timestamps a step's durations are measured from.
type StepTiming struct {
	WorkflowStart time.Time
	StepStart     time.Time
}

// Executor runs workflow steps in sequence.
//
// Executor uses dependency injection for testability: a [SessionClient]
// talks to the remote API, and [Option] values replace the clock, the wait
// between polls, the logger and the observer. Use [NewExecutor] to create an
// instance and [Executor.ExecuteWorkflow] to run a workflow.
type Executor struct {
	client   SessionClient
	cfg      ExecutorConfig
	poller   *Poller
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// NewExecutor creates an Executor.
//
// It fails with [ErrMissingRepoBaseURL] when cfg.RepoBaseURL is blank, and
// with a validation error when cfg.Poll cannot drive a poll loop.
func NewExecutor(client SessionClient, cfg ExecutorConfig, opts ...Option) (*Executor, error) {
	if strings.TrimSpace(cfg.RepoBaseURL) == "" {
		return nil, ErrMissingRepoBaseURL
	}
	if err := cfg.Poll.Validate(); err != nil {
		return nil, fmt.Errorf("invalid polling config: %w", err)
	}
	if cfg.KnownRepoHost == "" {
		cfg.KnownRepoHost = DefaultKnownRepoHost
	}

	o := applyOptions(opts)
	return &Executor{
		client:   client,
		cfg:      cfg,
		poller:   NewPoller(client, opts...),
		now:      o.now,
		logger:   o.logger,
		observer: o.observer,
	}, nil
}

// ResolveRepoURL maps an alias through the catalog and expands the result
// against the base URL. An empty repo returns "".
func (e *Executor) ResolveRepoURL(repo string) string {
	if repo == "" {
		return ""
	}
	return ExpandRepoURL(e.cfg.Catalog.Resolve(repo), e.cfg.RepoBaseURL, e.cfg.KnownRepoHost)
}

// ExecuteWorkflow runs steps in order and returns one result per executed
// step.
//
// A step that fails (timed out, failed, or ended in a vendor failure status)
// is recorded and clears the data carried to the next step; later steps
// still run unless StopOnFailure is set. A stopped step ends the loop. A
// session creation failure aborts the workflow: the results gathered so far
// are returned together with an error wrapping [ErrSessionCreation].
//
// The input steps are not modified.
func (e *Executor) ExecuteWorkflow(ctx context.Context, steps []workflow.Step, token *CancelToken) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	workflowStart := e.now()
	totalSteps := len(steps)

	var repos RepoTracker
	var prev PreviousStep

	e.logger.Info("starting workflow", "steps", totalSteps)
	e.observer.WorkflowStarted(totalSteps)

	for i, step := range steps {
		if token.Cancelled() || ctx.Err() != nil {
			e.logger.Info("workflow stopped before step", "step", step.StepNumber)
			break
		}

		stepStart := e.now()
		repoURL := e.ResolveRepoURL(repos.Resolve(i, step))

		e.observer.StepStarted(StepEvent{
			Step:       step,
			Index:      i + 1,
			TotalSteps: totalSteps,
			RepoURL:    repoURL,
			Elapsed:    stepStart.Sub(workflowStart),
		})

		result, err := e.ExecuteStep(ctx, step, repoURL, prev, StepTiming{
			WorkflowStart: workflowStart,
			StepStart:     stepStart,
		}, token)
		if err != nil {
			e.observer.WorkflowFinished(results, e.now().Sub(workflowStart))
			return results, fmt.Errorf("step %d: %w", step.StepNumber, err)
		}

		results = append(results, result)
		e.observer.StepFinished(result)

		if result.Success {
			prev.Handoff = result.Handoff()
			if result.MainResult != "" {
				prev.Result = result.MainResult
			}
			continue
		}

		prev = PreviousStep{}
		if result.Outcome == PollStopped {
			break
		}
		if e.cfg.StopOnFailure {
			e.logger.Info("stopping after failed step", "step", step.StepNumber)
			break
		}
	}

	elapsed := e.now().Sub(workflowStart)
	e.logger.Info("workflow finished", "steps_run", len(results), "elapsed", elapsed)
	e.observer.WorkflowFinished(results, elapsed)
	return results, nil
}

// ExecuteStep creates the session for one step and polls it to an outcome.
//
// repoURL is the resolved repository or "". prev is the data carried from
// earlier steps; it is embedded only when the step relies on the previous
// step. The only error is a session creation failure.
func (e *Executor) ExecuteStep(ctx context.Context, step workflow.Step, repoURL string, prev PreviousStep, timing StepTiming, token *CancelToken) (StepResult, error) {
	relied := step.RelyPreviousStep && prev.Available()
	previousData := ""
	if relied {
		previousData = prev.Data()
	}

	prompt := BuildPrompt(step, repoURL, previousData)
	title := SessionTitle(step)

	e.logger.Debug("creating session", "step", step.StepNumber, "title", title, "playbook", step.Playbook, "repo", repoURL)
	created, err := e.client.CreateSession(ctx, prompt, step.Playbook, title)
	if err != nil {
		e.logger.Error("session creation failed", "step", step.StepNumber, "error", err)
		return StepResult{}, fmt.Errorf("%w: %w", ErrSessionCreation, err)
	}

	sessionCreated := e.now()
	sessionURL := created.URL
	if sessionURL == "" {
		sessionURL = devin.SessionURL(created.SessionID)
	}
	e.logger.Info("session created", "step", step.StepNumber, "session_id", created.SessionID, "url", sessionURL)
	e.observer.SessionCreated(SessionEvent{
		StepNumber: step.StepNumber,
		SessionID:  created.SessionID,
		URL:        sessionURL,
		Elapsed:    sessionCreated.Sub(timing.WorkflowStart),
	})

	poll := e.poller.Poll(ctx, created.SessionID, e.cfg.Poll, token)
	mainDone := e.now()

	result := StepResult{
		StepNumber:         step.StepNumber,
		Title:              step.Title,
		Outcome:            poll.State,
		SessionID:          created.SessionID,
		SessionURL:         sessionURL,
		Repo:               repoURL,
		HandoffInstruction: step.Handoff,
		ReliedOnPrevious:   relied,
		MainExecutionMs:    mainDone.Sub(sessionCreated).Milliseconds(),
		PollsCount:         poll.PollsCount,
	}

	switch poll.State {
	case PollDone:
		result.MainResult = poll.Result
		result.SessionStatus = poll.Session.Status
		result.Success = poll.SleepToken || !poll.Session.IsFailure()
		if !result.Success {
			result.Error = fmt.Sprintf("session ended with status %q", failureStatus(poll.Session))
		}
		if result.Success && step.HasHandoff() && poll.Result != "" {
			handoff := poll.Result
			result.HandoffResult = &handoff
		}
	case PollTimedOut:
		result.MainResult = MainResultTimedOut
		result.SessionStatus = SessionStatusTimeout
		result.Error = fmt.Sprintf("session polling timed out after %d polls", poll.PollsCount)
	case PollStopped:
		result.MainResult = MainResultStopped
		result.SessionStatus = SessionStatusStopped
		result.Error = "session polling stopped"
	case PollFailed:
		result.MainResult = poll.Err.Error()
		result.SessionStatus = SessionStatusError
		result.Error = poll.Err.Error()
	}

	end := e.now()
	result.ExecutionTimeMs = end.Sub(timing.StepStart).Milliseconds()
	result.TotalElapsedMs = end.Sub(timing.WorkflowStart).Milliseconds()
	result.CompletedAt = end.UTC()

	e.logger.Info("step finished",
		"step", step.StepNumber,
		"success", result.Success,
		"outcome", result.Outcome,
		"polls", result.PollsCount,
		"duration_ms", result.ExecutionTimeMs)
	return result, nil
}

func failureStatus(s *devin.Session) string {
	if status.Normalize(s.Status).IsFailure() {
		return s.Status
	}
	return s.StatusEnum
}
