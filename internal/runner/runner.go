// Package runner is the entry point for executing and validating workflow
// documents.
//
// [Runner.StartWorkflow] parses, validates and executes a markdown workflow
// and always returns an [ExecutionSummary]; expected failures such as a
// missing API key or an invalid document are reported in its Error field.
// [ValidateWorkflow] performs the parse and validation only.
//
// A Runner tracks in-flight executions by id so that another goroutine (a
// signal handler, an MCP tool call) can cancel them with [Runner.Cancel].
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"devinflow/internal/devin"
	"devinflow/internal/lifecycle"
	"devinflow/internal/logging"
	"devinflow/internal/output"
	"devinflow/internal/workflow"
)

// ClientFactory builds the session client for one execution.
type ClientFactory func(opts Options, logger *slog.Logger) lifecycle.SessionClient

// DefaultClientFactory returns an HTTP [devin.Client] for opts.
func DefaultClientFactory(opts Options, logger *slog.Logger) lifecycle.SessionClient {
	return devin.NewClient(devin.Config{
		BaseURL:      opts.BaseURL(),
		APIKey:       opts.APIKey,
		KnowledgeIDs: opts.KnowledgeIDs,
		HTTPRetries:  opts.HTTPRetries,
		Timeout:      opts.RequestTimeout,
	}, devin.WithLogger(logger))
}

// Runner executes workflows.
type Runner struct {
	logger    *slog.Logger
	printer   output.Printer
	newClient ClientFactory
	now       func() time.Time
	sleep     lifecycle.SleepFunc

	mu      sync.Mutex
	running map[string]*lifecycle.CancelToken
}

// Option configures a [Runner].
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithPrinter sets the printer used when [Options.Verbose] is true.
func WithPrinter(p output.Printer) Option {
	return func(r *Runner) {
		r.printer = p
	}
}

// WithClientFactory replaces [DefaultClientFactory].
func WithClientFactory(f ClientFactory) Option {
	return func(r *Runner) {
		r.newClient = f
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithSleep replaces the wait between polls.
func WithSleep(fn lifecycle.SleepFunc) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// New creates a Runner. Without a printer, verbose narration is skipped.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:    logging.NewNop().Logger,
		newClient: DefaultClientFactory,
		now:       time.Now,
		running:   make(map[string]*lifecycle.CancelToken),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartWorkflow parses, validates and executes markdown.
//
// It never returns nil. Cancelling ctx or calling [Runner.Cancel] with the
// execution id stops the execution cooperatively; the steps run so far are
// reported.
func (r *Runner) StartWorkflow(ctx context.Context, markdown string, opts Options) *ExecutionSummary {
	start := r.now()
	opts = opts.withDefaults()
	if opts.ExecutionID == "" {
		opts.ExecutionID = uuid.NewString()
	}
	logger := r.logger.With("execution_id", opts.ExecutionID)
	printer := r.verbosePrinter(opts)

	fail := func(err error) *ExecutionSummary {
		logger.Error("workflow execution failed", "error", err)
		s := failedSummary(opts, err, r.now().Sub(start), r.now())
		if printer != nil {
			printer.ExecutionComplete(s.Completion())
		}
		return s
	}

	if err := opts.checkAPIKey(); err != nil {
		return fail(err)
	}

	if printer != nil {
		printer.WorkflowStart(output.RunInfo{
			ExecutionID:   opts.ExecutionID,
			MaskedAPIKey:  logging.MaskKey(opts.APIKey),
			MockMode:      opts.UseMockMode,
			APIURL:        opts.BaseURL(),
			RepoBaseURL:   opts.RepoBaseURL,
			Interval:      opts.PollingInterval,
			FirstInterval: opts.FirstPollingInterval,
			MaxPolls:      opts.MaxPolls,
			Timeout:       opts.Timeout,
		})
	}

	doc, err := workflow.Parse(markdown)
	if err != nil {
		return fail(fmt.Errorf("workflow parse failed: %w", err))
	}
	validation := workflow.ValidateWorkflow(doc.Steps)
	if !validation.Valid {
		return fail(fmt.Errorf("workflow validation failed: %s", joinMessages(validation.Errors)))
	}
	if len(doc.Steps) == 0 {
		return fail(ErrNoSteps)
	}
	for _, w := range validation.Warnings {
		logger.Warn("workflow warning", "warning", w)
	}
	if printer != nil {
		printer.WorkflowSummary(workflow.Summarize(doc.Steps))
	}

	execOpts := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithClock(r.now),
	}
	if r.sleep != nil {
		execOpts = append(execOpts, lifecycle.WithSleep(r.sleep))
	}
	if printer != nil {
		execOpts = append(execOpts, lifecycle.WithObserver(newNarrator(printer)))
	}

	executor, err := lifecycle.NewExecutor(r.newClient(opts, logger), lifecycle.ExecutorConfig{
		RepoBaseURL:   opts.RepoBaseURL,
		KnownRepoHost: opts.KnownRepoHost,
		Catalog:       opts.Catalog,
		Poll:          opts.PollConfig(),
		StopOnFailure: opts.StopOnFailure,
	}, execOpts...)
	if err != nil {
		return fail(err)
	}

	token := r.register(opts.ExecutionID)
	defer r.unregister(opts.ExecutionID)

	logger.Info("executing workflow", "steps", len(doc.Steps), "mock", opts.UseMockMode, "api_url", opts.BaseURL())
	results, err := executor.ExecuteWorkflow(ctx, doc.Steps, token)

	end := r.now()
	summary := buildSummary(opts, results, end.Sub(start), end)
	if err != nil {
		summary.Success = false
		summary.Error = err.Error()
		logger.Error("workflow aborted", "error", err)
	}
	if token.Cancelled() || ctx.Err() != nil {
		summary.Cancelled = true
		summary.Success = false
		if summary.Error == "" {
			summary.Error = ErrCancelled.Error()
		}
	}
	if printer != nil {
		printer.ExecutionComplete(summary.Completion())
	}
	return summary
}

func (r *Runner) verbosePrinter(opts Options) output.Printer {
	if !opts.Verbose || r.printer == nil {
		return nil
	}
	return r.printer
}

func (r *Runner) register(id string) *lifecycle.CancelToken {
	token := lifecycle.NewCancelToken()
	r.mu.Lock()
	r.running[id] = token
	r.mu.Unlock()
	return token
}

func (r *Runner) unregister(id string) {
	r.mu.Lock()
	delete(r.running, id)
	r.mu.Unlock()
}

// Cancel requests that the execution with id stop. It reports whether such
// an execution was in flight.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	token, ok := r.running[id]
	r.mu.Unlock()
	if ok {
		r.logger.Info("cancelling execution", "execution_id", id)
		token.Cancel()
	}
	return ok
}

// CancelAll requests that every in-flight execution stop.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.running {
		token.Cancel()
	}
}

// Running returns the ids of in-flight executions, sorted.
func (r *Runner) Running() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}
