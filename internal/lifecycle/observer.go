package lifecycle

import (
	"log/slog"
	"time"

	"devinflow/internal/workflow"
)

// StepEvent describes a step about to run.
type StepEvent struct {
	Step       workflow.Step
	Index      int
	TotalSteps int
	RepoURL    string
	Elapsed    time.Duration
}

// SessionEvent describes a session created for a step.
type SessionEvent struct {
	StepNumber int
	SessionID  string
	URL        string
	Elapsed    time.Duration
}

// PollEvent describes an unfinished poll read and the wait that follows it.
type PollEvent struct {
	SessionID string
	Attempt   int
	MaxPolls  int
	Status    string
	Err       error
	NextWait  time.Duration
	Elapsed   time.Duration
}

// Observer receives progress events from an [Executor]. Events arrive on the
// executing goroutine in order. Observers only narrate; the returned results
// carry the same information.
type Observer interface {
	WorkflowStarted(totalSteps int)
	StepStarted(e StepEvent)
	SessionCreated(e SessionEvent)
	PollAttempt(e PollEvent)
	StepFinished(r StepResult)
	WorkflowFinished(results []StepResult, elapsed time.Duration)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) WorkflowStarted(int)                          {}
func (NopObserver) StepStarted(StepEvent)                        {}
func (NopObserver) SessionCreated(SessionEvent)                  {}
func (NopObserver) PollAttempt(PollEvent)                        {}
func (NopObserver) StepFinished(StepResult)                      {}
func (NopObserver) WorkflowFinished([]StepResult, time.Duration) {}

type options struct {
	sleep    SleepFunc
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option configures an [Executor] or a [Poller].
type Option func(*options)

// WithSleep replaces the wait between polls.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithClock replaces the wall clock used for timing fields.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the progress observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		sleep:    sleepContext,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
