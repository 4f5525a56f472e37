package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devinflow/internal/devin"
)

// Polling defaults.
const (
	DefaultMaxPolls      = 9999
	DefaultFirstInterval = 90 * time.Second
	DefaultInterval      = 10 * time.Second
)

// PollConfig is the immutable polling configuration for one execution.
//
// It is passed by value to [NewExecutor] and to [Poller.Poll]; nothing
// mutates it after construction.
type PollConfig struct {
	// MaxPolls is the number of session reads after which polling gives up.
	MaxPolls int

	// FirstInterval is the wait after the first unfinished read.
	FirstInterval time.Duration

	// Interval is the wait after every later unfinished read.
	Interval time.Duration

	// Timeout is a wall-clock ceiling per step. Zero disables it and leaves
	// MaxPolls as the only bound.
	Timeout time.Duration
}

// DefaultPollConfig returns the standard two-tier polling configuration.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxPolls:      DefaultMaxPolls,
		FirstInterval: DefaultFirstInterval,
		Interval:      DefaultInterval,
	}
}

// Validate reports configuration values that cannot drive a poll loop.
func (c PollConfig) Validate() error {
	if c.MaxPolls < 1 {
		return fmt.Errorf("max polls must be at least 1, got %d", c.MaxPolls)
	}
	if c.FirstInterval < 0 {
		return fmt.Errorf("first polling interval must not be negative, got %s", c.FirstInterval)
	}
	if c.Interval < 0 {
		return fmt.Errorf("polling interval must not be negative, got %s", c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// IntervalAfter returns the wait that follows the given number of completed
// reads: FirstInterval after the first, Interval after any other.
func (c PollConfig) IntervalAfter(pollCount int) time.Duration {
	if pollCount == 1 {
		return c.FirstInterval
	}
	return c.Interval
}

// PollState is a state of the polling state machine.
type PollState string

// Poll states. Pending and Polling are transient; the rest are outcomes.
const (
	PollPending  PollState = "pending"
	PollPolling  PollState = "polling"
	PollDone     PollState = "done"
	PollTimedOut PollState = "timed_out"
	PollStopped  PollState = "stopped"
	PollFailed   PollState = "failed"
)

// IsTerminal reports whether s is an outcome.
func (s PollState) IsTerminal() bool {
	switch s {
	case PollDone, PollTimedOut, PollStopped, PollFailed:
		return true
	default:
		return false
	}
}

// PollResult is the outcome of [Poller.Poll].
type PollResult struct {
	// State is the final state: done, timed_out, stopped or failed.
	State PollState

	// Session is the last successful read, or nil if none succeeded.
	Session *devin.Session

	// Result is the message before the last one in the final read.
	Result string

	// SleepToken reports whether the final read ended with the sleep token.
	SleepToken bool

	// PollsCount is the number of reads performed, counting the final one.
	PollsCount int

	// Err holds the read error for the failed state.
	Err error

	// Elapsed is the wall-clock time spent polling.
	Elapsed time.Duration
}

// SessionReader reads a session's current state.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*devin.Session, error)
}

// SleepFunc waits for d or until ctx is done or stop is closed. It returns
// nil when the full duration elapsed.
type SleepFunc func(ctx context.Context, d time.Duration, stop <-chan struct{}) error

// errStopRequested is returned by a SleepFunc when stop was closed.
var errStopRequested = errors.New("stop requested")

func sleepContext(ctx context.Context, d time.Duration, stop <-chan struct{}) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return errStopRequested
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return errStopRequested
	case <-timer.C:
		return nil
	}
}

// Poller drives the session polling state machine.
type Poller struct {
	client   SessionReader
	sleep    SleepFunc
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// NewPoller creates a Poller reading sessions from client.
func NewPoller(client SessionReader, opts ...Option) *Poller {
	o := applyOptions(opts)
	return &Poller{
		client:   client,
		sleep:    o.sleep,
		now:      o.now,
		logger:   o.logger,
		observer: o.observer,
	}
}

// Poll reads the session until it is done or a bound is reached.
//
// A read is done when the transcript's last message is exactly
// [SleepToken], or when the vendor status classifies as terminal. After an
// unfinished read, or a read that failed with a transient error, Poll waits
// [PollConfig.IntervalAfter] and reads again, up to cfg.MaxPolls reads. An
// authentication failure ends polling in the failed state. The token and
// ctx are checked before each read and during each wait; either one ends
// polling in the stopped state.
//
// Poll never returns an error; the outcome is in [PollResult.State].
func (p *Poller) Poll(ctx context.Context, sessionID string, cfg PollConfig, token *CancelToken) PollResult {
	if cfg.MaxPolls < 1 {
		cfg.MaxPolls = DefaultMaxPolls
	}

	start := p.now()
	pollCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	res := PollResult{State: PollPending}
	finish := func(state PollState, polls int) PollResult {
		res.State = state
		res.PollsCount = polls
		res.Elapsed = p.now().Sub(start)
		return res
	}

	pollCount := 0
	for pollCount < cfg.MaxPolls {
		if state, stop := p.interrupted(ctx, pollCtx, token); stop {
			return finish(state, pollCount)
		}
		res.State = PollPolling

		session, err := p.client.GetSession(pollCtx, sessionID)
		if err != nil {
			if state, stop := p.interrupted(ctx, pollCtx, token); stop {
				return finish(state, pollCount)
			}
			if devin.IsFatal(err) {
				p.logger.Error("session polling failed", "session_id", sessionID, "error", err)
				res.Err = err
				return finish(PollFailed, pollCount+1)
			}
			if devin.IsRateLimited(err) {
				p.logger.Warn("session poll rate limited", "session_id", sessionID, "attempt", pollCount+1)
			} else {
				p.logger.Warn("session poll error", "session_id", sessionID, "attempt", pollCount+1, "error", err)
			}
		} else {
			res.Session = session
			res.SleepToken = session.MessageCount > 0 && session.LastMessage() == SleepToken
			if res.SleepToken || session.IsCompleted() {
				res.Result = session.MessageBeforeLast()
				return finish(PollDone, pollCount+1)
			}
		}

		pollCount++
		if pollCount >= cfg.MaxPolls {
			break
		}

		wait := cfg.IntervalAfter(pollCount)
		statusValue := ""
		if session != nil {
			statusValue = session.Status
		}
		p.logger.Debug("session not done",
			"session_id", sessionID,
			"attempt", pollCount,
			"max_polls", cfg.MaxPolls,
			"status", statusValue,
			"next_poll_in", wait)
		p.observer.PollAttempt(PollEvent{
			SessionID: sessionID,
			Attempt:   pollCount,
			MaxPolls:  cfg.MaxPolls,
			Status:    statusValue,
			Err:       err,
			NextWait:  wait,
			Elapsed:   p.now().Sub(start),
		})

		if err := p.sleep(pollCtx, wait, token.Done()); err != nil {
			if state, stop := p.interrupted(ctx, pollCtx, token); stop {
				return finish(state, pollCount)
			}
			return finish(PollStopped, pollCount)
		}
	}

	p.logger.Warn("session polling timed out", "session_id", sessionID, "polls", pollCount)
	return finish(PollTimedOut, pollCount)
}

// interrupted reports whether polling must end before the next read, and in
// which state. The caller's ctx and the token mean stopped; the per-step
// deadline means timed out.
func (p *Poller) interrupted(ctx, pollCtx context.Context, token *CancelToken) (PollState, bool) {
	if token.Cancelled() || ctx.Err() != nil {
		return PollStopped, true
	}
	if pollCtx.Err() != nil {
		return PollTimedOut, true
	}
	return "", false
}
