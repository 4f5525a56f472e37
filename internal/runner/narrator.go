package runner

import (
	"time"

	"devinflow/internal/lifecycle"
	"devinflow/internal/output"
)

// narrator forwards executor events to a printer.
type narrator struct {
	lifecycle.NopObserver
	printer output.Printer
}

func newNarrator(p output.Printer) *narrator {
	return &narrator{printer: p}
}

func (n *narrator) StepStarted(e lifecycle.StepEvent) {
	n.printer.StepStart(e.Index, e.TotalSteps, lifecycle.SessionTitle(e.Step), e.RepoURL)
}

func (n *narrator) SessionCreated(e lifecycle.SessionEvent) {
	n.printer.SessionCreated(e.SessionID, e.URL)
}

func (n *narrator) PollAttempt(e lifecycle.PollEvent) {
	if e.NextWait <= 0 {
		return
	}
	status := e.Status
	if e.Err != nil {
		status = "read failed"
	}
	n.printer.PollWaiting(e.Attempt, e.MaxPolls, status, e.NextWait)
}

func (n *narrator) StepFinished(r lifecycle.StepResult) {
	n.printer.StepResult(r)
}

func (n *narrator) WorkflowFinished(results []lifecycle.StepResult, elapsed time.Duration) {
	n.printer.Text("Ran %d step(s) in %s", len(results), elapsed.Round(time.Millisecond))
}
