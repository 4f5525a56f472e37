package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"devinflow/internal/lifecycle"
	"devinflow/internal/workflow"
)

func newTestPrinter() (*DefaultPrinter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewPrinterWithWriter(buf), buf
}

func TestPrinter_WorkflowStart(t *testing.T) {
	p, buf := newTestPrinter()

	p.WorkflowStart(RunInfo{
		ExecutionID:   "exec-1",
		MaskedAPIKey:  "apk_user_a...",
		MockMode:      true,
		APIURL:        "http://localhost:3001/v1",
		Interval:      10 * time.Second,
		FirstInterval: 90 * time.Second,
		MaxPolls:      9999,
	})

	out := buf.String()
	assert.Contains(t, out, "Starting One-Click Workflow Execution")
	assert.Contains(t, out, "exec-1")
	assert.Contains(t, out, "apk_user_a...")
	assert.Contains(t, out, "http://localhost:3001/v1")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "9999")
	assert.NotContains(t, out, "Step Timeout")
}

func TestPrinter_WorkflowStart_NoKey(t *testing.T) {
	p, buf := newTestPrinter()
	p.WorkflowStart(RunInfo{Timeout: time.Minute})

	assert.Contains(t, buf.String(), "Not set")
	assert.Contains(t, buf.String(), "Step Timeout")
}

func TestPrinter_WorkflowSummary(t *testing.T) {
	p, buf := newTestPrinter()

	p.WorkflowSummary(workflow.Summarize([]workflow.Step{
		{StepNumber: 1, Title: "Audit", Prompt: "abc", Playbook: "playbook-x", Handoff: "h"},
		{StepNumber: 2, Prompt: "de", RelyPreviousStep: true},
	}))

	out := buf.String()
	assert.Contains(t, out, "Workflow Summary")
	assert.Contains(t, out, "1. Audit")
	assert.Contains(t, out, "[3 chars]")
	assert.Contains(t, out, "playbook, handoff")
	assert.Contains(t, out, "2. (untitled)")
	assert.Contains(t, out, "relies")
}

func TestPrinter_StepLifecycle(t *testing.T) {
	p, buf := newTestPrinter()

	p.StepStart(1, 3, "Step 1: Audit", "https://dev.azure.com/acme/_git/api")
	p.SessionCreated("devin-abc", "https://app.devin.ai/sessions/abc")
	p.PollWaiting(1, 9999, "running", 90*time.Second)
	p.PollWaiting(2, 9999, "", 10*time.Second)

	out := buf.String()
	assert.Contains(t, out, "[1/3] Step 1: Audit")
	assert.Contains(t, out, "https://dev.azure.com/acme/_git/api")
	assert.Contains(t, out, "Session devin-abc created")
	assert.Contains(t, out, "https://app.devin.ai/sessions/abc")
	assert.Contains(t, out, "poll 1/9999: running, next check in 1m30s")
	assert.Contains(t, out, "poll 2/9999: unknown, next check in 10s")
}

func TestPrinter_StepResult(t *testing.T) {
	tests := []struct {
		name     string
		result   lifecycle.StepResult
		contains []string
		excludes []string
	}{
		{
			name: "success shows result",
			result: lifecycle.StepResult{
				StepNumber: 1, Success: true, MainResult: "All tests pass",
				ExecutionTimeMs: 1500, PollsCount: 4,
			},
			contains: []string{"✓ Step 1 completed", "1.5s", "4 polls", "All tests pass"},
		},
		{
			name: "failure shows error",
			result: lifecycle.StepResult{
				StepNumber: 2, Outcome: lifecycle.PollTimedOut,
				MainResult: lifecycle.MainResultTimedOut,
				Error:      "session polling timed out after 3 polls",
			},
			contains: []string{"✗ Step 2 failed: session polling timed out after 3 polls"},
			excludes: []string{lifecycle.MainResultTimedOut},
		},
		{
			name:     "failure without error shows outcome",
			result:   lifecycle.StepResult{StepNumber: 3, Outcome: lifecycle.PollStopped},
			contains: []string{"✗ Step 3 failed: stopped"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := newTestPrinter()
			p.StepResult(tt.result)
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestPrinter_ExecutionComplete(t *testing.T) {
	p, buf := newTestPrinter()

	p.ExecutionComplete(Completion{
		TotalSteps:     4,
		CompletedSteps: 3,
		CompletionRate: 75,
		FailedSteps:    []int{2},
		Elapsed:        3 * time.Minute,
	})

	out := buf.String()
	assert.Contains(t, out, "Execution Complete!")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "3/4")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "Failed Steps")
}

func TestPrinter_ExecutionComplete_Success(t *testing.T) {
	p, buf := newTestPrinter()
	p.ExecutionComplete(Completion{Success: true, TotalSteps: 2, CompletedSteps: 2, CompletionRate: 100})

	assert.Contains(t, buf.String(), "SUCCESS")
	assert.Contains(t, buf.String(), "100.0%")
	assert.NotContains(t, buf.String(), "Failed Steps")
}

func TestPrinter_ValidationResult(t *testing.T) {
	p, buf := newTestPrinter()
	p.ValidationResult(false, []string{"Step 1: Missing prompt"}, []string{"Step 2 relies on previous step but step 1 has no handoff"})

	out := buf.String()
	assert.Contains(t, out, "Workflow is invalid")
	assert.Contains(t, out, "error: Step 1: Missing prompt")
	assert.Contains(t, out, "warning: Step 2 relies")
}

func TestPrinter_TextAndError(t *testing.T) {
	p, buf := newTestPrinter()
	p.Text("hello %s", "world")
	p.Error("boom %d", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "hello world", lines[0])
	assert.Contains(t, lines[1], "boom 7")
}

func TestPrinter_MarkdownDisabledIsVerbatim(t *testing.T) {
	p, buf := newTestPrinter()
	p.Markdown("# Heading\n\n**bold**")
	assert.Equal(t, "# Heading\n\n**bold**\n", buf.String())
}

func TestPrinter_MarkdownEnabled(t *testing.T) {
	p, buf := newTestPrinter()
	md := p.WithMarkdown(MarkdownOptions{Enabled: true, Style: "ascii", WordWrap: 60})

	md.Markdown("# Heading\n\nSome **bold** text")

	out := buf.String()
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "bold")
	assert.NotEqual(t, "# Heading\n\nSome **bold** text\n", out)
}

func TestMarkdownRenderer_BlankInput(t *testing.T) {
	r := newMarkdownRenderer(MarkdownOptions{Enabled: true})
	assert.Equal(t, "  ", r.render("  "))
	assert.Equal(t, "dark", r.opts.Style)
	assert.Equal(t, 100, r.opts.WordWrap)
}
