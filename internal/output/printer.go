// Package output renders workflow progress for the terminal.
//
// The [Printer] interface narrates an execution: the run configuration, the
// parsed workflow, each step and its polls, and the final tally. Styling uses
// lipgloss; agent messages can be rendered as markdown with glamour.
//
// Use [NewPrinter] for stdout and [NewPrinterWithWriter] to capture output in
// tests.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"devinflow/internal/lifecycle"
	"devinflow/internal/workflow"
)

// RunInfo is the configuration echoed when an execution starts.
type RunInfo struct {
	ExecutionID   string
	MaskedAPIKey  string
	MockMode      bool
	APIURL        string
	RepoBaseURL   string
	Interval      time.Duration
	FirstInterval time.Duration
	MaxPolls      int
	Timeout       time.Duration
}

// Completion is the tally printed when an execution ends.
type Completion struct {
	Success        bool
	TotalSteps     int
	CompletedSteps int
	CompletionRate float64
	FailedSteps    []int
	Elapsed        time.Duration
	Error          string
}

// Printer narrates workflow execution.
type Printer interface {
	WorkflowStart(info RunInfo)
	WorkflowSummary(s workflow.Summary)
	StepStart(index, total int, title, repoURL string)
	SessionCreated(sessionID, url string)
	PollWaiting(attempt, maxPolls int, status string, next time.Duration)
	StepResult(r lifecycle.StepResult)
	ExecutionComplete(c Completion)
	ValidationResult(valid bool, errs, warnings []string)
	Markdown(text string)
	Text(format string, args ...any)
	Error(format string, args ...any)
}

// DefaultPrinter writes styled output to a writer.
type DefaultPrinter struct {
	out      io.Writer
	markdown *markdownRenderer
}

// NewPrinter creates a printer writing to stdout with markdown rendering
// disabled.
func NewPrinter() *DefaultPrinter {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a printer writing to w with markdown
// rendering disabled.
func NewPrinterWithWriter(w io.Writer) *DefaultPrinter {
	return &DefaultPrinter{
		out:      w,
		markdown: newMarkdownRenderer(MarkdownOptions{}),
	}
}

// WithMarkdown returns a copy of p that renders agent messages as markdown.
func (p *DefaultPrinter) WithMarkdown(opts MarkdownOptions) *DefaultPrinter {
	return &DefaultPrinter{
		out:      p.out,
		markdown: newMarkdownRenderer(opts),
	}
}

func (p *DefaultPrinter) println(s string) {
	fmt.Fprintln(p.out, s)
}

func field(label string, value any) string {
	return labelStyle.Render(fmt.Sprintf("%-24s", label+":")) + fmt.Sprint(value)
}

// WorkflowStart prints the header and the effective configuration.
func (p *DefaultPrinter) WorkflowStart(info RunInfo) {
	lines := []string{titleStyle.Render("Starting One-Click Workflow Execution")}
	if info.ExecutionID != "" {
		lines = append(lines, field("Execution", info.ExecutionID))
	}

	apiKey := info.MaskedAPIKey
	if apiKey == "" {
		apiKey = "Not set"
	}
	lines = append(lines,
		field("API Key", apiKey),
		field("Mock Mode", info.MockMode),
		field("API URL", info.APIURL),
		field("Repo Base URL", orDash(info.RepoBaseURL)),
		field("First Polling Interval", info.FirstInterval),
		field("Polling Interval", info.Interval),
		field("Max Polls", info.MaxPolls),
	)
	if info.Timeout > 0 {
		lines = append(lines, field("Step Timeout", info.Timeout))
	}

	p.println(headerBoxStyle.Render(strings.Join(lines, "\n")))
}

// WorkflowSummary prints the parsed workflow digest.
func (p *DefaultPrinter) WorkflowSummary(s workflow.Summary) {
	p.println(titleStyle.Render("Workflow Summary"))
	p.println(field("Total Steps", s.TotalSteps))
	p.println(field("With Playbooks", s.StepsWithPlaybooks))
	p.println(field("With Handoffs", s.StepsWithHandoffs))
	p.println(field("With Repos", s.StepsWithRepos))
	p.println(field("Relying On Previous", s.StepsRelyingOnPrevious))

	for _, d := range s.Steps {
		var flags []string
		if d.HasPlaybook {
			flags = append(flags, "playbook")
		}
		if d.HasHandoff {
			flags = append(flags, "handoff")
		}
		if d.HasRepo {
			flags = append(flags, "repo")
		}
		if d.ReliesOnPrevious {
			flags = append(flags, "relies")
		}
		title := d.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("  %d. %s %s", d.StepNumber, title,
			mutedStyle.Render(fmt.Sprintf("[%d chars]", d.PromptLength)))
		if len(flags) > 0 {
			line += " " + mutedStyle.Render(strings.Join(flags, ", "))
		}
		p.println(line)
	}
	p.println("")
}

// StepStart prints the boxed step banner.
func (p *DefaultPrinter) StepStart(index, total int, title, repoURL string) {
	body := fmt.Sprintf("[%d/%d] %s", index, total, title)
	if repoURL != "" {
		body += "\n" + field("Repo", repoURL)
	}
	p.println(stepBoxStyle.Render(body))
}

// SessionCreated prints the new session and its web URL.
func (p *DefaultPrinter) SessionCreated(sessionID, url string) {
	p.println(fmt.Sprintf("● Session %s created", sessionID))
	if url != "" {
		p.println("  " + linkStyle.Render(url))
	}
}

// PollWaiting prints one unfinished poll and the wait that follows.
func (p *DefaultPrinter) PollWaiting(attempt, maxPolls int, status string, next time.Duration) {
	if status == "" {
		status = "unknown"
	}
	p.println(mutedStyle.Render(fmt.Sprintf("  poll %d/%d: %s, next check in %s", attempt, maxPolls, status, next)))
}

// StepResult prints a step outcome and its result message.
func (p *DefaultPrinter) StepResult(r lifecycle.StepResult) {
	duration := (time.Duration(r.ExecutionTimeMs) * time.Millisecond).Round(time.Millisecond)
	if r.Success {
		p.println(successStyle.Render(fmt.Sprintf("✓ Step %d completed", r.StepNumber)) +
			mutedStyle.Render(fmt.Sprintf(" | %s | %d polls", duration, r.PollsCount)))
	} else {
		msg := r.Error
		if msg == "" {
			msg = string(r.Outcome)
		}
		p.println(errorStyle.Render(fmt.Sprintf("✗ Step %d failed: %s", r.StepNumber, msg)) +
			mutedStyle.Render(fmt.Sprintf(" | %s | %d polls", duration, r.PollsCount)))
	}

	if r.Success && r.MainResult != "" {
		p.println(p.markdown.render(r.MainResult))
	}
	p.println("")
}

// ExecutionComplete prints the final tally.
func (p *DefaultPrinter) ExecutionComplete(c Completion) {
	status := successStyle.Render("✓ SUCCESS")
	if !c.Success {
		status = errorStyle.Render("✗ FAILED")
	}

	lines := []string{
		titleStyle.Render("Execution Complete!"),
		field("Status", status),
		field("Steps", fmt.Sprintf("%d/%d", c.CompletedSteps, c.TotalSteps)),
		field("Completion Rate", fmt.Sprintf("%.1f%%", c.CompletionRate)),
		field("Duration", c.Elapsed.Round(time.Millisecond)),
	}
	if len(c.FailedSteps) > 0 {
		nums := make([]string, len(c.FailedSteps))
		for i, n := range c.FailedSteps {
			nums[i] = fmt.Sprint(n)
		}
		lines = append(lines, field("Failed Steps", strings.Join(nums, ", ")))
	}
	if c.Error != "" {
		lines = append(lines, field("Error", errorStyle.Render(c.Error)))
	}

	p.println(headerBoxStyle.Render(strings.Join(lines, "\n")))
}

// ValidationResult prints a validation verdict with its findings.
func (p *DefaultPrinter) ValidationResult(valid bool, errs, warnings []string) {
	if valid {
		p.println(successStyle.Render("✓ Workflow is valid"))
	} else {
		p.println(errorStyle.Render("✗ Workflow is invalid"))
	}
	for _, e := range errs {
		p.println(errorStyle.Render("  error: ") + e)
	}
	for _, w := range warnings {
		p.println(warningStyle.Render("  warning: ") + w)
	}
}

// Markdown prints text, rendered when markdown is enabled.
func (p *DefaultPrinter) Markdown(text string) {
	p.println(p.markdown.render(text))
}

// Text prints a plain formatted line.
func (p *DefaultPrinter) Text(format string, args ...any) {
	p.println(fmt.Sprintf(format, args...))
}

// Error prints a formatted error line.
func (p *DefaultPrinter) Error(format string, args ...any) {
	p.println(errorStyle.Render("Error: ") + fmt.Sprintf(format, args...))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
