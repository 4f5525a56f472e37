// Package workflow parses markdown workflow documents for devinflow.
//
// A workflow document is an ordered list of "## Step N: Title" sections. Each
// section carries declarative "- Key: value" lines that describe the remote
// session to create for that step: the prompt, an optional playbook, an
// optional handoff instruction, an optional repository, and whether the step
// consumes the output of the step before it.
//
// Key types:
//   - [Document] is the parse result: overview text plus ordered steps
//   - [Step] is a single normalized workflow step
//   - [ValidationResult] holds the errors and warnings from [ValidateWorkflow]
//   - [Summary] is a compact digest produced by [Summarize]
//
// Parsing is a pure function of its input. [Parse] and [ValidateWorkflow] hold
// no state and are safe to call concurrently.
package workflow

import "strings"

// PlaybookPrefix is the literal prefix every playbook id must carry.
const PlaybookPrefix = "playbook-"

// RepoNone is the sentinel repo value that explicitly disables a repository
// for a step and stops repo inheritance for the steps after it.
const RepoNone = "none"

// Step is a single parsed workflow step.
//
// Optional string fields use the empty string for "absent". Repo additionally
// distinguishes [RepoNone] from absent.
type Step struct {
	// StepNumber is the 1-based position of the step in parse order.
	// It is never taken from the digits in the heading.
	StepNumber int `json:"step_number" yaml:"step_number"`

	// Title is the heading text after "Step N:", trimmed.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Playbook is the remote playbook id, always carrying [PlaybookPrefix].
	Playbook string `json:"playbook,omitempty" yaml:"playbook,omitempty"`

	// Prompt is the step's main instruction. Always non-empty after parsing.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Handoff tells the agent what summary to produce for the next step.
	Handoff string `json:"handoff,omitempty" yaml:"handoff,omitempty"`

	// Repo is a URL, a short identifier expanded against the base URL,
	// [RepoNone], or empty for "inherit or none".
	Repo string `json:"repo,omitempty" yaml:"repo,omitempty"`

	// RelyPreviousStep reports whether the step wants the previous step's output.
	RelyPreviousStep bool `json:"rely_previous_step" yaml:"rely_previous_step"`

	// RawContent is the section body without its heading, kept for diagnostics.
	RawContent string `json:"raw_content" yaml:"raw_content"`
}

// HasPlaybook reports whether the step declares a playbook.
func (s Step) HasPlaybook() bool { return s.Playbook != "" }

// HasHandoff reports whether the step declares a handoff instruction.
func (s Step) HasHandoff() bool { return s.Handoff != "" }

// HasRepo reports whether the step declares any repo value, including [RepoNone].
func (s Step) HasRepo() bool { return s.Repo != "" }

// IsRepoNone reports whether the step explicitly opts out of a repository.
func (s Step) IsRepoNone() bool {
	return strings.EqualFold(strings.TrimSpace(s.Repo), RepoNone)
}

// Document is the result of parsing a workflow markdown document.
type Document struct {
	// Overview is the text under the "## Overview" heading, if any.
	Overview string `json:"overview" yaml:"overview"`

	// Steps are the parsed steps in document order.
	Steps []Step `json:"steps" yaml:"steps"`
}
