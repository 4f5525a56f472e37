package workflow

import (
	"fmt"
	"strings"
)

// ValidationResult holds the outcome of [ValidateWorkflow].
//
// Errors block execution. Warnings are informational only.
type ValidationResult struct {
	Valid    bool     `json:"valid" yaml:"valid"`
	Errors   []string `json:"errors" yaml:"errors"`
	Warnings []string `json:"warnings" yaml:"warnings"`
}

// ValidateWorkflow checks a parsed step list for structural problems.
//
// Errors: a step without a prompt, a first step that relies on a previous
// step, a playbook without the [PlaybookPrefix]. Warnings: a whitespace-only
// handoff, a step that relies on the previous step but declares no handoff.
func ValidateWorkflow(steps []Step) ValidationResult {
	errs := []string{}
	warnings := []string{}

	for i, step := range steps {
		if strings.TrimSpace(step.Prompt) == "" {
			errs = append(errs, fmt.Sprintf("Step %d: Missing required prompt", step.StepNumber))
		}

		if i == 0 && step.RelyPreviousStep {
			errs = append(errs, fmt.Sprintf("Step %d: Cannot rely on previous step as it's the first step", step.StepNumber))
		}

		if step.Playbook != "" && !strings.HasPrefix(step.Playbook, PlaybookPrefix) {
			errs = append(errs, fmt.Sprintf("Step %d: Playbook ID should start with '%s'", step.StepNumber, PlaybookPrefix))
		}

		if step.Handoff != "" && strings.TrimSpace(step.Handoff) == "" {
			warnings = append(warnings, fmt.Sprintf("Step %d: Empty handoff instruction", step.StepNumber))
		}

		if step.RelyPreviousStep && strings.TrimSpace(step.Handoff) == "" {
			warnings = append(warnings, fmt.Sprintf("Step %d: Relies on previous step but has no handoff instruction", step.StepNumber))
		}
	}

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// StepDigest is the per-step part of a [Summary].
type StepDigest struct {
	StepNumber       int    `json:"step_number" yaml:"step_number"`
	Title            string `json:"title,omitempty" yaml:"title,omitempty"`
	HasPlaybook      bool   `json:"has_playbook" yaml:"has_playbook"`
	HasHandoff       bool   `json:"has_handoff" yaml:"has_handoff"`
	HasRepo          bool   `json:"has_repo" yaml:"has_repo"`
	ReliesOnPrevious bool   `json:"relies_on_previous" yaml:"relies_on_previous"`
	PromptLength     int    `json:"prompt_length" yaml:"prompt_length"`
}

// Summary is a compact description of a workflow, used by validate output
// and verbose narration.
type Summary struct {
	TotalSteps             int          `json:"total_steps" yaml:"total_steps"`
	StepsWithPlaybooks     int          `json:"steps_with_playbooks" yaml:"steps_with_playbooks"`
	StepsWithHandoffs      int          `json:"steps_with_handoffs" yaml:"steps_with_handoffs"`
	StepsWithRepos         int          `json:"steps_with_repos" yaml:"steps_with_repos"`
	StepsRelyingOnPrevious int          `json:"steps_relying_on_previous" yaml:"steps_relying_on_previous"`
	Steps                  []StepDigest `json:"steps" yaml:"steps"`
}

// Summarize builds a [Summary] for the given steps.
func Summarize(steps []Step) Summary {
	s := Summary{
		TotalSteps: len(steps),
		Steps:      make([]StepDigest, 0, len(steps)),
	}
	for _, step := range steps {
		if step.HasPlaybook() {
			s.StepsWithPlaybooks++
		}
		if step.HasHandoff() {
			s.StepsWithHandoffs++
		}
		if step.HasRepo() {
			s.StepsWithRepos++
		}
		if step.RelyPreviousStep {
			s.StepsRelyingOnPrevious++
		}
		s.Steps = append(s.Steps, StepDigest{
			StepNumber:       step.StepNumber,
			Title:            step.Title,
			HasPlaybook:      step.HasPlaybook(),
			HasHandoff:       step.HasHandoff(),
			HasRepo:          step.HasRepo(),
			ReliesOnPrevious: step.RelyPreviousStep,
			PromptLength:     len(step.Prompt),
		})
	}
	return s
}
