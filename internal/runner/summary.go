package runner

import (
	"errors"
	"strings"
	"time"

	"devinflow/internal/lifecycle"
	"devinflow/internal/output"
	"devinflow/internal/workflow"
)

var (
	// ErrNoSteps is reported for a document without any step headings.
	ErrNoSteps = errors.New("Workflow contains no valid steps")

	// ErrCancelled is reported when an execution was stopped by request.
	ErrCancelled = errors.New("workflow execution cancelled")
)

// ExecutionSummary is the outcome of [Runner.StartWorkflow].
//
// On an unrecoverable error before execution (missing key, invalid
// document) Success is false, Error is set and the step fields are zero.
type ExecutionSummary struct {
	ExecutionID          string                 `json:"execution_id" yaml:"execution_id"`
	Success              bool                   `json:"success" yaml:"success"`
	Error                string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Cancelled            bool                   `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	TotalSteps           int                    `json:"total_steps" yaml:"total_steps"`
	SuccessfulSteps      int                    `json:"successful_steps" yaml:"successful_steps"`
	FailedSteps          int                    `json:"failed_steps" yaml:"failed_steps"`
	StepsWithHandoffs    int                    `json:"steps_with_handoffs" yaml:"steps_with_handoffs"`
	TotalExecutionTimeMs int64                  `json:"total_execution_time_ms" yaml:"total_execution_time_ms"`
	AverageStepTimeMs    float64                `json:"average_step_time_ms" yaml:"average_step_time_ms"`
	SessionIDs           []string               `json:"session_ids" yaml:"session_ids"`
	CompletionRate       float64                `json:"completion_rate" yaml:"completion_rate"`
	WorkflowConfig       WorkflowConfig         `json:"workflow_config" yaml:"workflow_config"`
	StepResults          []lifecycle.StepResult `json:"step_results" yaml:"step_results"`
	ExecutedAt           time.Time              `json:"executed_at" yaml:"executed_at"`
}

// FailedStepNumbers returns the step numbers of unsuccessful steps.
func (s *ExecutionSummary) FailedStepNumbers() []int {
	var nums []int
	for _, r := range s.StepResults {
		if !r.Success {
			nums = append(nums, r.StepNumber)
		}
	}
	return nums
}

// Completion returns the tally printed when an execution ends.
func (s *ExecutionSummary) Completion() output.Completion {
	return output.Completion{
		Success:        s.Success,
		TotalSteps:     s.TotalSteps,
		CompletedSteps: s.SuccessfulSteps,
		CompletionRate: s.CompletionRate,
		FailedSteps:    s.FailedStepNumbers(),
		Elapsed:        time.Duration(s.TotalExecutionTimeMs) * time.Millisecond,
		Error:          s.Error,
	}
}

// buildSummary aggregates step results. Session ids and the average step
// time cover successful steps only.
func buildSummary(opts Options, results []lifecycle.StepResult, elapsed time.Duration, at time.Time) *ExecutionSummary {
	s := &ExecutionSummary{
		ExecutionID:          opts.ExecutionID,
		TotalSteps:           len(results),
		TotalExecutionTimeMs: elapsed.Milliseconds(),
		SessionIDs:           []string{},
		WorkflowConfig:       opts.workflowConfig(),
		StepResults:          results,
		ExecutedAt:           at.UTC(),
	}
	if s.StepResults == nil {
		s.StepResults = []lifecycle.StepResult{}
	}

	var successTime int64
	for _, r := range results {
		if !r.Success {
			s.FailedSteps++
			continue
		}
		s.SuccessfulSteps++
		successTime += r.ExecutionTimeMs
		s.SessionIDs = append(s.SessionIDs, r.SessionID)
		if r.Handoff() != "" {
			s.StepsWithHandoffs++
		}
	}

	if s.SuccessfulSteps > 0 {
		s.AverageStepTimeMs = float64(successTime) / float64(s.SuccessfulSteps)
	}
	if s.TotalSteps > 0 {
		s.CompletionRate = float64(s.SuccessfulSteps) / float64(s.TotalSteps) * 100
	}
	s.Success = s.FailedSteps == 0
	return s
}

func failedSummary(opts Options, err error, elapsed time.Duration, at time.Time) *ExecutionSummary {
	return &ExecutionSummary{
		ExecutionID:          opts.ExecutionID,
		Success:              false,
		Error:                err.Error(),
		TotalExecutionTimeMs: elapsed.Milliseconds(),
		SessionIDs:           []string{},
		WorkflowConfig:       opts.workflowConfig(),
		StepResults:          []lifecycle.StepResult{},
		ExecutedAt:           at.UTC(),
	}
}

// ValidationReport is the outcome of [ValidateWorkflow].
type ValidationReport struct {
	Valid    bool              `json:"valid" yaml:"valid"`
	Errors   []string          `json:"errors" yaml:"errors"`
	Warnings []string          `json:"warnings" yaml:"warnings"`
	Overview string            `json:"overview,omitempty" yaml:"overview,omitempty"`
	Steps    []workflow.Step   `json:"steps" yaml:"steps"`
	Summary  *workflow.Summary `json:"summary" yaml:"summary"`
}

// ValidateWorkflow parses and validates markdown without any network calls.
// It is safe for concurrent use.
func ValidateWorkflow(markdown string) *ValidationReport {
	doc, err := workflow.Parse(markdown)
	if err != nil {
		return &ValidationReport{
			Errors:   []string{err.Error()},
			Warnings: []string{},
			Steps:    []workflow.Step{},
		}
	}

	result := workflow.ValidateWorkflow(doc.Steps)
	report := &ValidationReport{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
		Overview: doc.Overview,
		Steps:    doc.Steps,
	}
	if len(doc.Steps) == 0 {
		report.Valid = false
		report.Errors = append(report.Errors, ErrNoSteps.Error())
		return report
	}
	if report.Valid {
		summary := workflow.Summarize(doc.Steps)
		report.Summary = &summary
	}
	return report
}

func joinMessages(msgs []string) string {
	return strings.Join(msgs, ", ")
}
