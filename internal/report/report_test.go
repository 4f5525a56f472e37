package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devinflow/internal/lifecycle"
	"devinflow/internal/runner"
)

func sampleSummary() *runner.ExecutionSummary {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	handoff := "done"
	return &runner.ExecutionSummary{
		ExecutionID:          "exec-1",
		Success:              false,
		TotalSteps:           2,
		SuccessfulSteps:      1,
		FailedSteps:          1,
		StepsWithHandoffs:    1,
		TotalExecutionTimeMs: 4200,
		AverageStepTimeMs:    1500.5,
		SessionIDs:           []string{"devin-a"},
		CompletionRate:       50,
		WorkflowConfig: runner.WorkflowConfig{
			MockMode:             true,
			PollingInterval:      10,
			FirstPollingInterval: 90,
			MaxPolls:             9999,
		},
		StepResults: []lifecycle.StepResult{
			{
				StepNumber:    1,
				Success:       true,
				Outcome:       lifecycle.PollDone,
				SessionID:     "devin-a",
				MainResult:    "done",
				HandoffResult: &handoff,
				CompletedAt:   at,
				SessionStatus: "completed",
			},
			{
				StepNumber:    2,
				Outcome:       lifecycle.PollTimedOut,
				SessionID:     "devin-b",
				MainResult:    lifecycle.MainResultTimedOut,
				CompletedAt:   at,
				SessionStatus: lifecycle.SessionStatusTimeout,
				Error:         "session polling timed out after 3 polls",
			},
		},
		ExecutedAt: at,
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"out.json", FormatJSON},
		{"out.yaml", FormatYAML},
		{"out.YML", FormatYAML},
		{"out.txt", FormatJSON},
		{"out", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForPath(tt.path))
		})
	}
}

func TestWriteAndLoad(t *testing.T) {
	for _, name := range []string{"summary.json", "summary.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "dir", name)
			want := sampleSummary()

			require.NoError(t, Write(path, want))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want.ExecutionID, got.ExecutionID)
			assert.Equal(t, want.SessionIDs, got.SessionIDs)
			assert.Equal(t, want.WorkflowConfig, got.WorkflowConfig)
			assert.InDelta(t, want.AverageStepTimeMs, got.AverageStepTimeMs, 0.001)
			assert.True(t, want.ExecutedAt.Equal(got.ExecutedAt))
			require.Len(t, got.StepResults, 2)
			assert.Equal(t, lifecycle.PollTimedOut, got.StepResults[1].Outcome)
			require.NotNil(t, got.StepResults[0].HandoffResult)
			assert.Equal(t, "done", *got.StepResults[0].HandoffResult)
			assert.Nil(t, got.StepResults[1].HandoffResult)
		})
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")

	require.NoError(t, Write(path, sampleSummary()))
	require.NoError(t, Write(path, sampleSummary()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "summary.json", entries[0].Name())
}

func TestMarshal_JSONFieldNames(t *testing.T) {
	data, err := Marshal(sampleSummary(), FormatJSON)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"completion_rate": 50`)
	assert.Contains(t, out, `"main_result": "Session polling timed out"`)
	assert.Contains(t, out, `"handoff_result": "done"`)
	assert.NotContains(t, out, `"error": ""`)
}

func TestMarshal_UnsupportedFormat(t *testing.T) {
	_, err := Marshal(sampleSummary(), Format("xml"))
	assert.Error(t, err)
}

func TestWrite_EmptyPath(t *testing.T) {
	assert.ErrorIs(t, Write("", sampleSummary()), ErrEmptyPath)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read report")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse report")
}
