package lifecycle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"devinflow/internal/workflow"
)

func TestBuildPrompt_WithHandoffRepoAndPreviousData(t *testing.T) {
	step := workflow.Step{
		StepNumber:       2,
		Prompt:           "Write docs",
		Handoff:          "Summarize docs",
		RelyPreviousStep: true,
	}

	got := BuildPrompt(step, "https://dev.azure.com/org/_git/repo", "Result A")

	want := "## Expected Output and Requirements\n" +
		"- Execute the tasks on the provided Tasks section systematically in the specified order\n" +
		"- Brief the achieved result that includes: \n Summarize docs\n" +
		"\n" + completionLine +
		"\n\n------\n\n" +
		"- Repo: https://dev.azure.com/org/_git/repo\n\n## Tasks\n" +
		"- Review and acknowledge the provided context from the previous step:\n\nResult A" +
		"\n\n------\n\n" +
		"Write docs" +
		"\n\n------"
	assert.Equal(t, want, got)
}

func TestBuildPrompt_GenericBriefWithoutRepo(t *testing.T) {
	step := workflow.Step{StepNumber: 1, Prompt: "Run tests"}

	got := BuildPrompt(step, "", "")

	want := "## Expected Output and Requirements\n" +
		"- Execute the tasks on the provided Tasks section systematically in the specified order\n" +
		"- Brief of the achieved result that includes:\n\n" +
		"  - Summary of completed tasks\n" +
		"  - Key outcomes and Expected Output and Requirements\n" +
		"  - Any important findings or decisions made\n" +
		"  - Next steps or recommendations\n" +
		"  - Technical details or artifacts created\n" +
		completionLine +
		"\n\n------\n\n## Tasks\n\n------\n\nRun tests\n\n------"
	assert.Equal(t, want, got)
}

func TestBuildPrompt_SectionOrder(t *testing.T) {
	step := workflow.Step{StepNumber: 2, Prompt: "MAIN PROMPT", RelyPreviousStep: true}
	got := BuildPrompt(step, "https://example.com/repo", "PRIOR DATA")

	expected := strings.Index(got, expectedOutputHeader)
	completion := strings.Index(got, `type exactly the word "sleep"`)
	repo := strings.Index(got, "- Repo: https://example.com/repo")
	tasks := strings.Index(got, tasksHeader)
	prior := strings.Index(got, "PRIOR DATA")
	body := strings.Index(got, "MAIN PROMPT")

	assert.True(t, expected == 0)
	assert.True(t, expected < completion)
	assert.True(t, completion < repo)
	assert.True(t, repo < tasks)
	assert.True(t, tasks < prior)
	assert.True(t, prior < body)
	assert.True(t, strings.HasSuffix(got, "\n\n"+promptSeparator))
	assert.Equal(t, 3, strings.Count(got, promptSeparator))
}

func TestBuildPrompt_PreviousDataHeadingRewritten(t *testing.T) {
	step := workflow.Step{StepNumber: 2, Prompt: "p", RelyPreviousStep: true}
	prior := "## Expected Output and Requirements\nfirst\n## Expected Output and Requirements\nsecond"

	got := BuildPrompt(step, "", prior)

	tasks := got[strings.Index(got, tasksHeader):]
	assert.Contains(t, tasks, "## Starting Point\nfirst\n## Expected Output and Requirements\nsecond")
	assert.True(t, strings.HasPrefix(got, expectedOutputHeader))
}

func TestBuildPrompt_NoPreviousDataWhenNotRelying(t *testing.T) {
	step := workflow.Step{StepNumber: 2, Prompt: "p", RelyPreviousStep: false}

	got := BuildPrompt(step, "", "should not appear")

	assert.NotContains(t, got, "should not appear")
	assert.NotContains(t, got, "Review and acknowledge")
}

func TestBuildPrompt_HandoffZeroIsKept(t *testing.T) {
	step := workflow.Step{StepNumber: 1, Prompt: "p", Handoff: "0"}
	got := BuildPrompt(step, "", "")
	assert.Contains(t, got, "- Brief the achieved result that includes: \n 0\n")
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "Step 1: Security review", SessionTitle(workflow.Step{StepNumber: 1, Title: "Security review"}))
	assert.Equal(t, "Workflow Step 3", SessionTitle(workflow.Step{StepNumber: 3}))
	assert.Equal(t, "Workflow Step 4", SessionTitle(workflow.Step{StepNumber: 4, Title: "  "}))
}
