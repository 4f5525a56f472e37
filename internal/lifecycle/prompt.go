package lifecycle

import (
	"fmt"
	"strings"

	"devinflow/internal/workflow"
)

// SleepToken is the standalone message the agent sends when a step is done.
const SleepToken = "sleep"

// Prompt section literals. The agent is sensitive to their exact wording.
const (
	promptSeparator      = "------"
	expectedOutputHeader = "## Expected Output and Requirements"
	startingPointHeader  = "## Starting Point"
	tasksHeader          = "## Tasks"

	executeInOrderLine = "\n- Execute the tasks on the provided Tasks section systematically in the specified order"

	genericBrief = "\n- Brief of the achieved result that includes:\n\n" +
		"  - Summary of completed tasks\n" +
		"  - Key outcomes and Expected Output and Requirements\n" +
		"  - Any important findings or decisions made\n" +
		"  - Next steps or recommendations\n" +
		"  - Technical details or artifacts created"

	completionLine = `- Lastly, when all of tasks has been executed, type exactly the word "sleep" (without quotes) to indicate completion.It must be a standalone message.`

	acknowledgeLine = "\n- Review and acknowledge the provided context from the previous step:\n\n"
)

// BuildPrompt assembles the initial session prompt for a step.
//
// The sections are, in order: expected output with the completion
// instruction, a separator, the tasks section, a separator, the step prompt,
// and a final separator, joined by blank lines. repoURL is the already
// resolved repository, or "" for none. previousData is embedded under the
// tasks heading only when the step relies on the previous step.
func BuildPrompt(step workflow.Step, repoURL, previousData string) string {
	sections := []string{
		expectedOutputSection(step) + "\n" + completionLine,
		promptSeparator,
		tasksSection(step, repoURL, previousData),
		promptSeparator,
		step.Prompt,
		promptSeparator,
	}
	return strings.Join(sections, "\n\n")
}

func expectedOutputSection(step workflow.Step) string {
	var b strings.Builder
	b.WriteString(expectedOutputHeader)
	b.WriteString(executeInOrderLine)
	if step.HasHandoff() {
		b.WriteString("\n- Brief the achieved result that includes: \n ")
		b.WriteString(step.Handoff)
		b.WriteString("\n")
	} else {
		b.WriteString(genericBrief)
	}
	return b.String()
}

func tasksSection(step workflow.Step, repoURL, previousData string) string {
	section := tasksHeader
	if repoURL != "" {
		section = "- Repo: " + repoURL + "\n\n" + section
	}
	if step.RelyPreviousStep && previousData != "" {
		section += acknowledgeLine + rewritePreviousData(previousData)
	}
	return section
}

// rewritePreviousData renames the first expected-output heading in data from
// an earlier step so the agent does not mistake it for this step's
// requirements.
func rewritePreviousData(data string) string {
	return strings.Replace(data, expectedOutputHeader, startingPointHeader, 1)
}

// SessionTitle returns the remote session title for a step.
func SessionTitle(step workflow.Step) string {
	title := strings.TrimSpace(step.Title)
	if title == "" {
		return fmt.Sprintf("Workflow Step %d", step.StepNumber)
	}
	return fmt.Sprintf("Step %d: %s", step.StepNumber, title)
}
